package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/khucmai/thebluecafe/backend/auth"
	"github.com/khucmai/thebluecafe/backend/broadcast"
	"github.com/khucmai/thebluecafe/backend/engine"
	"github.com/khucmai/thebluecafe/backend/registry"
	httpServer "github.com/khucmai/thebluecafe/backend/server/http"
	websocketServer "github.com/khucmai/thebluecafe/backend/server/websocket"
)

type envConfig struct {
	APIListenAddr  string        `envconfig:"API_LISTEN_ADDR" default:":8080"`
	WSListenAddr   string        `envconfig:"WS_LISTEN_ADDR" default:":8888"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	FrontendOrigin string        `envconfig:"FRONTEND_URI" default:"*"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"debug"`
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	_ = godotenv.Load()
	var env envConfig
	if err := envconfig.Process("", &env); err != nil {
		logger.Fatal().Err(err).Msg("failed to process environment")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", env.APIListenAddr, "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", env.WSListenAddr, "websocket chat listen address")
		logLevel      = fs.StringP("log-level", "l", env.LogLevel, "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	authenticator := auth.New(env.JWTSecret, env.TokenTTL)
	sw := broadcast.NewSwitch(&logger)
	eng := engine.New(engine.Config{
		Registry:    registry.New(),
		Broadcaster: sw,
		Logger:      &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		TokenIssuer:   authenticator,
		StatsProvider: eng,
		AllowedOrigin: env.FrontendOrigin,
		ListenAddr:    *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:     &logger,
		Matchmaker: eng,
		Wires:      sw,
		Verifier:   authenticator,
		ListenAddr: *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
