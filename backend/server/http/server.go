package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khucmai/thebluecafe/backend/engine"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// TokenIssuer signs tokens for a display name. This stands in for the
	// real login flow during development and testing.
	TokenIssuer interface {
		Issue(displayName string) (string, error)
	}

	StatsProvider interface {
		Stats() engine.Stats
	}

	TokenRequest struct {
		DisplayName string `json:"displayname"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	GenericResponse struct {
		Message string      `json:"message,omitempty"`
		Error   string      `json:"error,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	Server struct {
		logger zerolog.Logger
		issuer TokenIssuer
		stats  StatsProvider
		origin string
		*http.Server
	}

	Config struct {
		Logger        *zerolog.Logger
		TokenIssuer   TokenIssuer
		StatsProvider StatsProvider
		AllowedOrigin string
		ListenAddr    string
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		issuer: cfg.TokenIssuer,
		stats:  cfg.StatsProvider,
		origin: cfg.AllowedOrigin,
	}
	if srv.origin == "" {
		srv.origin = "*"
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/token", srv.issueToken)
	r.HandleFunc("GET /api/health", srv.health)
	r.HandleFunc("GET /api/stats", srv.engineStats)
	r.HandleFunc("OPTIONS /", srv.corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func (srv *Server) corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", srv.origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", srv.origin)
	var (
		body     []byte
		tokenReq TokenRequest
	)
	body, _ = io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, &tokenReq); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(tokenReq.DisplayName) == "" {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: "displayname is required"}, &srv.logger)
		return
	}

	srv.logger.Trace().Any("request", tokenReq).Msg("got token request")

	token, err := srv.issuer.Issue(tokenReq.DisplayName)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to sign token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &TokenResponse{Token: token}, &srv.logger)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", srv.origin)
	writeJSON(w, http.StatusOK, &GenericResponse{Message: "OK"}, &srv.logger)
}

func (srv *Server) engineStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", srv.origin)
	writeJSON(w, http.StatusOK, &GenericResponse{Data: srv.stats.Stats()}, &srv.logger)
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *zerolog.Logger) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, code, b)
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
