package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the verified display name a connection chats under.
type Claims struct {
	DisplayName string `json:"displayname"`
	jwt.RegisteredClaims
}

// Identity is what the transport hands to the engine: a transport-assigned
// connection id plus the display name taken from a verified token.
type Identity struct {
	ConnectionID string
	DisplayName  string
}

// Authenticator issues and verifies HS256 tokens. Verification is the
// precondition for every websocket session; a connection without a valid
// token never reaches the matchmaker.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a token for displayName.
func (a *Authenticator) Issue(displayName string) (string, error) {
	now := time.Now()
	claims := &Claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "thebluecafe",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates a token and returns the display name it
// carries.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.DisplayName == "" {
		return "", ErrInvalidToken
	}
	return claims.DisplayName, nil
}
