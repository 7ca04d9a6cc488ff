package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	req := require.New(t)
	a := New("test-secret", time.Hour)

	token, err := a.Issue("alice")
	req.NoError(err)
	req.NotEmpty(token)

	displayName, err := a.Verify(token)
	req.NoError(err)
	req.Equal("alice", displayName)
}

func TestAuthenticator_WrongSecret(t *testing.T) {
	req := require.New(t)
	a := New("test-secret", time.Hour)
	b := New("other-secret", time.Hour)

	token, err := a.Issue("alice")
	req.NoError(err)

	_, err = b.Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestAuthenticator_Expired(t *testing.T) {
	req := require.New(t)
	a := New("test-secret", -time.Minute)

	token, err := a.Issue("alice")
	req.NoError(err)

	_, err = a.Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestAuthenticator_Garbage(t *testing.T) {
	req := require.New(t)
	a := New("test-secret", time.Hour)

	_, err := a.Verify("not.a.token")
	req.ErrorIs(err, ErrInvalidToken)

	_, err = a.Verify("")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestAuthenticator_EmptyDisplayName(t *testing.T) {
	req := require.New(t)
	a := New("test-secret", time.Hour)

	token, err := a.Issue("")
	req.NoError(err)

	_, err = a.Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}
