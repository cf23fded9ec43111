// Package session implements the server-side bearer-token sessions that
// gate every task operation. Tokens are opaque random strings; a session
// binds one token to one user with an expiry, and issuing a new session
// for a user evicts any prior one.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

const tokenBytes = 32

// NewToken returns a hex-encoded 32-byte random token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func (s Session) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
