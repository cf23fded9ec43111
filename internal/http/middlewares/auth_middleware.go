package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rcalder/taskhub/internal/observability"
	"github.com/rcalder/taskhub/internal/session"
)

// Keep this small interface so tests can fake it easily.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	sessions SessionValidator
	metrics  *observability.Prom
}

func NewAuthMiddleware(sessions SessionValidator, metrics *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, metrics: metrics}
}

const (
	ctxUserIDKey = "auth.userID"
	ctxTokenKey  = "auth.token"
)

// RequireAuth resolves the bearer token into a user identity and aborts
// with 401 otherwise. A raw token without the "Bearer " prefix is
// accepted too.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))

		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "No token provided",
			})
			return
		}

		userID, err := m.sessions.Validate(c.Request.Context(), raw)

		if err != nil {
			if m.metrics != nil && errors.Is(err, session.ErrExpired) {
				m.metrics.SessionsExpired.Inc()
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": authErrorMessage(err),
			})
			return
		}

		// Stash the resolved identity on the context
		c.Set(ctxUserIDKey, userID)
		c.Set(ctxTokenKey, raw)

		c.Next()
	}
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoToken):
		return "No token provided"
	case errors.Is(err, session.ErrExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return "", false
	}
	tok, ok := v.(string)
	return tok, ok
}
