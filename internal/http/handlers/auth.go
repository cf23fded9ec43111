package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rcalder/taskhub/internal/config"
	"github.com/rcalder/taskhub/internal/domain/user"
	"github.com/rcalder/taskhub/internal/http/middlewares"
	"github.com/rcalder/taskhub/internal/observability"
	"github.com/rcalder/taskhub/internal/security"
	"github.com/rcalder/taskhub/internal/session"
)

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type SessionWriter interface {
	Issue(ctx context.Context, userID string) (session.Session, error)
	Revoke(ctx context.Context, token string) error
}

type AuthHandler struct {
	users    UserStore
	sessions SessionWriter
	metrics  *observability.Prom
}

func NewAuthHandler(users UserStore, sessions SessionWriter, metrics *observability.Prom) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		metrics:  metrics,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req, "All fields are required") {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	_, err = h.users.Create(cctx, req.Username, req.Email, hash)

	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			RespondBadRequest(ctx, "Username or email already exists")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req, "Username and password required") {
		return
	}

	// short timeout for the credential lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByUsername(cctx, req.Username)

	if err != nil {
		RespondUnauthorized(ctx, "Invalid credentials")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnauthorized(ctx, "Invalid credentials")
		return
	}

	// issuing evicts any previous session for this user
	sess, err := h.sessions.Issue(cctx, foundUser.ID)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsIssued.Inc()
	}

	ctx.JSON(http.StatusOK, gin.H{
		"token":    sess.Token,
		"username": foundUser.Username,
		"email":    foundUser.Email,
	})
}

func (h *AuthHandler) Verify(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"user_id": userID,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	token, ok := middlewares.TokenFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.sessions.Revoke(cctx, token); err != nil {
		RespondInternal(ctx, "Could not log out")
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsRevoked.Inc()
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
