package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pingDB      func(context.Context) error
	pingSession func(context.Context) error
}

func NewHealthHandler(pingDB, pingSession func(context.Context) error) *HealthHandler {
	return &HealthHandler{pingDB: pingDB, pingSession: pingSession}
}

// Health probes the backing stores. Failures are absorbed into a 500
// response, never propagated.
func (h *HealthHandler) Health(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 1*time.Second)
	defer cancel()

	healthy := true

	if h.pingDB != nil && h.pingDB(cctx) != nil {
		healthy = false
	}

	if h.pingSession != nil && h.pingSession(cctx) != nil {
		healthy = false
	}

	if !healthy {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}
