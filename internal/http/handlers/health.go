package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// PingFunc reports whether the credential store is reachable.
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	ping         PingFunc
	shuttingDown func() bool
	timeout      time.Duration
}

// shuttingDown may be nil.
func NewHealthHandler(ping PingFunc, shuttingDown func() bool) *HealthHandler {
	return &HealthHandler{ping: ping, shuttingDown: shuttingDown, timeout: time.Second}
}

// Root keeps the plain-text liveness answer existing clients probe for.
func (h *HealthHandler) Root(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Inside the server")
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.shuttingDown != nil && h.shuttingDown() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "shutting down"})
		return
	}

	if h.ping != nil {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
		defer cancel()

		if err := h.ping(cctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "store unreachable"})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
