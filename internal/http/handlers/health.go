package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check is one readiness probe, such as a database or redis ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz fails when any dependency does not answer within a second.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	failed := gin.H{}

	for _, c := range h.checks {
		if c.Ping == nil {
			continue
		}

		cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
		err := c.Ping(cctx)
		cancel()

		if err != nil {
			failed[c.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failed": failed})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
