package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

// NewHealthHandler takes one check per configured dependency, keyed by the
// name reported in /readyz.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			body[name] = "unavailable"
			body["status"] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "connected"
	}
	c.JSON(status, body)
}
