package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// Pinger is the slice of the database the health handler needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	cache  cache.Valkey
	logger logger.Logger
}

func NewHealthHandler(db Pinger, valkey cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: valkey, logger: log}
}

// GET /health - Quick liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "escalate-core",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - Readiness gated on the alert store and cache
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["database"] = gin.H{"status": "healthy"}
	}

	// Cache probe: a failed Set degrades readiness but does not fail it,
	// the engine runs with the in-process fallback cache.
	probeKey := fmt.Sprintf("ready:%d", time.Now().UnixNano())
	if err := h.cache.Set(ctx, probeKey, "1", time.Second); err != nil {
		checks["cache"] = gin.H{"status": "degraded", "error": err.Error()}
	} else {
		checks["cache"] = gin.H{"status": "healthy"}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   "escalate-core",
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
