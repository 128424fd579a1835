package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/internal/services"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

type SeverityHandler struct {
	policy *services.SeverityPolicy
	logger logger.Logger
}

func NewSeverityHandler(policy *services.SeverityPolicy, log logger.Logger) *SeverityHandler {
	return &SeverityHandler{policy: policy, logger: log}
}

// GET /api/v1/severities - Current severity policy table
func (h *SeverityHandler) ListSeverities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   h.policy.All(),
	})
}

// PATCH /api/v1/severities/:severity - Hot-patch one severity's policy
func (h *SeverityHandler) PatchSeverity(c *gin.Context) {
	severity := models.Severity(c.Param("severity"))
	if !severity.Valid() {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "unknown severity " + string(severity),
		})
		return
	}

	var patch models.SeverityConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid severity patch: " + err.Error(),
		})
		return
	}

	cfg, err := h.policy.Patch(severity, patch)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("Severity policy patched", "severity", severity)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   cfg,
	})
}
