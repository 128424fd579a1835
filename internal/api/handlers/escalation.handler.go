package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/internal/services"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

type EscalationHandler struct {
	orchestrator *services.Orchestrator
	delivery     *services.DeliveryEngine
	resolver     *services.TeamAssignmentResolver
	logger       logger.Logger
}

func NewEscalationHandler(
	orchestrator *services.Orchestrator,
	delivery *services.DeliveryEngine,
	resolver *services.TeamAssignmentResolver,
	log logger.Logger,
) *EscalationHandler {
	return &EscalationHandler{
		orchestrator: orchestrator,
		delivery:     delivery,
		resolver:     resolver,
		logger:       log,
	}
}

// POST /api/v1/alerts/process - Ingest an alert and start escalation
func (h *EscalationHandler) ProcessAlert(c *gin.Context) {
	var alert models.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid alert payload: " + err.Error(),
		})
		return
	}

	esc, err := h.orchestrator.ProcessAlert(c.Request.Context(), &alert)
	if err != nil {
		h.logger.Error("Alert processing failed", "alert_id", alert.ID, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data":   esc,
	})
}

// POST /api/v1/alerts/deliver - One delivery pass, no escalation state change
func (h *EscalationHandler) DeliverAlert(c *gin.Context) {
	var alert models.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid alert payload: " + err.Error(),
		})
		return
	}
	if !alert.Severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "unknown severity",
		})
		return
	}

	batch, err := h.orchestrator.DeliverAlert(c.Request.Context(), &alert)
	if err != nil {
		h.logger.Error("Delivery pass failed", "alert_id", alert.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   batch,
	})
}

// DELETE /api/v1/escalations/:alertId - Cancel an in-flight escalation
func (h *EscalationHandler) CancelEscalation(c *gin.Context) {
	alertID := c.Param("alertId")
	reason := c.DefaultQuery("reason", "cancelled_by_operator")

	if err := h.orchestrator.CancelEscalation(c.Request.Context(), alertID, reason); err != nil {
		h.logger.Error("Escalation cancellation failed", "alert_id", alertID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"alert_id": alertID,
	})
}

// GET /api/v1/escalations/:alertId - Live escalation context for one alert
func (h *EscalationHandler) GetEscalationStatus(c *gin.Context) {
	alertID := c.Param("alertId")

	esc, ok := h.orchestrator.GetEscalationStatus(alertID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "no active escalation for alert " + alertID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   esc,
	})
}

// GET /api/v1/escalations - All in-flight escalations
func (h *EscalationHandler) ListEscalations(c *gin.Context) {
	contexts := h.orchestrator.ActiveEscalations()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  len(contexts),
		"data":   contexts,
	})
}

// POST /api/v1/notifications/:deliveryId/retry - Redeliver one failed notification
func (h *EscalationHandler) RetryNotification(c *gin.Context) {
	deliveryID := c.Param("deliveryId")

	result, err := h.delivery.RetryFailedNotification(c.Request.Context(), deliveryID)
	if err != nil {
		h.logger.Warn("Notification retry rejected", "delivery_id", deliveryID, "error", err)
		c.JSON(http.StatusConflict, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   result,
	})
}

// POST /api/v1/teams/:teamId/invalidate - Drop the team's cached assignments
func (h *EscalationHandler) InvalidateTeam(c *gin.Context) {
	teamID := c.Param("teamId")
	h.resolver.Invalidate(c.Request.Context(), teamID)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"team_id": teamID,
	})
}

// POST /api/v1/alerts/:id/resolve - Resolve the alert and stop escalating
func (h *EscalationHandler) ResolveAlert(c *gin.Context) {
	alertID := c.Param("id")

	if err := h.orchestrator.ResolveAlert(c.Request.Context(), alertID); err != nil {
		h.logger.Error("Alert resolution failed", "alert_id", alertID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"alert_id": alertID,
	})
}

// POST /api/v1/alerts/:id/acknowledge - Mark the alert acknowledged
func (h *EscalationHandler) AcknowledgeAlert(c *gin.Context) {
	alertID := c.Param("id")

	if err := h.orchestrator.AcknowledgeAlert(c.Request.Context(), alertID); err != nil {
		h.logger.Error("Alert acknowledgement failed", "alert_id", alertID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"alert_id": alertID,
	})
}
