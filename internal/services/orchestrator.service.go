package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/metrics"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// Orchestrator is the engine's front door: it persists incoming alerts,
// runs the baseline delivery pass and hands alerts to the escalation
// manager. It also runs the periodic recovery scan that picks up
// escalations whose timers were lost to a restart.
type Orchestrator struct {
	alertStore   AlertStore
	channelStore ChannelRegistry
	resolver     *TeamAssignmentResolver
	delivery     *DeliveryEngine
	escalations  *EscalationManager
	engine       config.EngineConfig
	logger       logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewOrchestrator(
	alertStore AlertStore,
	channelStore ChannelRegistry,
	resolver *TeamAssignmentResolver,
	delivery *DeliveryEngine,
	escalations *EscalationManager,
	engine config.EngineConfig,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		alertStore:   alertStore,
		channelStore: channelStore,
		resolver:     resolver,
		delivery:     delivery,
		escalations:  escalations,
		engine:       engine,
		logger:       log,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// ProcessAlert ingests one alert: persist it, run the baseline delivery
// pass over its configured channels, then start escalation. Delivery
// failures are logged and do not stop escalation from starting; an alert
// that could not be delivered anywhere still needs to escalate.
func (o *Orchestrator) ProcessAlert(ctx context.Context, alert *models.Alert) (*models.EscalationContext, error) {
	if alert.ID == "" {
		return nil, fmt.Errorf("alert id is required")
	}
	if !alert.Severity.Valid() {
		return nil, fmt.Errorf("unknown severity %q", alert.Severity)
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	if alert.Status.Terminal() {
		return nil, fmt.Errorf("alert %s is already %s", alert.ID, alert.Status)
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	if err := o.alertStore.UpsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	if batch, err := o.DeliverAlert(ctx, alert); err != nil {
		o.logger.Error("Baseline delivery failed",
			"alert_id", alert.ID, "error", err)
	} else if !batch.AnySuccess() && len(batch.Results) > 0 {
		o.logger.Warn("Baseline delivery reached no channel",
			"alert_id", alert.ID, "failures", batch.FailureCount)
	}

	esc, err := o.escalations.StartEscalation(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("start escalation: %w", err)
	}

	if err := o.alertStore.AppendHistory(ctx, &models.AlertHistoryEntry{
		AlertID: alert.ID,
		Action:  "alert_processed",
		Level:   esc.CurrentLevel,
	}); err != nil {
		o.logger.Error("Failed to record alert history",
			"alert_id", alert.ID, "error", err)
	}
	return esc, nil
}

// DeliverAlert runs one delivery pass over the alert's configured
// channels without touching escalation state.
func (o *Orchestrator) DeliverAlert(ctx context.Context, alert *models.Alert) (*models.DeliveryBatch, error) {
	chans, err := o.channelStore.ListEnabledChannels(ctx, alert.Severity, alert.ChannelIDs)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var team *models.TeamAssignment
	if alert.TeamID != "" {
		if team, err = o.resolver.Resolve(ctx, alert.TeamID, alert.Severity); err != nil {
			o.logger.Warn("Delivering without team assignment",
				"alert_id", alert.ID, "team_id", alert.TeamID, "error", err)
			team = nil
		}
	}
	return o.delivery.DeliverAll(ctx, alert, chans, team), nil
}

// CancelEscalation stops an alert's escalation without changing the
// alert's status.
func (o *Orchestrator) CancelEscalation(ctx context.Context, alertID, reason string) error {
	return o.escalations.Cancel(ctx, alertID, reason)
}

// GetEscalationStatus returns the live escalation context for an alert.
func (o *Orchestrator) GetEscalationStatus(alertID string) (*models.EscalationContext, bool) {
	return o.escalations.Status(alertID)
}

// ActiveEscalations snapshots every in-flight escalation.
func (o *Orchestrator) ActiveEscalations() []*models.EscalationContext {
	return o.escalations.ActiveContexts()
}

// ResolveAlert marks the alert resolved and cancels its escalation.
func (o *Orchestrator) ResolveAlert(ctx context.Context, alertID string) error {
	if err := o.alertStore.SetStatus(ctx, alertID, models.AlertStatusResolved); err != nil {
		return err
	}
	return o.escalations.Cancel(ctx, alertID, "alert_resolved")
}

// AcknowledgeAlert marks the alert acknowledged. Escalation keeps
// running: acknowledgement means someone has seen the alert, not that
// the condition is handled.
func (o *Orchestrator) AcknowledgeAlert(ctx context.Context, alertID string) error {
	return o.alertStore.SetStatus(ctx, alertID, models.AlertStatusAcknowledged)
}

// Start launches the recovery scan loop. The loop runs an initial scan
// immediately so escalations interrupted by the previous shutdown resume
// without waiting a full interval.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		defer close(o.doneCh)
		interval := o.engine.RecoveryInterval()
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		o.recoveryScan(ctx)
		for {
			select {
			case <-ticker.C:
				o.recoveryScan(ctx)
			case <-o.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	o.logger.Info("Escalation orchestrator started",
		"recovery_interval", o.engine.RecoveryInterval())
}

// Stop halts the recovery loop and disarms all escalation timers. The
// persisted schedules survive, so a later Start resumes them.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
		<-o.doneCh
		o.escalations.StopAll()
		o.logger.Info("Escalation orchestrator stopped")
	})
}

// recoveryScan rehydrates alerts whose persisted next_escalation_at has
// passed but which have no in-memory timer, covering both crash recovery
// and timers lost to transient failures.
func (o *Orchestrator) recoveryScan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	overdue, err := o.alertStore.ListOverdueAlerts(scanCtx, time.Now().UTC())
	if err != nil {
		metrics.RecoveryScans.WithLabelValues("error").Inc()
		o.logger.Error("Recovery scan failed", "error", err)
		return
	}

	recovered := 0
	for _, alert := range overdue {
		if _, active := o.escalations.Status(alert.ID); active {
			continue
		}
		if err := o.escalations.Rehydrate(scanCtx, alert); err != nil {
			o.logger.Error("Failed to rehydrate escalation",
				"alert_id", alert.ID, "error", err)
			continue
		}
		recovered++
	}
	metrics.RecoveryScans.WithLabelValues("ok").Inc()
	if recovered > 0 {
		o.logger.Info("Recovery scan rehydrated escalations", "count", recovered)
	}
}
