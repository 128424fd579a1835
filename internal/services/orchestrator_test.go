package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	manager      *EscalationManager
	alerts       *memAlertStore
	deliveries   *memDeliveryStore
	senders      map[models.ChannelType]*stubSender
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	alerts := newMemAlertStore()
	deliveries := newMemDeliveryStore()
	senders := make(map[models.ChannelType]*stubSender)
	var stubs []*stubSender
	for _, typ := range []models.ChannelType{
		models.ChannelEmail, models.ChannelPush, models.ChannelWebhook,
		models.ChannelSlack, models.ChannelSMS, models.ChannelInApp,
	} {
		s := &stubSender{typ: typ}
		senders[typ] = s
		stubs = append(stubs, s)
	}

	chanStore := newMemChannelStore(
		enabledChannel("ch-email", models.ChannelEmail),
		enabledChannel("ch-push", models.ChannelPush),
		enabledChannel("ch-sms", models.ChannelSMS),
		enabledChannel("ch-inapp", models.ChannelInApp),
		enabledChannel("ch-slack", models.ChannelSlack),
		enabledChannel("ch-webhook", models.ChannelWebhook),
	)

	policy := NewSeverityPolicy()
	// Medium escalates on weekends here so the suite does not depend on
	// which day it runs.
	weekendOK := true
	_, err := policy.Patch(models.SeverityMedium, models.SeverityConfigPatch{WeekendEscalation: &weekendOK})
	require.NoError(t, err)
	dir := &fakeDirectory{
		name:    "Infra",
		members: infraMembers(),
		override: &models.TeamOverride{
			TeamID:        "team-infra",
			BusinessHours: alwaysOnHours(),
		},
	}
	resolver := NewTeamAssignmentResolver(dir, policy, cache.NewNoopValkey(logger.Nop()), time.Hour, logger.Nop())
	delivery := NewDeliveryEngine(testRegistry(stubs...), deliveries, chanStore, alerts, resolver, 3, logger.Nop())

	engineCfg := config.EngineConfig{RecoveryScanSeconds: 60, RetryMaxAttempts: 3}
	manager := NewEscalationManager(policy, NewBusinessHoursEvaluator(), resolver, delivery,
		chanStore, alerts, engineCfg, logger.Nop())
	orchestrator := NewOrchestrator(alerts, chanStore, resolver, delivery, manager, engineCfg, logger.Nop())

	return &orchestratorFixture{
		orchestrator: orchestrator,
		manager:      manager,
		alerts:       alerts,
		deliveries:   deliveries,
		senders:      senders,
	}
}

func TestProcessAlert(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	alert := testAlert(models.SeverityCritical)
	alert.TeamID = "team-infra"
	alert.ChannelIDs = []string{"ch-email"}

	esc, err := f.orchestrator.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	// Baseline pass hit the configured channel, then the immediate
	// escalation pass went out over the urgent channels at level 0.
	assert.Equal(t, 0, esc.CurrentLevel)
	require.Len(t, esc.History, 1)
	assert.Equal(t, 0, esc.History[0].Level)
	assert.Equal(t, 1, f.senders[models.ChannelEmail].callCount())
	assert.Equal(t, 1, f.senders[models.ChannelPush].callCount())

	stored := f.alerts.snapshot(alert.ID)
	assert.Equal(t, models.AlertStatusActive, stored.Status)
	assert.Equal(t, 0, stored.EscalationLevel)
	require.NotNil(t, stored.NextEscalationAt)

	_, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	assert.True(t, ok)
	assert.Len(t, f.orchestrator.ActiveEscalations(), 1)
}

func TestProcessAlertValidation(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	_, err := f.orchestrator.ProcessAlert(context.Background(), &models.Alert{Severity: models.SeverityHigh})
	assert.ErrorContains(t, err, "alert id is required")

	alert := testAlert(models.Severity("whatever"))
	_, err = f.orchestrator.ProcessAlert(context.Background(), alert)
	assert.ErrorContains(t, err, "unknown severity")

	resolved := testAlert(models.SeverityHigh)
	resolved.Status = models.AlertStatusResolved
	_, err = f.orchestrator.ProcessAlert(context.Background(), resolved)
	assert.ErrorContains(t, err, "already resolved")
}

func TestProcessAlertContinuesWhenDeliveryFails(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	// Every transport is down for the baseline pass.
	for _, s := range f.senders {
		s.fail = true
	}

	alert := testAlert(models.SeverityCritical)
	alert.TeamID = "team-infra"
	esc, err := f.orchestrator.ProcessAlert(context.Background(), alert)
	require.NoError(t, err, "failed delivery must not block escalation")
	assert.Equal(t, 0, esc.CurrentLevel)
	require.Len(t, esc.History, 1)
	assert.False(t, esc.History[0].Success)
}

func TestDeliverAlertPass(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	alert := testAlert(models.SeverityLow)
	alert.ChannelIDs = []string{"ch-email", "ch-slack"}

	batch, err := f.orchestrator.DeliverAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.SuccessCount)

	// No escalation was started by a bare delivery pass.
	_, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	assert.False(t, ok)
}

func TestResolveAlertCancelsEscalation(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	alert := testAlert(models.SeverityHigh)
	alert.TeamID = "team-infra"
	_, err := f.orchestrator.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	require.NoError(t, f.orchestrator.ResolveAlert(context.Background(), alert.ID))

	assert.Equal(t, models.AlertStatusResolved, f.alerts.snapshot(alert.ID).Status)
	_, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	assert.False(t, ok)
	assert.Nil(t, f.alerts.snapshot(alert.ID).NextEscalationAt)
}

func TestAcknowledgeAlertKeepsContext(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	alert := testAlert(models.SeverityHigh)
	alert.TeamID = "team-infra"
	_, err := f.orchestrator.ProcessAlert(context.Background(), alert)
	require.NoError(t, err)

	require.NoError(t, f.orchestrator.AcknowledgeAlert(context.Background(), alert.ID))
	assert.Equal(t, models.AlertStatusAcknowledged, f.alerts.snapshot(alert.ID).Status)
	_, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	assert.True(t, ok)
}

func TestRecoveryScanRehydratesOverdueAlerts(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	// An alert persisted mid-escalation by a previous process.
	alert := testAlert(models.SeverityCritical)
	alert.TeamID = "team-infra"
	alert.EscalationLevel = 2
	overdue := time.Now().UTC().Add(-time.Minute)
	alert.NextEscalationAt = &overdue
	require.NoError(t, f.alerts.UpsertAlert(context.Background(), alert))

	f.orchestrator.recoveryScan(context.Background())

	status, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	require.True(t, ok)
	assert.GreaterOrEqual(t, status.CurrentLevel, 2)

	// A second scan does not duplicate the context.
	f.orchestrator.recoveryScan(context.Background())
	assert.Len(t, f.orchestrator.ActiveEscalations(), 1)
}

func TestRecoveryScanSkipsTerminalAlerts(t *testing.T) {
	f := newOrchestratorFixture(t)
	defer f.manager.StopAll()

	alert := testAlert(models.SeverityHigh)
	alert.Status = models.AlertStatusResolved
	overdue := time.Now().UTC().Add(-time.Minute)
	alert.NextEscalationAt = &overdue
	require.NoError(t, f.alerts.UpsertAlert(context.Background(), alert))

	f.orchestrator.recoveryScan(context.Background())
	_, ok := f.orchestrator.GetEscalationStatus(alert.ID)
	assert.False(t, ok)
}

func TestOrchestratorStartStop(t *testing.T) {
	f := newOrchestratorFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orchestrator.Start(ctx)
	f.orchestrator.Stop()

	// Stop is idempotent.
	f.orchestrator.Stop()
}
