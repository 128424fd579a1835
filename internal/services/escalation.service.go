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

// persistTimeout bounds store writes issued from timer goroutines, which
// have no caller-supplied context.
const persistTimeout = 10 * time.Second

// escalationEntry pairs an escalation context with its armed timer. The
// pointer itself is the identity token: a timer fire first checks that
// the map still holds this exact entry, so a cancellation that raced the
// fire wins and the stale fire becomes a no-op.
type escalationEntry struct {
	esc   *models.EscalationContext
	timer *time.Timer
}

// EscalationManager owns every in-flight escalation: one context and at
// most one armed timer per alert. All map access happens under mu;
// deliveries and store writes happen outside it.
type EscalationManager struct {
	policy       *SeverityPolicy
	hours        *BusinessHoursEvaluator
	resolver     *TeamAssignmentResolver
	delivery     *DeliveryEngine
	channelStore ChannelRegistry
	alertStore   AlertStore
	engine       config.EngineConfig
	logger       logger.Logger

	mu      sync.Mutex
	entries map[string]*escalationEntry
}

func NewEscalationManager(
	policy *SeverityPolicy,
	hours *BusinessHoursEvaluator,
	resolver *TeamAssignmentResolver,
	delivery *DeliveryEngine,
	channelStore ChannelRegistry,
	alertStore AlertStore,
	engine config.EngineConfig,
	log logger.Logger,
) *EscalationManager {
	return &EscalationManager{
		policy:       policy,
		hours:        hours,
		resolver:     resolver,
		delivery:     delivery,
		channelStore: channelStore,
		alertStore:   alertStore,
		engine:       engine,
		logger:       log,
		entries:      make(map[string]*escalationEntry),
	}
}

// StartEscalation creates the escalation context for an alert and arms
// its first timer. Calling it again for the same alert is a no-op that
// returns the existing context; it never duplicates timers.
func (m *EscalationManager) StartEscalation(ctx context.Context, alert *models.Alert) (*models.EscalationContext, error) {
	m.mu.Lock()
	if existing, ok := m.entries[alert.ID]; ok {
		snap := existing.esc.Snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	cfg, err := m.policy.Get(alert.Severity)
	if err != nil {
		return nil, err
	}

	team := m.resolveTeam(ctx, alert)
	now := time.Now().UTC()
	isBH, isWeekend := m.hours.Evaluate(team, now)

	esc := &models.EscalationContext{
		AlertID:         alert.ID,
		SeverityConfig:  cfg,
		TeamAssignment:  team,
		CurrentLevel:    0,
		MaxLevel:        cfg.MaxEscalationLevel,
		IsBusinessHours: isBH,
		IsWeekend:       isWeekend,
		CreatedAt:       now,
	}

	entry := &escalationEntry{esc: esc}

	m.mu.Lock()
	if existing, ok := m.entries[alert.ID]; ok {
		// Lost a creation race; the first caller's context stands.
		snap := existing.esc.Snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	m.entries[alert.ID] = entry
	m.mu.Unlock()
	metrics.ActiveEscalations.Inc()

	if ShouldEscalate(cfg, isBH, isWeekend) {
		if cfg.RequiresImmediateAttention {
			m.immediatePass(ctx, alert, entry, now)
		}
		delay := firstEscalationDelay(team, cfg)
		if !isBH {
			if ceiling := m.engine.OffHoursDelayCap(); ceiling > 0 && delay > ceiling {
				delay = ceiling
			}
		}
		m.arm(alert.ID, entry, now.Add(delay), models.ReasonScheduledEscalation)
	} else {
		esc.Deferred = true
		wake := m.hours.NextBusinessHoursStart(team, now)
		m.arm(alert.ID, entry, wake, models.ReasonScheduledEscalation)
		m.logger.Info("Escalation deferred to business hours",
			"alert_id", alert.ID, "severity", alert.Severity, "resume_at", wake)
	}

	m.persistState(alert.ID, esc)
	return esc.Snapshot(), nil
}

func (m *EscalationManager) resolveTeam(ctx context.Context, alert *models.Alert) *models.TeamAssignment {
	if alert.TeamID == "" {
		return nil
	}
	team, err := m.resolver.Resolve(ctx, alert.TeamID, alert.Severity)
	if err != nil {
		m.logger.Warn("Team resolution failed, using default escalation",
			"alert_id", alert.ID, "team_id", alert.TeamID, "error", err)
		return nil
	}
	return team
}

// immediatePass delivers the out-of-band first notification for
// severities that demand one. It runs before any timer is armed and is
// recorded as a level-0 history entry; the scheduled cadence still
// starts at level 1.
func (m *EscalationManager) immediatePass(ctx context.Context, alert *models.Alert, entry *escalationEntry, now time.Time) {
	esc := entry.esc
	team := esc.TeamAssignment
	contacts := ImmediateContacts(team, alert.Severity)
	types := []models.ChannelType{models.ChannelPush, models.ChannelSMS, models.ChannelInApp}

	target := team
	if team != nil {
		narrowed := *team
		narrowed.EscalationContacts = contacts
		target = &narrowed
	}
	batch := m.notifyLevel(ctx, alert, target, types)
	success := batch != nil && batch.AnySuccess()

	outcome := "notified"
	if !success {
		outcome = "failed"
	}
	metrics.EscalationsExecuted.WithLabelValues(string(alert.Severity), outcome).Inc()

	m.mu.Lock()
	if m.entries[alert.ID] == entry {
		esc.History = append(esc.History, models.EscalationHistoryEntry{
			Level:       0,
			TriggeredAt: now,
			Contacts:    contactHandles(contacts),
			Channels:    types,
			Success:     success,
			Reason:      models.ReasonImmediateEscalation,
		})
	}
	m.mu.Unlock()

	m.logger.Info("Immediate escalation pass executed",
		"alert_id", alert.ID, "severity", alert.Severity,
		"contacts", len(contacts), "success", success)
}

// firstEscalationDelay is the wait before the level-1 fire: the chain's
// level-1 delay when the team defines one, otherwise the severity
// default.
func firstEscalationDelay(team *models.TeamAssignment, cfg models.SeverityConfig) time.Duration {
	if chain := team.ChainEntry(1); chain != nil && chain.DelayMinutes > 0 {
		return time.Duration(chain.DelayMinutes) * time.Minute
	}
	return cfg.Delay()
}

// nextEscalationDelay is the wait before the level after firedLevel.
// Chain delays are offsets from the start of the escalation, so the
// wait is the gap between consecutive entries; when the chain has no
// usable entry the severity interval applies.
func nextEscalationDelay(team *models.TeamAssignment, cfg models.SeverityConfig, firedLevel int) time.Duration {
	next := team.ChainEntry(firedLevel + 1)
	if next == nil || next.DelayMinutes <= 0 {
		return cfg.Interval()
	}
	wait := next.DelayMinutes
	if cur := team.ChainEntry(firedLevel); cur != nil && cur.DelayMinutes > 0 && cur.DelayMinutes < next.DelayMinutes {
		wait = next.DelayMinutes - cur.DelayMinutes
	}
	return time.Duration(wait) * time.Minute
}

// arm schedules the next fire for an entry. Caller must not hold mu.
func (m *EscalationManager) arm(alertID string, entry *escalationEntry, at time.Time, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[alertID] != entry {
		return
	}
	next := at
	entry.esc.NextEscalationAt = &next
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	entry.timer = time.AfterFunc(delay, func() {
		m.executeEscalation(alertID, entry, reason)
	})
}

// executeEscalation runs one escalation pass: advance one level, notify
// that level's contacts, then either rearm or finish. Deferred contexts
// re-run the schedule decision first. The entry identity check makes
// fires from cancelled or superseded timers harmless.
func (m *EscalationManager) executeEscalation(alertID string, entry *escalationEntry, reason string) {
	m.mu.Lock()
	if m.entries[alertID] != entry {
		m.mu.Unlock()
		return
	}
	esc := entry.esc
	cfg := esc.SeverityConfig
	team := esc.TeamAssignment
	deferred := esc.Deferred
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	alert, err := m.alertStore.GetAlert(ctx, alertID)
	if err != nil {
		m.logger.Error("Escalation pass could not load alert, retrying next interval",
			"alert_id", alertID, "error", err)
		m.arm(alertID, entry, time.Now().UTC().Add(cfg.Interval()), reason)
		return
	}
	if alert.Status.Terminal() {
		m.logger.Info("Alert reached terminal status, stopping escalation",
			"alert_id", alertID, "status", alert.Status)
		m.remove(alertID, entry)
		m.clearNextEscalation(ctx, alertID, esc.CurrentLevel)
		return
	}

	now := time.Now().UTC()
	if deferred {
		isBH, isWeekend := m.hours.Evaluate(team, now)
		if !ShouldEscalate(cfg, isBH, isWeekend) {
			// Still off schedule, push the wakeup forward.
			m.arm(alertID, entry, m.hours.NextBusinessHoursStart(team, now), reason)
			m.persistState(alertID, esc)
			return
		}
		// The deferral retried the scheduling decision, not a delivery:
		// once hours permit, arm the first real timer instead of
		// escalating at the wakeup instant.
		m.mu.Lock()
		if m.entries[alertID] != entry {
			m.mu.Unlock()
			return
		}
		esc.Deferred = false
		esc.IsBusinessHours = isBH
		esc.IsWeekend = isWeekend
		m.mu.Unlock()
		m.arm(alertID, entry, now.Add(firstEscalationDelay(team, cfg)), models.ReasonScheduledEscalation)
		m.persistState(alertID, esc)
		return
	}

	nextLevel := esc.CurrentLevel + 1
	if nextLevel > esc.MaxLevel {
		m.remove(alertID, entry)
		m.clearNextEscalation(ctx, alertID, esc.CurrentLevel)
		return
	}

	contacts := ContactsForLevel(esc, nextLevel)
	channelTypes := levelChannelTypes(team, alert.Severity, nextLevel)
	batch := m.notifyLevel(ctx, alert, team, channelTypes)
	success := batch != nil && batch.AnySuccess()

	outcome := "notified"
	if !success {
		outcome = "failed"
	}
	metrics.EscalationsExecuted.WithLabelValues(string(alert.Severity), outcome).Inc()

	entryDone := false
	m.mu.Lock()
	if m.entries[alertID] == entry {
		esc.CurrentLevel = nextLevel
		esc.History = append(esc.History, models.EscalationHistoryEntry{
			Level:       nextLevel,
			TriggeredAt: now,
			Contacts:    contactHandles(contacts),
			Channels:    channelTypes,
			Success:     success,
			Reason:      reasonFor(reason, team),
		})
		if nextLevel >= esc.MaxLevel {
			esc.NextEscalationAt = nil
			entryDone = true
		}
	} else {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Info("Escalation level executed",
		"alert_id", alertID, "level", nextLevel, "max_level", esc.MaxLevel,
		"success", success, "channels", channelTypes)

	if entryDone {
		m.remove(alertID, entry)
		last := now
		if err := m.alertStore.UpdateEscalationState(ctx, alertID, nextLevel, nil, &last); err != nil {
			m.logger.Error("Failed to persist final escalation state",
				"alert_id", alertID, "error", err)
		}
		return
	}

	m.arm(alertID, entry, now.Add(nextEscalationDelay(team, cfg, nextLevel)), models.ReasonScheduledEscalation)
	last := now
	m.mu.Lock()
	nextAt := esc.NextEscalationAt
	m.mu.Unlock()
	if err := m.alertStore.UpdateEscalationState(ctx, alertID, nextLevel, nextAt, &last); err != nil {
		m.logger.Error("Failed to persist escalation state",
			"alert_id", alertID, "error", err)
	}
}

// notifyLevel resolves the level's channels and fans the alert out over
// them. A nil return means no channel matched.
func (m *EscalationManager) notifyLevel(ctx context.Context, alert *models.Alert, team *models.TeamAssignment, types []models.ChannelType) *models.DeliveryBatch {
	chans, err := m.channelStore.ListEnabledChannels(ctx, alert.Severity, alert.ChannelIDs)
	if err != nil {
		m.logger.Error("Failed to list channels for escalation",
			"alert_id", alert.ID, "error", err)
		return nil
	}
	wanted := make(map[models.ChannelType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var selected []*models.NotificationChannel
	for _, ch := range chans {
		if wanted[ch.Type] {
			selected = append(selected, ch)
		}
	}
	if len(selected) == 0 {
		m.logger.Warn("No enabled channel matches escalation level",
			"alert_id", alert.ID, "channel_types", types)
		return nil
	}
	return m.delivery.DeliverAll(ctx, alert, selected, team)
}

// Cancel stops the alert's escalation, disarms its timer and clears the
// persisted schedule. Cancelling an alert with no active escalation is
// not an error.
func (m *EscalationManager) Cancel(ctx context.Context, alertID, reason string) error {
	m.mu.Lock()
	entry, ok := m.entries[alertID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	level := entry.esc.CurrentLevel
	delete(m.entries, alertID)
	m.mu.Unlock()
	metrics.ActiveEscalations.Dec()

	if err := m.alertStore.UpdateEscalationState(ctx, alertID, level, nil, nil); err != nil {
		return fmt.Errorf("clear escalation schedule: %w", err)
	}
	if err := m.alertStore.AppendHistory(ctx, &models.AlertHistoryEntry{
		AlertID: alertID,
		Action:  "escalation_cancelled",
		Level:   level,
		Detail:  reason,
	}); err != nil {
		m.logger.Error("Failed to record escalation cancellation",
			"alert_id", alertID, "error", err)
	}
	m.logger.Info("Escalation cancelled",
		"alert_id", alertID, "level", level, "reason", reason)
	return nil
}

// Status returns a snapshot of the alert's escalation context, or false
// when none is active.
func (m *EscalationManager) Status(alertID string) (*models.EscalationContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[alertID]
	if !ok {
		return nil, false
	}
	return entry.esc.Snapshot(), true
}

// ActiveContexts snapshots every in-flight escalation.
func (m *EscalationManager) ActiveContexts() []*models.EscalationContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.EscalationContext, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.esc.Snapshot())
	}
	return out
}

// Rehydrate rebuilds an escalation context for an alert found overdue in
// the store after a restart. It resumes at the persisted level instead
// of re-running the immediate pass, and fires right away when the
// persisted deadline has already passed.
func (m *EscalationManager) Rehydrate(ctx context.Context, alert *models.Alert) error {
	m.mu.Lock()
	if _, ok := m.entries[alert.ID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	cfg, err := m.policy.Get(alert.Severity)
	if err != nil {
		return err
	}
	if alert.EscalationLevel >= cfg.MaxEscalationLevel {
		// Nothing left to run; clear the stale deadline.
		m.clearNextEscalation(ctx, alert.ID, alert.EscalationLevel)
		return nil
	}

	team := m.resolveTeam(ctx, alert)
	now := time.Now().UTC()
	isBH, isWeekend := m.hours.Evaluate(team, now)

	esc := &models.EscalationContext{
		AlertID:         alert.ID,
		SeverityConfig:  cfg,
		TeamAssignment:  team,
		CurrentLevel:    alert.EscalationLevel,
		MaxLevel:        cfg.MaxEscalationLevel,
		IsBusinessHours: isBH,
		IsWeekend:       isWeekend,
		CreatedAt:       now,
	}
	entry := &escalationEntry{esc: esc}

	m.mu.Lock()
	if _, ok := m.entries[alert.ID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.entries[alert.ID] = entry
	m.mu.Unlock()
	metrics.ActiveEscalations.Inc()

	at := now
	if alert.NextEscalationAt != nil && alert.NextEscalationAt.After(now) {
		at = *alert.NextEscalationAt
	}
	m.arm(alert.ID, entry, at, models.ReasonScheduledEscalation)
	m.logger.Info("Escalation rehydrated",
		"alert_id", alert.ID, "level", alert.EscalationLevel, "next_at", at)
	return nil
}

// StopAll disarms every timer. In-memory contexts are dropped; the
// persisted next_escalation_at deadlines remain so the recovery scan can
// pick the alerts back up after restart.
func (m *EscalationManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(m.entries, id)
		metrics.ActiveEscalations.Dec()
	}
}

func (m *EscalationManager) remove(alertID string, entry *escalationEntry) {
	m.mu.Lock()
	if m.entries[alertID] == entry {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(m.entries, alertID)
		metrics.ActiveEscalations.Dec()
	}
	m.mu.Unlock()
}

func (m *EscalationManager) clearNextEscalation(ctx context.Context, alertID string, level int) {
	if err := m.alertStore.UpdateEscalationState(ctx, alertID, level, nil, nil); err != nil {
		m.logger.Error("Failed to clear escalation schedule",
			"alert_id", alertID, "error", err)
	}
}

func (m *EscalationManager) persistState(alertID string, esc *models.EscalationContext) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	m.mu.Lock()
	level := esc.CurrentLevel
	nextAt := esc.NextEscalationAt
	m.mu.Unlock()
	if err := m.alertStore.UpdateEscalationState(ctx, alertID, level, nextAt, nil); err != nil {
		m.logger.Error("Failed to persist escalation state",
			"alert_id", alertID, "error", err)
	}
}

// levelChannelTypes picks the channel types for one level: the team
// chain's explicit list when present, otherwise the severity defaults.
func levelChannelTypes(team *models.TeamAssignment, severity models.Severity, level int) []models.ChannelType {
	if chain := team.ChainEntry(level); chain != nil && len(chain.ChannelTypes) > 0 {
		return chain.ChannelTypes
	}
	return DefaultChannelTypes(severity, level)
}

func reasonFor(reason string, team *models.TeamAssignment) string {
	if team == nil {
		return models.ReasonDefaultFallback
	}
	return reason
}

func contactHandles(members []models.TeamMember) []string {
	out := make([]string, 0, len(members))
	for _, mbr := range members {
		if mbr.Email != "" {
			out = append(out, mbr.Email)
		} else {
			out = append(out, mbr.ID)
		}
	}
	return out
}
