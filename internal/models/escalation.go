package models

import "time"

// Escalation history entry reasons.
const (
	ReasonImmediateEscalation = "immediate_escalation"
	ReasonScheduledEscalation = "scheduled_escalation"
	ReasonDefaultFallback     = "default_fallback"
)

// EscalationHistoryEntry records one executed escalation pass for an
// alert; level 0 entries are the immediate-attention pass.
type EscalationHistoryEntry struct {
	Level       int           `json:"level"`
	TriggeredAt time.Time     `json:"triggered_at"`
	Contacts    []string      `json:"contacts"`
	Channels    []ChannelType `json:"channels"`
	Success     bool          `json:"success"`
	Reason      string        `json:"reason"`
}

// EscalationContext is the in-memory state of one in-flight alert
// escalation. The severity config and team assignment are snapshots
// taken at creation and never mutated afterwards. The context is owned
// exclusively by the escalation manager; at most one exists per alert.
type EscalationContext struct {
	AlertID          string                   `json:"alert_id"`
	SeverityConfig   SeverityConfig           `json:"severity_config"`
	TeamAssignment   *TeamAssignment          `json:"team_assignment,omitempty"`
	CurrentLevel     int                      `json:"current_level"`
	MaxLevel         int                      `json:"max_level"`
	History          []EscalationHistoryEntry `json:"escalation_history"`
	NextEscalationAt *time.Time               `json:"next_escalation_at,omitempty"`
	IsBusinessHours  bool                     `json:"is_business_hours"`
	IsWeekend        bool                     `json:"is_weekend"`
	Deferred         bool                     `json:"deferred"`
	CreatedAt        time.Time                `json:"created_at"`
}

// Snapshot returns a copy safe to hand to API callers while the manager
// keeps mutating the original.
func (c *EscalationContext) Snapshot() *EscalationContext {
	if c == nil {
		return nil
	}
	cp := *c
	cp.History = append([]EscalationHistoryEntry(nil), c.History...)
	if c.NextEscalationAt != nil {
		next := *c.NextEscalationAt
		cp.NextEscalationAt = &next
	}
	return &cp
}
