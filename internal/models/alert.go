package models

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every known severity in priority order (highest first).
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusSuppressed   AlertStatus = "suppressed"
)

// Terminal reports whether the alert no longer needs escalation.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusSuppressed
}

type Alert struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Status      AlertStatus `json:"status"`
	TeamID      string      `json:"team_id,omitempty"`

	// Optional metric context carried over from whatever raised the alert.
	MetricName        string  `json:"metric_name,omitempty"`
	MetricValue       float64 `json:"metric_value,omitempty"`
	ThresholdValue    float64 `json:"threshold_value,omitempty"`
	ThresholdOperator string  `json:"threshold_operator,omitempty"`

	// ChannelIDs are the statically configured channels for the baseline
	// delivery pass. Empty means "all enabled channels for this severity".
	ChannelIDs []string `json:"channel_ids,omitempty"`

	EscalationLevel  int        `json:"escalation_level"`
	NextEscalationAt *time.Time `json:"next_escalation_at,omitempty"`
	LastEscalatedAt  *time.Time `json:"last_escalated_at,omitempty"`

	Context   map[string]interface{} `json:"context,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AlertHistoryEntry is an append-only audit row describing something the
// engine did to an alert (delivery pass, escalation, cancellation).
type AlertHistoryEntry struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	Action    string    `json:"action"`
	Level     int       `json:"level"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
