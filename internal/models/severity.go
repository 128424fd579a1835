package models

import "time"

// SeverityConfig is one row of the severity policy table. Delays and
// timeouts are minutes; zero means "disabled" for the optional timeouts.
type SeverityConfig struct {
	Severity                   Severity `json:"severity"`
	Priority                   int      `json:"priority"` // 1 = highest
	DefaultEscalationDelay     int      `json:"default_escalation_delay"`
	EscalationInterval         int      `json:"escalation_interval"`
	MaxEscalationLevel         int      `json:"max_escalation_level"`
	AutoAcknowledgeTimeout     int      `json:"auto_acknowledge_timeout,omitempty"`
	AutoResolveTimeout         int      `json:"auto_resolve_timeout,omitempty"`
	RequiresImmediateAttention bool     `json:"requires_immediate_attention"`
	BusinessHoursOnly          bool     `json:"business_hours_only"`
	WeekendEscalation          bool     `json:"weekend_escalation"`
}

func (c SeverityConfig) Delay() time.Duration {
	return time.Duration(c.DefaultEscalationDelay) * time.Minute
}

func (c SeverityConfig) Interval() time.Duration {
	if c.EscalationInterval > 0 {
		return time.Duration(c.EscalationInterval) * time.Minute
	}
	return c.Delay()
}

// SeverityConfigPatch is a merge patch for one severity's config: set
// fields overwrite, nil fields keep the current value.
type SeverityConfigPatch struct {
	Priority                   *int  `json:"priority,omitempty" mapstructure:"priority"`
	DefaultEscalationDelay     *int  `json:"default_escalation_delay,omitempty" mapstructure:"default_escalation_delay"`
	EscalationInterval         *int  `json:"escalation_interval,omitempty" mapstructure:"escalation_interval"`
	MaxEscalationLevel         *int  `json:"max_escalation_level,omitempty" mapstructure:"max_escalation_level"`
	AutoAcknowledgeTimeout     *int  `json:"auto_acknowledge_timeout,omitempty" mapstructure:"auto_acknowledge_timeout"`
	AutoResolveTimeout         *int  `json:"auto_resolve_timeout,omitempty" mapstructure:"auto_resolve_timeout"`
	RequiresImmediateAttention *bool `json:"requires_immediate_attention,omitempty" mapstructure:"requires_immediate_attention"`
	BusinessHoursOnly          *bool `json:"business_hours_only,omitempty" mapstructure:"business_hours_only"`
	WeekendEscalation          *bool `json:"weekend_escalation,omitempty" mapstructure:"weekend_escalation"`
}
