package models

import "time"

type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Role   string `json:"role"` // owner, admin, member
	Active bool   `json:"active"`
}

// HoursWindow is an inclusive [Start, End] time-of-day window expressed
// as HHMM integers in the team's local timezone (e.g. 900 = 09:00).
type HoursWindow struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// BusinessHours describes when a team is considered on duty. A nil
// Weekday window means the team never has business hours; a nil Weekend
// window means weekends are disabled entirely.
type BusinessHours struct {
	Timezone string       `json:"timezone" yaml:"timezone"`
	Weekday  *HoursWindow `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Weekend  *HoursWindow `json:"weekend,omitempty" yaml:"weekend,omitempty"`
}

func (b *BusinessHours) WeekendEnabled() bool {
	return b != nil && b.Weekend != nil
}

// EscalationChainEntry is one level of a team's escalation chain.
type EscalationChainEntry struct {
	Level        int           `json:"level" yaml:"level"`
	Contacts     []TeamMember  `json:"contacts,omitempty" yaml:"contacts,omitempty"`
	DelayMinutes int           `json:"delay_minutes" yaml:"delay_minutes"`
	ChannelTypes []ChannelType `json:"channel_types" yaml:"channel_types"`
}

// TeamAssignment is the resolved escalation view of one team: contact
// tiers, schedule and per-level chain. Snapshots of it are embedded in
// escalation contexts, so it is treated as immutable once built.
type TeamAssignment struct {
	TeamID             string                 `json:"team_id"`
	TeamName           string                 `json:"team_name"`
	PrimaryContacts    []TeamMember           `json:"primary_contacts"`
	EscalationContacts []TeamMember           `json:"escalation_contacts"`
	BusinessHours      *BusinessHours         `json:"business_hours,omitempty"`
	EscalationChain    []EscalationChainEntry `json:"escalation_chain"`
	ResolvedAt         time.Time              `json:"resolved_at"`
}

// ChainEntry returns the chain entry for the given level, or nil.
func (t *TeamAssignment) ChainEntry(level int) *EscalationChainEntry {
	if t == nil {
		return nil
	}
	for i := range t.EscalationChain {
		if t.EscalationChain[i].Level == level {
			return &t.EscalationChain[i]
		}
	}
	return nil
}

// TeamOverride is the optional per-team configuration stored alongside
// the team directory (or supplied from a YAML file).
type TeamOverride struct {
	TeamID          string                 `json:"team_id" yaml:"team_id"`
	BusinessHours   *BusinessHours         `json:"business_hours,omitempty" yaml:"business_hours,omitempty"`
	EscalationChain []EscalationChainEntry `json:"escalation_chain,omitempty" yaml:"escalation_chain,omitempty"`
}
