package services

import (
	"fmt"
	"sync"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// SeverityPolicy is the severity policy table: five built-in entries,
// hot-patchable per severity at runtime. Reads vastly outnumber writes;
// patches are applied atomically under the write lock so no escalation
// ever observes a half-updated config.
type SeverityPolicy struct {
	mu      sync.RWMutex
	configs map[models.Severity]models.SeverityConfig
}

func NewSeverityPolicy() *SeverityPolicy {
	return &SeverityPolicy{
		configs: map[models.Severity]models.SeverityConfig{
			models.SeverityCritical: {
				Severity:                   models.SeverityCritical,
				Priority:                   1,
				DefaultEscalationDelay:     5,
				EscalationInterval:         5,
				MaxEscalationLevel:         5,
				AutoAcknowledgeTimeout:     30,
				RequiresImmediateAttention: true,
				WeekendEscalation:          true,
			},
			models.SeverityHigh: {
				Severity:                   models.SeverityHigh,
				Priority:                   2,
				DefaultEscalationDelay:     10,
				EscalationInterval:         10,
				MaxEscalationLevel:         4,
				AutoAcknowledgeTimeout:     60,
				RequiresImmediateAttention: true,
				WeekendEscalation:          true,
			},
			models.SeverityMedium: {
				Severity:               models.SeverityMedium,
				Priority:               3,
				DefaultEscalationDelay: 30,
				EscalationInterval:     30,
				MaxEscalationLevel:     3,
				AutoResolveTimeout:     1440,
				BusinessHoursOnly:      true,
			},
			models.SeverityLow: {
				Severity:               models.SeverityLow,
				Priority:               4,
				DefaultEscalationDelay: 120,
				EscalationInterval:     120,
				MaxEscalationLevel:     2,
				AutoResolveTimeout:     2880,
				BusinessHoursOnly:      true,
			},
			models.SeverityInfo: {
				Severity:               models.SeverityInfo,
				Priority:               5,
				DefaultEscalationDelay: 240,
				EscalationInterval:     240,
				MaxEscalationLevel:     1,
				AutoResolveTimeout:     4320,
				BusinessHoursOnly:      true,
			},
		},
	}
}

func (p *SeverityPolicy) Get(severity models.Severity) (models.SeverityConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg, ok := p.configs[severity]
	if !ok {
		return models.SeverityConfig{}, fmt.Errorf("no severity config for %q", severity)
	}
	return cfg, nil
}

// All returns every severity config in priority order.
func (p *SeverityPolicy) All() []models.SeverityConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.SeverityConfig, 0, len(p.configs))
	for _, s := range models.Severities {
		if cfg, ok := p.configs[s]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

// Patch merges the provided fields into one severity's config: set
// fields overwrite, nil fields keep the current value.
func (p *SeverityPolicy) Patch(severity models.Severity, patch models.SeverityConfigPatch) (models.SeverityConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.configs[severity]
	if !ok {
		return models.SeverityConfig{}, fmt.Errorf("no severity config for %q", severity)
	}

	if patch.Priority != nil {
		cfg.Priority = *patch.Priority
	}
	if patch.DefaultEscalationDelay != nil {
		cfg.DefaultEscalationDelay = *patch.DefaultEscalationDelay
	}
	if patch.EscalationInterval != nil {
		cfg.EscalationInterval = *patch.EscalationInterval
	}
	if patch.MaxEscalationLevel != nil {
		if *patch.MaxEscalationLevel <= 0 {
			return models.SeverityConfig{}, fmt.Errorf("max_escalation_level must be positive")
		}
		cfg.MaxEscalationLevel = *patch.MaxEscalationLevel
	}
	if patch.AutoAcknowledgeTimeout != nil {
		cfg.AutoAcknowledgeTimeout = *patch.AutoAcknowledgeTimeout
	}
	if patch.AutoResolveTimeout != nil {
		cfg.AutoResolveTimeout = *patch.AutoResolveTimeout
	}
	if patch.RequiresImmediateAttention != nil {
		cfg.RequiresImmediateAttention = *patch.RequiresImmediateAttention
	}
	if patch.BusinessHoursOnly != nil {
		cfg.BusinessHoursOnly = *patch.BusinessHoursOnly
	}
	if patch.WeekendEscalation != nil {
		cfg.WeekendEscalation = *patch.WeekendEscalation
	}

	p.configs[severity] = cfg
	return cfg, nil
}

// ApplyOverrides applies config-file severity patches; invalid entries
// are logged and skipped so a bad override never takes the table down.
func (p *SeverityPolicy) ApplyOverrides(overrides map[string]models.SeverityConfigPatch, log logger.Logger) {
	for name, patch := range overrides {
		if _, err := p.Patch(models.Severity(name), patch); err != nil {
			log.Error("Failed to apply severity override", "severity", name, "error", err)
			continue
		}
		log.Info("Applied severity override", "severity", name)
	}
}
