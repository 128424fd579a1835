package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// TeamAssignmentResolver builds the escalation view of a team: contact
// tiers, business hours and the per-level chain. Results are cached in
// Valkey keyed by team and severity (the synthesized default chain is
// severity-aware); invalidation is explicit, plus the configured TTL.
type TeamAssignmentResolver struct {
	directory TeamDirectory
	policy    *SeverityPolicy
	cache     cache.Valkey
	ttl       time.Duration
	logger    logger.Logger

	mu            sync.RWMutex
	fileOverrides map[string]models.TeamOverride
}

func NewTeamAssignmentResolver(directory TeamDirectory, policy *SeverityPolicy, valkey cache.Valkey, ttl time.Duration, log logger.Logger) *TeamAssignmentResolver {
	return &TeamAssignmentResolver{
		directory:     directory,
		policy:        policy,
		cache:         valkey,
		ttl:           ttl,
		logger:        log,
		fileOverrides: make(map[string]models.TeamOverride),
	}
}

// LoadOverridesFile reads per-team overrides from a YAML file. File
// overrides take precedence over directory-stored ones.
func (r *TeamAssignmentResolver) LoadOverridesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read team overrides file: %w", err)
	}
	var doc struct {
		Teams []models.TeamOverride `yaml:"teams"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse team overrides file: %w", err)
	}

	overrides := make(map[string]models.TeamOverride, len(doc.Teams))
	for _, o := range doc.Teams {
		if o.TeamID == "" {
			return fmt.Errorf("team override without team_id")
		}
		overrides[o.TeamID] = o
	}

	r.mu.Lock()
	r.fileOverrides = overrides
	r.mu.Unlock()
	r.logger.Info("Loaded team overrides", "path", path, "teams", len(overrides))
	return nil
}

func cacheKeyFor(teamID string, severity models.Severity) string {
	return fmt.Sprintf("%s:%s", teamID, severity)
}

// Resolve returns the team's assignment for a severity, from cache when
// possible. On a miss it queries the directory and synthesizes a
// default chain when no override exists.
func (r *TeamAssignmentResolver) Resolve(ctx context.Context, teamID string, severity models.Severity) (*models.TeamAssignment, error) {
	key := cacheKeyFor(teamID, severity)
	if cached, err := r.cache.GetAssignment(ctx, key); err == nil {
		return cached, nil
	}

	assignment, err := r.build(ctx, teamID, severity)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetAssignment(ctx, key, assignment, r.ttl); err != nil {
		r.logger.Warn("Failed to cache team assignment", "team_id", teamID, "error", err)
	}
	return assignment, nil
}

// Invalidate drops every cached entry for a team. Called when team
// membership or override config changes.
func (r *TeamAssignmentResolver) Invalidate(ctx context.Context, teamID string) {
	for _, severity := range models.Severities {
		if err := r.cache.InvalidateAssignment(ctx, cacheKeyFor(teamID, severity)); err != nil {
			r.logger.Warn("Failed to invalidate team assignment",
				"team_id", teamID, "severity", severity, "error", err)
		}
	}
}

func (r *TeamAssignmentResolver) build(ctx context.Context, teamID string, severity models.Severity) (*models.TeamAssignment, error) {
	name, members, err := r.directory.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolve team %s: %w", teamID, err)
	}

	assignment := &models.TeamAssignment{
		TeamID:     teamID,
		TeamName:   name,
		ResolvedAt: time.Now().UTC(),
	}
	for _, m := range members {
		if !m.Active {
			continue
		}
		if m.Role == "owner" || m.Role == "admin" {
			assignment.PrimaryContacts = append(assignment.PrimaryContacts, m)
		}
		assignment.EscalationContacts = append(assignment.EscalationContacts, m)
	}

	override := r.overrideFor(ctx, teamID)
	if override != nil {
		assignment.BusinessHours = override.BusinessHours
		assignment.EscalationChain = override.EscalationChain
	}
	if len(assignment.EscalationChain) == 0 {
		cfg, err := r.policy.Get(severity)
		if err != nil {
			return nil, err
		}
		assignment.EscalationChain = DefaultChain(cfg)
	}
	return assignment, nil
}

func (r *TeamAssignmentResolver) overrideFor(ctx context.Context, teamID string) *models.TeamOverride {
	r.mu.RLock()
	fileOverride, ok := r.fileOverrides[teamID]
	r.mu.RUnlock()
	if ok {
		return &fileOverride
	}

	override, err := r.directory.GetTeamOverride(ctx, teamID)
	if err != nil {
		// Degraded: fall through to the synthesized default chain.
		r.logger.Warn("Failed to fetch team override", "team_id", teamID, "error", err)
		return nil
	}
	return override
}

// DefaultChain synthesizes the severity-default escalation chain: one
// entry per level, delay growing linearly, channel types from the
// severity/level table.
func DefaultChain(cfg models.SeverityConfig) []models.EscalationChainEntry {
	chain := make([]models.EscalationChainEntry, 0, cfg.MaxEscalationLevel)
	for level := 1; level <= cfg.MaxEscalationLevel; level++ {
		chain = append(chain, models.EscalationChainEntry{
			Level:        level,
			DelayMinutes: cfg.DefaultEscalationDelay * level,
			ChannelTypes: DefaultChannelTypes(cfg.Severity, level),
		})
	}
	return chain
}

// DefaultChannelTypes is the static severity/level to channel-type
// table used when a team has no explicit chain.
func DefaultChannelTypes(severity models.Severity, level int) []models.ChannelType {
	switch severity {
	case models.SeverityCritical:
		if level <= 1 {
			return []models.ChannelType{models.ChannelPush, models.ChannelSMS, models.ChannelInApp}
		}
		return []models.ChannelType{models.ChannelEmail, models.ChannelSlack, models.ChannelWebhook}
	case models.SeverityHigh:
		if level <= 1 {
			return []models.ChannelType{models.ChannelPush, models.ChannelInApp}
		}
		return []models.ChannelType{models.ChannelEmail, models.ChannelSlack}
	case models.SeverityMedium:
		return []models.ChannelType{models.ChannelEmail, models.ChannelInApp}
	default:
		return []models.ChannelType{models.ChannelInApp}
	}
}

// ImmediateContacts picks who gets the out-of-band first notification:
// every primary contact for critical, the first two for high, nobody for
// lower severities.
func ImmediateContacts(team *models.TeamAssignment, severity models.Severity) []models.TeamMember {
	if team == nil {
		return nil
	}
	switch severity {
	case models.SeverityCritical:
		return team.PrimaryContacts
	case models.SeverityHigh:
		if len(team.PrimaryContacts) > 2 {
			return team.PrimaryContacts[:2]
		}
		return team.PrimaryContacts
	default:
		return nil
	}
}

// ContactsForLevel prefers the chain entry's explicit contacts; when the
// entry has none, the escalation contacts are partitioned evenly across
// the levels and the level's slice is returned.
func ContactsForLevel(esc *models.EscalationContext, level int) []models.TeamMember {
	team := esc.TeamAssignment
	if team == nil {
		return nil
	}
	if entry := team.ChainEntry(level); entry != nil && len(entry.Contacts) > 0 {
		return entry.Contacts
	}

	contacts := team.EscalationContacts
	if len(contacts) == 0 || esc.MaxLevel <= 0 {
		return nil
	}
	size := (len(contacts) + esc.MaxLevel - 1) / esc.MaxLevel
	start := (level - 1) * size
	if start >= len(contacts) {
		return nil
	}
	end := start + size
	if end > len(contacts) {
		end = len(contacts)
	}
	return contacts[start:end]
}
