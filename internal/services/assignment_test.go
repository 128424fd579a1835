package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// fakeDirectory is an in-memory TeamDirectory that counts lookups.
type fakeDirectory struct {
	name      string
	members   []models.TeamMember
	override  *models.TeamOverride
	getCalls  int
	failTeams map[string]bool
}

func (f *fakeDirectory) GetTeam(_ context.Context, teamID string) (string, []models.TeamMember, error) {
	f.getCalls++
	if f.failTeams[teamID] {
		return "", nil, errors.New("team not found")
	}
	return f.name, f.members, nil
}

func (f *fakeDirectory) GetTeamOverride(_ context.Context, teamID string) (*models.TeamOverride, error) {
	return f.override, nil
}

func infraMembers() []models.TeamMember {
	return []models.TeamMember{
		{ID: "u1", Email: "owner@example.com", Role: "owner", Active: true},
		{ID: "u2", Email: "admin@example.com", Role: "admin", Active: true},
		{ID: "u3", Email: "member@example.com", Role: "member", Active: true},
		{ID: "u4", Email: "gone@example.com", Role: "member", Active: false},
	}
}

func newTestResolver(dir *fakeDirectory) *TeamAssignmentResolver {
	return NewTeamAssignmentResolver(dir, NewSeverityPolicy(),
		cache.NewNoopValkey(logger.Nop()), time.Hour, logger.Nop())
}

func TestResolveBuildsContactTiers(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)

	assignment, err := r.Resolve(context.Background(), "team-infra", models.SeverityCritical)
	require.NoError(t, err)

	assert.Equal(t, "Infra", assignment.TeamName)
	require.Len(t, assignment.PrimaryContacts, 2)
	assert.Equal(t, "u1", assignment.PrimaryContacts[0].ID)
	// Inactive members are excluded everywhere.
	require.Len(t, assignment.EscalationContacts, 3)
}

func TestResolveSynthesizesDefaultChain(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)

	assignment, err := r.Resolve(context.Background(), "team-infra", models.SeverityCritical)
	require.NoError(t, err)

	require.Len(t, assignment.EscalationChain, 5)
	for i, entry := range assignment.EscalationChain {
		assert.Equal(t, i+1, entry.Level)
		assert.Equal(t, 5*(i+1), entry.DelayMinutes)
	}
	// Level 1 of a critical chain reaches for immediate channels.
	assert.Equal(t,
		[]models.ChannelType{models.ChannelPush, models.ChannelSMS, models.ChannelInApp},
		assignment.EscalationChain[0].ChannelTypes)
	assert.Equal(t,
		[]models.ChannelType{models.ChannelEmail, models.ChannelSlack, models.ChannelWebhook},
		assignment.EscalationChain[1].ChannelTypes)
}

func TestResolveChainIsSeverityScoped(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)

	low, err := r.Resolve(context.Background(), "team-infra", models.SeverityLow)
	require.NoError(t, err)
	require.Len(t, low.EscalationChain, 2)
	assert.Equal(t, []models.ChannelType{models.ChannelInApp}, low.EscalationChain[0].ChannelTypes)
	assert.Equal(t, 120, low.EscalationChain[0].DelayMinutes)
}

func TestResolveCachesPerTeamAndSeverity(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "team-infra", models.SeverityCritical)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "team-infra", models.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.getCalls, "second resolve should hit the cache")

	// A different severity is a different cache entry.
	_, err = r.Resolve(ctx, "team-infra", models.SeverityLow)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.getCalls)
}

func TestInvalidateDropsAllSeverities(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)
	ctx := context.Background()

	_, _ = r.Resolve(ctx, "team-infra", models.SeverityCritical)
	_, _ = r.Resolve(ctx, "team-infra", models.SeverityLow)
	require.Equal(t, 2, dir.getCalls)

	r.Invalidate(ctx, "team-infra")

	_, _ = r.Resolve(ctx, "team-infra", models.SeverityCritical)
	assert.Equal(t, 3, dir.getCalls, "invalidation should force a rebuild")
}

func TestResolveUsesDirectoryOverride(t *testing.T) {
	dir := &fakeDirectory{
		name:    "Infra",
		members: infraMembers(),
		override: &models.TeamOverride{
			TeamID: "team-infra",
			BusinessHours: &models.BusinessHours{
				Timezone: "Europe/Berlin",
				Weekday:  &models.HoursWindow{Start: 800, End: 1800},
			},
			EscalationChain: []models.EscalationChainEntry{
				{Level: 1, DelayMinutes: 15, ChannelTypes: []models.ChannelType{models.ChannelSlack}},
			},
		},
	}
	r := newTestResolver(dir)

	assignment, err := r.Resolve(context.Background(), "team-infra", models.SeverityCritical)
	require.NoError(t, err)
	require.NotNil(t, assignment.BusinessHours)
	assert.Equal(t, "Europe/Berlin", assignment.BusinessHours.Timezone)
	require.Len(t, assignment.EscalationChain, 1)
	assert.Equal(t, []models.ChannelType{models.ChannelSlack}, assignment.EscalationChain[0].ChannelTypes)
}

func TestLoadOverridesFileTakesPrecedence(t *testing.T) {
	dir := &fakeDirectory{name: "Infra", members: infraMembers()}
	r := newTestResolver(dir)

	path := filepath.Join(t.TempDir(), "overrides.yaml")
	doc := `teams:
  - team_id: team-infra
    business_hours:
      timezone: Asia/Kolkata
      weekday:
        start: 930
        end: 1830
    escalation_chain:
      - level: 1
        delay_minutes: 10
        channel_types: [email]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	require.NoError(t, r.LoadOverridesFile(path))

	assignment, err := r.Resolve(context.Background(), "team-infra", models.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", assignment.BusinessHours.Timezone)
	assert.Equal(t, 930, assignment.BusinessHours.Weekday.Start)
	require.Len(t, assignment.EscalationChain, 1)
	assert.Equal(t, 10, assignment.EscalationChain[0].DelayMinutes)
}

func TestLoadOverridesFileRejectsMissingTeamID(t *testing.T) {
	r := newTestResolver(&fakeDirectory{})
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teams:\n  - business_hours: {timezone: UTC}\n"), 0o600))
	assert.ErrorContains(t, r.LoadOverridesFile(path), "without team_id")
}

func TestResolveFailsWhenTeamUnknown(t *testing.T) {
	dir := &fakeDirectory{failTeams: map[string]bool{"ghost": true}}
	r := newTestResolver(dir)
	_, err := r.Resolve(context.Background(), "ghost", models.SeverityHigh)
	assert.ErrorContains(t, err, "resolve team ghost")
}

func TestContactsForLevelPartition(t *testing.T) {
	esc := &models.EscalationContext{
		MaxLevel: 3,
		TeamAssignment: &models.TeamAssignment{
			EscalationContacts: []models.TeamMember{
				{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}, {ID: "f"},
			},
		},
	}

	assert.Equal(t, "a", ContactsForLevel(esc, 1)[0].ID)
	assert.Len(t, ContactsForLevel(esc, 1), 2)
	assert.Equal(t, "c", ContactsForLevel(esc, 2)[0].ID)
	assert.Equal(t, "e", ContactsForLevel(esc, 3)[0].ID)
}

func TestContactsForLevelPrefersChainContacts(t *testing.T) {
	esc := &models.EscalationContext{
		MaxLevel: 2,
		TeamAssignment: &models.TeamAssignment{
			EscalationContacts: []models.TeamMember{{ID: "a"}, {ID: "b"}},
			EscalationChain: []models.EscalationChainEntry{
				{Level: 1, Contacts: []models.TeamMember{{ID: "oncall"}}},
			},
		},
	}

	got := ContactsForLevel(esc, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "oncall", got[0].ID)
	// Level 2 has no explicit contacts, falls back to the partition.
	assert.Equal(t, "b", ContactsForLevel(esc, 2)[0].ID)
}

func TestContactsForLevelNoTeam(t *testing.T) {
	esc := &models.EscalationContext{MaxLevel: 3}
	assert.Nil(t, ContactsForLevel(esc, 1))
}
