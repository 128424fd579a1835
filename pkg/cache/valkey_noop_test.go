package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

func TestNoopValkeyRoundTrip(t *testing.T) {
	v := NewNoopValkey(logger.Nop())
	ctx := context.Background()

	require.NoError(t, v.Set(ctx, "k", "value", time.Minute))
	got, err := v.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, v.Delete(ctx, "k"))
	_, err = v.Get(ctx, "k")
	assert.ErrorContains(t, err, "key not found")
}

func TestNoopValkeyAssignment(t *testing.T) {
	v := NewNoopValkey(logger.Nop())
	ctx := context.Background()

	assignment := &models.TeamAssignment{
		TeamID:   "team-a",
		TeamName: "Team A",
		EscalationChain: []models.EscalationChainEntry{
			{Level: 1, DelayMinutes: 5, ChannelTypes: []models.ChannelType{models.ChannelPush}},
		},
	}

	key := "team-a:critical"
	require.NoError(t, v.SetAssignment(ctx, key, assignment, time.Hour))

	got, err := v.GetAssignment(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Team A", got.TeamName)
	require.Len(t, got.EscalationChain, 1)
	assert.Equal(t, []models.ChannelType{models.ChannelPush}, got.EscalationChain[0].ChannelTypes)

	// Assignment keys are namespaced away from the raw keyspace.
	_, err = v.Get(ctx, key)
	assert.Error(t, err)

	require.NoError(t, v.InvalidateAssignment(ctx, key))
	_, err = v.GetAssignment(ctx, key)
	assert.Error(t, err)
}

func TestNoopValkeyAssignmentMiss(t *testing.T) {
	v := NewNoopValkey(logger.Nop())
	_, err := v.GetAssignment(context.Background(), "missing:low")
	assert.Error(t, err)
}
