package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
)

// Valkey is the cache surface the engine depends on. The only structured
// consumer is the team-assignment resolver; everything else goes through
// the generic byte-level operations.
type Valkey interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Team assignment caching. Keys are resolver-owned (team id plus
	// severity scope) because the synthesized chain is severity-aware.
	GetAssignment(ctx context.Context, key string) (*models.TeamAssignment, error)
	SetAssignment(ctx context.Context, key string, assignment *models.TeamAssignment, ttl time.Duration) error
	InvalidateAssignment(ctx context.Context, key string) error
}

func assignmentKey(key string) string {
	return fmt.Sprintf("team_assignment:%s", key)
}

func decodeAssignment(data []byte) (*models.TeamAssignment, error) {
	var assignment models.TeamAssignment
	if err := json.Unmarshal(data, &assignment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal team assignment: %w", err)
	}
	return &assignment, nil
}
