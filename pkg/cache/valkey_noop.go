package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// noopValkeyCache is an in-memory, process-local fallback that satisfies
// Valkey when the external cache is unavailable. Data is not shared
// across replicas and is lost on restart; TTLs are not enforced. Good
// enough for development and degraded operation.
type noopValkeyCache struct {
	m      map[string][]byte
	mu     sync.RWMutex
	logger logger.Logger
}

func NewNoopValkey(log logger.Logger) Valkey {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopValkeyCache{m: make(map[string][]byte), logger: log}
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	b, ok := n.m[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return b, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		jb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b = jb
	}
	n.mu.Lock()
	n.m[key] = b
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) GetAssignment(ctx context.Context, key string) (*models.TeamAssignment, error) {
	data, err := n.Get(ctx, assignmentKey(key))
	if err != nil {
		return nil, err
	}
	return decodeAssignment(data)
}

func (n *noopValkeyCache) SetAssignment(ctx context.Context, key string, assignment *models.TeamAssignment, ttl time.Duration) error {
	return n.Set(ctx, assignmentKey(key), assignment, ttl)
}

func (n *noopValkeyCache) InvalidateAssignment(ctx context.Context, key string) error {
	return n.Delete(ctx, assignmentKey(key))
}
