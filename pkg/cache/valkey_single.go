package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/escalate-core/internal/metrics"
	"github.com/platformbuilds/escalate-core/internal/models"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// valkeySingleImpl implements Valkey against a single-node Valkey/Redis
// instance.
type valkeySingleImpl struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration, log logger.Logger) (Valkey, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &valkeySingleImpl{
		client: client,
		logger: log,
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeySingleImpl) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheRequestsTotal.WithLabelValues("get", "miss").Inc()
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	metrics.CacheRequestsTotal.WithLabelValues("get", "hit").Inc()
	return b, nil
}

func (v *valkeySingleImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch x := value.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		j, err := json.Marshal(x)
		if err != nil {
			metrics.CacheRequestsTotal.WithLabelValues("set", "error").Inc()
			return fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		data = j
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("set", "error").Inc()
		return err
	}
	metrics.CacheRequestsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

func (v *valkeySingleImpl) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.CacheRequestsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (v *valkeySingleImpl) GetAssignment(ctx context.Context, key string) (*models.TeamAssignment, error) {
	data, err := v.Get(ctx, assignmentKey(key))
	if err != nil {
		return nil, err
	}
	return decodeAssignment(data)
}

func (v *valkeySingleImpl) SetAssignment(ctx context.Context, key string, assignment *models.TeamAssignment, ttl time.Duration) error {
	return v.Set(ctx, assignmentKey(key), assignment, ttl)
}

func (v *valkeySingleImpl) InvalidateAssignment(ctx context.Context, key string) error {
	return v.Delete(ctx, assignmentKey(key))
}
