// Package lock guards crawl messages against concurrent duplicate delivery.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/monitoring"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "crawler:inflight:"

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Lease is a held in-flight marker
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Guard marks messages as in flight in Redis. The TTL bounds how long a
// crashed consumer keeps a page blocked.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewGuard creates a guard whose markers expire after ttl
func NewGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Guard{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Key builds the marker key for a stage and page
func Key(stage, pageID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, stage, pageID)
}

// Acquire marks key as in flight. A nil lease with a nil error means
// another consumer holds the key.
func (g *Guard) Acquire(ctx context.Context, key string) (*Lease, error) {
	start := time.Now()
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	monitoring.RecordRedisMetrics("setnx", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire in-flight marker: %w", err)
	}
	if !ok {
		g.logger.Debug("In-flight marker already held", "key", key)
		return nil, nil
	}

	return &Lease{
		Key:       key,
		Token:     token,
		ExpiresAt: start.Add(g.ttl),
	}, nil
}

// Release drops the marker if it still belongs to lease
func (g *Guard) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}

	start := time.Now()
	n, err := releaseScript.Run(ctx, g.client, []string{lease.Key}, lease.Token).Int()
	monitoring.RecordRedisMetrics("release", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to release in-flight marker: %w", err)
	}
	if n == 0 {
		g.logger.Warn("In-flight marker expired or taken over before release", "key", lease.Key)
	}
	return nil
}

// Held reports whether key is currently marked
func (g *Guard) Held(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
