package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"order-crm/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	cacheKeyPrefix = "crm_stats:"
	versionKey     = cacheKeyPrefix + "version"
)

// Cache stores computed statistics per visibility scope. Bumping the
// version key orphans every cached entry at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Scope identifies the set of orders a principal's statistics cover.
func Scope(actor models.Principal) string {
	if actor.IsAdmin() {
		return "all"
	}
	shops := append([]string{}, actor.Shops...)
	sort.Strings(shops)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(shops, "\x00"))).String()
}

func (c *Cache) key(ctx context.Context, scope string) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%sv%d:%s", cacheKeyPrefix, version, scope), nil
}

// Get returns the cached statistics for scope; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, scope string) (stats models.DashboardStats, ok bool, err error) {
	key, err := c.key(ctx, scope)
	if err != nil {
		return stats, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, err
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return stats, false, err
	}
	return stats, true, nil
}

func (c *Cache) Set(ctx context.Context, scope string, stats models.DashboardStats) error {
	key, err := c.key(ctx, scope)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the version so every scope recomputes.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}
