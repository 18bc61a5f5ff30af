// Package cache provides a Redis backed JSON cache with typed invalidation
// tags. Cached keys embed the version counter of every tag they depend on, so
// invalidating a tag orphans the old keys instead of scanning for them; stale
// entries age out through the TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tag identifies an entity whose mutation invalidates dependent cache entries.
type Tag struct {
	Entity string
	ID     int64
}

func (t Tag) versionKey() string {
	return fmt.Sprintf("cache:ver:%s:%d", t.Entity, t.ID)
}

// String renders the tag for cache key composition.
func (t Tag) String() string {
	return fmt.Sprintf("%s.%d", t.Entity, t.ID)
}

// Cache wraps Redis based caching keyed by tag versions.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New instantiates the cache helper.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// BuildKey composes a cache key from the base parts and the current version of
// each tag. A missing version counter reads as zero.
func (c *Cache) BuildKey(ctx context.Context, base string, tags ...Tag) (string, error) {
	if c == nil || c.client == nil || len(tags) == 0 {
		return base, nil
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity < sorted[j].Entity
		}
		return sorted[i].ID < sorted[j].ID
	})
	keys := make([]string, len(sorted))
	for i, tag := range sorted {
		keys[i] = tag.versionKey()
	}
	versions, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return "", fmt.Errorf("cache: read tag versions: %w", err)
	}
	parts := make([]string, 0, len(sorted)+1)
	parts = append(parts, base)
	for i, tag := range sorted {
		ver := int64(0)
		if raw, ok := versions[i].(string); ok {
			if parsed, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				ver = parsed
			}
		}
		parts = append(parts, fmt.Sprintf("%s=%d", tag.String(), ver))
	}
	return strings.Join(parts, "|"), nil
}

// FetchJSON loads a cached value or populates it using the loader. The entry is
// bound to the given tags; invalidating any of them makes the entry unreachable.
func (c *Cache) FetchJSON(ctx context.Context, base string, tags []Tag, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	key, err := c.BuildKey(ctx, base, tags...)
	if err != nil {
		return err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate bumps the version counter of each tag.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) error {
	if c == nil || c.client == nil {
		return nil
	}
	for _, tag := range tags {
		if err := c.client.Incr(ctx, tag.versionKey()).Err(); err != nil {
			return fmt.Errorf("cache: invalidate %s: %w", tag, err)
		}
	}
	return nil
}
