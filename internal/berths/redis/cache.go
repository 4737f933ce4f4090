package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-reservation/internal/models"

	"github.com/go-redis/redis/v8"
)

const availabilityKey = "available_berths"

// Cache keeps the aggregated free-berth counts for the availability endpoint.
// It is never consulted when a booking is admitted.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		Client: client,
		TTL:    ttl,
	}
}

// Get returns the cached counts. A miss is reported with ok=false and a nil error.
func (c *Cache) Get(ctx context.Context) (map[models.BerthType]int, bool, error) {
	raw, err := c.Client.Get(ctx, availabilityKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", availabilityKey, err)
	}

	var counts map[models.BerthType]int
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", availabilityKey, err)
	}
	return counts, true, nil
}

func (c *Cache) Set(ctx context.Context, counts map[models.BerthType]int) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encode %s: %w", availabilityKey, err)
	}
	if err := c.Client.Set(ctx, availabilityKey, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", availabilityKey, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.Client.Del(ctx, availabilityKey).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", availabilityKey, err)
	}
	return nil
}
