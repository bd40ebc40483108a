package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/config"
	"github.com/timepulse/timepulse-api/internal/models"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// SnapshotCache keeps race capacity snapshots in redis for a short TTL.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(raceID uuid.UUID) string {
	return "waitlist:snapshot:" + raceID.String()
}

// Get returns (nil, nil) on a cache miss.
func (c *SnapshotCache) Get(ctx context.Context, raceID uuid.UUID) (*models.CapacitySnapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey(raceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.CapacitySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil
	}
	return &snap, nil
}

func (c *SnapshotCache) Set(ctx context.Context, snap *models.CapacitySnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(snap.RaceID), raw, c.ttl).Err()
}

func (c *SnapshotCache) Invalidate(ctx context.Context, raceID uuid.UUID) error {
	return c.client.Del(ctx, snapshotKey(raceID)).Err()
}
