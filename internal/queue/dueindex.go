package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DueIndex keeps resolved pending jobs in a Redis sorted set scored by their
// delivery instant, so the firing loop can pull due IDs without scanning
// Postgres. Postgres stays authoritative; the index is rebuilt opportunistically
// by the loop's periodic sweep if Redis loses it.
type DueIndex struct {
	client *redis.Client
	key    string
}

// NewDueIndex builds the index on an existing Redis client.
func NewDueIndex(client *redis.Client) *DueIndex {
	return &DueIndex{client: client, key: "delivery:due"}
}

// Add records (or rescores) a job's delivery instant.
func (d *DueIndex) Add(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	return d.client.ZAdd(ctx, d.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: jobID.String(),
	}).Err()
}

// Remove drops a job from the index.
func (d *DueIndex) Remove(ctx context.Context, jobID uuid.UUID) error {
	return d.client.ZRem(ctx, d.key, jobID.String()).Err()
}

// Due returns up to limit job IDs whose delivery instant is at or before now.
func (d *DueIndex) Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	members, err := d.client.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Foreign garbage in the set; drop it rather than loop on it.
			_ = d.client.ZRem(ctx, d.key, m).Err()
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Depth returns the number of indexed jobs.
func (d *DueIndex) Depth(ctx context.Context) (int64, error) {
	return d.client.ZCard(ctx, d.key).Result()
}
