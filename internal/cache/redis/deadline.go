package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// deadlineSetKey is the sorted set holding auction decision deadlines,
// scored by unix seconds so expired entries are range-scannable.
const deadlineSetKey = "negotiation_deadlines"

// DeadlineStore implements domain.DeadlineStore using a Redis sorted set.
type DeadlineStore struct {
	rdb *redis.Client
}

// NewDeadlineStore creates a DeadlineStore backed by the given Client.
func NewDeadlineStore(c *Client) *DeadlineStore {
	return &DeadlineStore{rdb: c.Underlying()}
}

// SetDeadline schedules or extends the decision deadline for a negotiation.
func (d *DeadlineStore) SetDeadline(ctx context.Context, negotiationID string, deadline time.Time) error {
	err := d.rdb.ZAdd(ctx, deadlineSetKey, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: negotiationID,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: set deadline %s: %w", negotiationID, err)
	}
	return nil
}

// GetDeadline returns the scheduled deadline, or ErrNotFound when none is
// set.
func (d *DeadlineStore) GetDeadline(ctx context.Context, negotiationID string) (time.Time, error) {
	score, err := d.rdb.ZScore(ctx, deadlineSetKey, negotiationID).Result()
	if err == redis.Nil {
		return time.Time{}, fmt.Errorf("redis: deadline %s: %w", negotiationID, domain.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: get deadline %s: %w", negotiationID, err)
	}
	return time.Unix(int64(score), 0).UTC(), nil
}

// ClearDeadline removes the deadline. Clearing a missing deadline is a no-op.
func (d *DeadlineStore) ClearDeadline(ctx context.Context, negotiationID string) error {
	if err := d.rdb.ZRem(ctx, deadlineSetKey, negotiationID).Err(); err != nil {
		return fmt.Errorf("redis: clear deadline %s: %w", negotiationID, err)
	}
	return nil
}

// ListExpired returns the negotiations whose deadline has passed, oldest
// first. The sweep re-decides these.
func (d *DeadlineStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := d.rdb.ZRangeByScore(ctx, deadlineSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list expired deadlines: %w", err)
	}
	return ids, nil
}

// Compile-time interface check.
var _ domain.DeadlineStore = (*DeadlineStore)(nil)
