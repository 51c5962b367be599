package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// TaskStore implements domain.TaskStore using PostgreSQL.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore creates a new TaskStore backed by the given connection pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// Enqueue adds a pending task. Duplicate IDs are ignored so retried webhook
// deliveries do not double-queue.
func (s *TaskStore) Enqueue(ctx context.Context, t domain.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_tasks (
			id, negotiation_id, offer_id, seller_id, item_id,
			listing_price, offer_price, furniture_type, min_acceptable_ratio,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.NegotiationID, t.OfferID, t.SellerID, t.ItemID,
		t.ListingPrice, t.OfferPrice, t.FurnitureType, t.MinAcceptableRatio,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: enqueue task: %w", err)
	}
	return nil
}

// DequeuePending claims up to limit pending tasks, marking them processing.
// FOR UPDATE SKIP LOCKED lets multiple sweepers share the backlog without
// claiming the same row twice.
func (s *TaskStore) DequeuePending(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE agent_tasks SET status = 'processing'
		WHERE id IN (
			SELECT id FROM agent_tasks
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, negotiation_id, offer_id, seller_id, item_id,
			listing_price, offer_price, furniture_type, min_acceptable_ratio,
			status, error, created_at, processed_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: dequeue tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(
			&t.ID, &t.NegotiationID, &t.OfferID, &t.SellerID, &t.ItemID,
			&t.ListingPrice, &t.OfferPrice, &t.FurnitureType, &t.MinAcceptableRatio,
			&t.Status, &t.Error, &t.CreatedAt, &t.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkDone finishes a task.
func (s *TaskStore) MarkDone(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE agent_tasks SET status = 'done', processed_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark task done: %w", err)
	}
	return nil
}

// MarkFailed records a task failure with its reason.
func (s *TaskStore) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE agent_tasks SET status = 'failed', error = $2, processed_at = $3 WHERE id = $1`,
		id, reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark task failed: %w", err)
	}
	return nil
}
