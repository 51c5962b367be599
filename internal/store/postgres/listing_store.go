package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// GetByID returns a listing snapshot.
func (s *ListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	const query = `
		SELECT id, seller_id, name, furniture_type, condition, starting_price,
			view_count, agent_enabled, is_available, created_at
		FROM listings WHERE id = $1`

	var l domain.Listing
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.SellerID, &l.Name, &l.FurnitureType, &l.Condition,
		&l.StartingPrice, &l.ViewCount, &l.AgentEnabled, &l.Available, &l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("postgres: listing %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Listing{}, fmt.Errorf("postgres: get listing: %w", err)
	}
	return l, nil
}

// MarkSold flips the availability flag and records the final price. Selling
// an already-sold listing is a no-op reported as ErrNotActive.
func (s *ListingStore) MarkSold(ctx context.Context, id string, finalPrice float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET is_available = FALSE, final_price = $2, sold_at = $3
		WHERE id = $1 AND is_available = TRUE`,
		id, finalPrice, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark listing sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: listing %s already sold or missing: %w", id, domain.ErrNotActive)
	}
	return nil
}
