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

// NegotiationStore implements domain.NegotiationStore using PostgreSQL.
type NegotiationStore struct {
	pool *pgxpool.Pool
}

// NewNegotiationStore creates a new NegotiationStore backed by the given
// connection pool.
func NewNegotiationStore(pool *pgxpool.Pool) *NegotiationStore {
	return &NegotiationStore{pool: pool}
}

const negotiationSelectCols = `id, item_id, seller_id, buyer_id, status,
	current_offer, round_number, max_rounds, final_price,
	created_at, updated_at, completed_at`

func scanNegotiation(row pgx.Row) (domain.Negotiation, error) {
	var n domain.Negotiation
	err := row.Scan(
		&n.ID, &n.ItemID, &n.SellerID, &n.BuyerID, &n.Status,
		&n.CurrentOffer, &n.RoundNumber, &n.MaxRounds, &n.FinalPrice,
		&n.CreatedAt, &n.UpdatedAt, &n.CompletedAt,
	)
	return n, err
}

// GetByID returns one negotiation.
func (s *NegotiationStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	query := `SELECT ` + negotiationSelectCols + ` FROM negotiations WHERE id = $1`
	n, err := scanNegotiation(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Negotiation{}, fmt.Errorf("postgres: negotiation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("postgres: get negotiation: %w", err)
	}
	return n, nil
}

// UpdateStatusIfActive transitions status only while the row is still open
// (active or buyer-accepted) and reports whether this writer won the race. A
// false return with nil error means another actor already moved the
// negotiation.
func (s *NegotiationStore) UpdateStatusIfActive(ctx context.Context, id string, status domain.NegotiationStatus, finalPrice *float64) (bool, error) {
	var completedAt *time.Time
	if status == domain.NegotiationCompleted || status == domain.NegotiationCancelled {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE negotiations
		SET status = $2, final_price = COALESCE($3, final_price),
			completed_at = COALESCE($4, completed_at), updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'buyer_accepted')`,
		id, status, finalPrice, completedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: update negotiation status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordCounter updates the standing offer and bumps the round, but only
// while the negotiation is active.
func (s *NegotiationStore) RecordCounter(ctx context.Context, id string, price float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE negotiations
		SET current_offer = $2, round_number = round_number + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`,
		id, price,
	)
	if err != nil {
		return fmt.Errorf("postgres: record counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: negotiation %s: %w", id, domain.ErrNotActive)
	}
	return nil
}

// ListActiveByItem returns the other open negotiations on an item, oldest
// first. Buyer-accepted threads count: they compete for the item and must be
// cancellable when a rival deal closes. excludeID may be empty.
func (s *NegotiationStore) ListActiveByItem(ctx context.Context, itemID string, excludeID string) ([]domain.Negotiation, error) {
	query := `SELECT ` + negotiationSelectCols + `
		FROM negotiations
		WHERE item_id = $1 AND status IN ('active', 'buyer_accepted')
			AND ($2 = '' OR id::text <> $2)
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, itemID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active negotiations: %w", err)
	}
	defer rows.Close()

	var out []domain.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan negotiation: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
