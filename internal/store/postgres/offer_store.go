package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// OfferStore implements domain.OfferStore using PostgreSQL. Offers are
// immutable; there are no update methods.
type OfferStore struct {
	pool *pgxpool.Pool
}

// NewOfferStore creates a new OfferStore backed by the given connection pool.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

// Create inserts one offer row.
func (s *OfferStore) Create(ctx context.Context, o domain.Offer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO offers (
			id, negotiation_id, side, price, message,
			round_number, is_counter, agent_generated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.NegotiationID, o.Side, o.Price, o.Message,
		o.RoundNumber, o.IsCounter, o.AgentGenerated, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert offer: %w", err)
	}
	return nil
}

// ListByNegotiation returns a negotiation's offers in insertion order.
func (s *OfferStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, negotiation_id, side, price, message,
			round_number, is_counter, agent_generated, created_at
		FROM offers
		WHERE negotiation_id = $1
		ORDER BY created_at ASC, round_number ASC`,
		negotiationID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offers: %w", err)
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(
			&o.ID, &o.NegotiationID, &o.Side, &o.Price, &o.Message,
			&o.RoundNumber, &o.IsCounter, &o.AgentGenerated, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
