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

// PolicyStore implements domain.PolicyStore using PostgreSQL.
type PolicyStore struct {
	pool *pgxpool.Pool
}

// NewPolicyStore creates a new PolicyStore backed by the given connection pool.
func NewPolicyStore(pool *pgxpool.Pool) *PolicyStore {
	return &PolicyStore{pool: pool}
}

// GetBySeller returns the seller's agent policy. Callers substitute the
// default policy on ErrNotFound.
func (s *PolicyStore) GetBySeller(ctx context.Context, sellerID string) (domain.SellerPolicy, error) {
	const query = `
		SELECT seller_id, enabled, aggressiveness, auto_accept_threshold,
			min_acceptable_ratio, max_rounds, response_delay_ms,
			auto_accept_rule, created_at, updated_at
		FROM seller_policies WHERE seller_id = $1`

	var (
		p       domain.SellerPolicy
		delayMS int64
	)
	err := s.pool.QueryRow(ctx, query, sellerID).Scan(
		&p.SellerID, &p.Enabled, &p.Aggressiveness, &p.AutoAcceptThreshold,
		&p.MinAcceptableRatio, &p.MaxRounds, &delayMS,
		&p.AutoAcceptRule, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SellerPolicy{}, fmt.Errorf("postgres: policy for seller %s: %w", sellerID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SellerPolicy{}, fmt.Errorf("postgres: get seller policy: %w", err)
	}
	p.ResponseDelay = time.Duration(delayMS) * time.Millisecond
	return p, nil
}

// Upsert writes the policy, creating the row on first opt-in.
func (s *PolicyStore) Upsert(ctx context.Context, p domain.SellerPolicy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seller_policies (
			seller_id, enabled, aggressiveness, auto_accept_threshold,
			min_acceptable_ratio, max_rounds, response_delay_ms, auto_accept_rule
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (seller_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			aggressiveness = EXCLUDED.aggressiveness,
			auto_accept_threshold = EXCLUDED.auto_accept_threshold,
			min_acceptable_ratio = EXCLUDED.min_acceptable_ratio,
			max_rounds = EXCLUDED.max_rounds,
			response_delay_ms = EXCLUDED.response_delay_ms,
			auto_accept_rule = EXCLUDED.auto_accept_rule,
			updated_at = NOW()`,
		p.SellerID, p.Enabled, p.Aggressiveness, p.AutoAcceptThreshold,
		p.MinAcceptableRatio, p.MaxRounds, p.ResponseDelay.Milliseconds(), p.AutoAcceptRule,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert seller policy: %w", err)
	}
	return nil
}
