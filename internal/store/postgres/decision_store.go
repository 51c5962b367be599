package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL. The table
// is append-only; this type deliberately has no update or delete methods
// besides the archive-driven DeleteBefore.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore backed by the given connection
// pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

const decisionSelectCols = `id, negotiation_id, item_id, seller_id, decision,
	offer_price, recommended_price, executed_price, confidence, reasoning,
	market_conditions, error, execution_time_ms, created_at`

func scanDecisionRows(rows pgx.Rows) ([]domain.DecisionRecord, error) {
	var out []domain.DecisionRecord
	for rows.Next() {
		var r domain.DecisionRecord
		if err := rows.Scan(
			&r.ID, &r.NegotiationID, &r.ItemID, &r.SellerID, &r.Decision,
			&r.OfferPrice, &r.RecommendedPrice, &r.ExecutedPrice, &r.Confidence,
			&r.Reasoning, &r.MarketConditions, &r.Error, &r.ExecutionTimeMs, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert appends one decision record.
func (s *DecisionStore) Insert(ctx context.Context, r domain.DecisionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_decisions (
			id, negotiation_id, item_id, seller_id, decision,
			offer_price, recommended_price, executed_price, confidence,
			reasoning, market_conditions, error, execution_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.NegotiationID, r.ItemID, r.SellerID, r.Decision,
		r.OfferPrice, r.RecommendedPrice, r.ExecutedPrice, r.Confidence,
		r.Reasoning, r.MarketConditions, r.Error, r.ExecutionTimeMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision record: %w", err)
	}
	return nil
}

// ListByNegotiation returns a negotiation's decision trail, oldest first.
func (s *DecisionStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.DecisionRecord, error) {
	query := `SELECT ` + decisionSelectCols + `
		FROM agent_decisions WHERE negotiation_id = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions by negotiation: %w", err)
	}
	defer rows.Close()

	out, err := scanDecisionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan decisions: %w", err)
	}
	return out, nil
}

// ListRecent returns recent decisions with pagination and optional time
// filtering, newest first.
func (s *DecisionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	query := `SELECT ` + decisionSelectCols + ` FROM agent_decisions`
	args := []any{}
	argIdx := 1
	where := ""

	if opts.Since != nil {
		where = fmt.Sprintf(" WHERE created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		if where == "" {
			where = fmt.Sprintf(" WHERE created_at <= $%d", argIdx)
		} else {
			where += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		}
		args = append(args, *opts.Until)
		argIdx++
	}
	query += where + " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent decisions: %w", err)
	}
	defer rows.Close()

	out, err := scanDecisionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent decisions: %w", err)
	}
	return out, nil
}

// ListBefore returns all records older than the given time (for archiving).
func (s *DecisionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.DecisionRecord, error) {
	query := `SELECT ` + decisionSelectCols + `
		FROM agent_decisions WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions before: %w", err)
	}
	defer rows.Close()
	return scanDecisionRows(rows)
}

// DeleteBefore removes records older than the given time. It is called only
// by the archiver, after the archive upload is verified.
func (s *DecisionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent_decisions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete decisions before: %w", err)
	}
	return tag.RowsAffected(), nil
}
