package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/equilibrium"
)

type fixedListingStore struct {
	listing domain.Listing
}

func (f *fixedListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	return f.listing, nil
}

func (f *fixedListingStore) MarkSold(ctx context.Context, id string, finalPrice float64) error {
	return nil
}

func TestAppraiseToolUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := &fixedListingStore{listing: domain.Listing{
		ID:            "item-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "excellent",
		StartingPrice: 1000,
		CreatedAt:     fixed.Add(-10 * 24 * time.Hour),
	}}
	tool := appraiseTool{listings: store, now: func() time.Time { return fixed }}

	out, err := tool.Execute(context.Background(), map[string]any{"itemId": "item-1"})
	require.NoError(t, err)

	v, ok := out.(equilibrium.Valuation)
	require.True(t, ok)
	require.InDelta(t, 0.95, v.TimeFactor, 1e-9)
	require.InDelta(t, 874, v.MarketValue, 1e-6)
}
