package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

type fakeListingStore struct {
	listing domain.Listing
	err     error
}

func (f *fakeListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	return f.listing, f.err
}

func (f *fakeListingStore) MarkSold(ctx context.Context, id string, finalPrice float64) error {
	return nil
}

type fakeNegotiationStore struct {
	rivals []domain.Negotiation
	err    error
}

func (f *fakeNegotiationStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	return domain.Negotiation{}, domain.ErrNotFound
}

func (f *fakeNegotiationStore) UpdateStatusIfActive(ctx context.Context, id string, status domain.NegotiationStatus, finalPrice *float64) (bool, error) {
	return false, nil
}

func (f *fakeNegotiationStore) RecordCounter(ctx context.Context, id string, price float64) error {
	return nil
}

func (f *fakeNegotiationStore) ListActiveByItem(ctx context.Context, itemID, excludeID string) ([]domain.Negotiation, error) {
	return f.rivals, f.err
}

type fakeOfferStore struct {
	byNegotiation map[string][]domain.Offer
	err           error
}

func (f *fakeOfferStore) Create(ctx context.Context, offer domain.Offer) error { return nil }

func (f *fakeOfferStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byNegotiation[negotiationID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatherHealthy(t *testing.T) {
	now := time.Now().UTC()
	listings := &fakeListingStore{listing: domain.Listing{
		ID:        "item-1",
		ViewCount: 12,
		CreatedAt: now.Add(-3 * 24 * time.Hour),
	}}
	negotiations := &fakeNegotiationStore{rivals: []domain.Negotiation{
		{ID: "rival-1", CurrentOffer: 400, CreatedAt: now.Add(-2 * time.Hour)},
	}}
	offers := &fakeOfferStore{byNegotiation: map[string][]domain.Offer{
		"neg-1": {
			{Side: domain.OfferSideBuyer, Price: 500},
			{Side: domain.OfferSideSeller, Price: 600},
			{Side: domain.OfferSideBuyer, Price: 550},
		},
		"rival-1": {
			{Side: domain.OfferSideBuyer, Price: 480},
		},
	}}

	g := NewGatherer(listings, negotiations, offers, testLogger())
	ctx := g.Gather(context.Background(), "item-1", "neg-1")

	require.Equal(t, domain.ActivityHigh, ctx.Timing.ActivityLevel)
	require.Equal(t, domain.MarketFresh, ctx.Timing.MarketStatus)
	require.Equal(t, 3, ctx.Timing.DaysOnMarket)
	require.Empty(t, ctx.Timing.Err)

	require.Equal(t, 1, ctx.Competition.Count)
	require.Equal(t, domain.CompetitionMedium, ctx.Competition.Level)
	require.InDelta(t, 480, ctx.Competition.HighestPrice, 1e-9)
	require.True(t, ctx.Competition.RecentActivity)

	require.Equal(t, 2, ctx.History.BuyerOfferCount)
	require.Equal(t, 1, ctx.History.SellerOfferCount)
	require.Equal(t, 2, ctx.History.Rounds)
	require.Equal(t, domain.MomentumIncreasing, ctx.History.BuyerMomentum)
	require.Equal(t, domain.StageMiddle, ctx.History.Stage)
	require.InDelta(t, 550, ctx.History.HighestBuyerOffer, 1e-9)
	require.InDelta(t, 525, ctx.History.AverageBuyerOffer, 1e-9)
	require.Equal(t, []float64{500, 600, 550}, ctx.History.PriceProgression)
	require.False(t, ctx.GatheredAt.IsZero())
}

func TestGatherFacetsDegradeIndependently(t *testing.T) {
	listings := &fakeListingStore{err: errors.New("listing store down")}
	negotiations := &fakeNegotiationStore{err: errors.New("negotiation store down")}
	offers := &fakeOfferStore{err: errors.New("offer store down")}

	g := NewGatherer(listings, negotiations, offers, testLogger())
	ctx := g.Gather(context.Background(), "item-1", "neg-1")

	require.Equal(t, domain.ActivityUnknown, ctx.Timing.ActivityLevel)
	require.Equal(t, domain.MarketUnknown, ctx.Timing.MarketStatus)
	require.NotEmpty(t, ctx.Timing.Err)

	require.Equal(t, domain.CompetitionUnknown, ctx.Competition.Level)
	require.NotEmpty(t, ctx.Competition.Err)

	require.Equal(t, domain.MomentumUnknown, ctx.History.BuyerMomentum)
	require.Equal(t, domain.StageUnknown, ctx.History.Stage)
	require.NotEmpty(t, ctx.History.Err)
}

func TestCompetitionSkipsPricelessRivals(t *testing.T) {
	now := time.Now().UTC()
	negotiations := &fakeNegotiationStore{rivals: []domain.Negotiation{
		{ID: "rival-1", CurrentOffer: 0, CreatedAt: now.Add(-1 * time.Hour)}, // no price signal at all
		{ID: "rival-2", CurrentOffer: 300, CreatedAt: now.Add(-72 * time.Hour)},
	}}
	offers := &fakeOfferStore{byNegotiation: map[string][]domain.Offer{}}

	g := NewGatherer(&fakeListingStore{}, negotiations, offers, testLogger())
	ctx := g.Gather(context.Background(), "item-1", "neg-1")

	require.Equal(t, 1, ctx.Competition.Count)
	require.InDelta(t, 300, ctx.Competition.HighestPrice, 1e-9)
	require.False(t, ctx.Competition.RecentActivity) // the counted rival is older than 48h
}

func TestCompetitionFallsBackToCurrentOffer(t *testing.T) {
	now := time.Now().UTC()
	negotiations := &fakeNegotiationStore{rivals: []domain.Negotiation{
		{ID: "rival-1", CurrentOffer: 420, CreatedAt: now},
	}}
	offers := &fakeOfferStore{err: errors.New("offer store down")}

	g := NewGatherer(&fakeListingStore{}, negotiations, offers, testLogger())
	ctx := g.Gather(context.Background(), "item-1", "neg-1")

	require.Equal(t, 1, ctx.Competition.Count)
	require.InDelta(t, 420, ctx.Competition.HighestPrice, 1e-9)
}

func TestHistorySkipsMessageOnlyRows(t *testing.T) {
	offers := &fakeOfferStore{byNegotiation: map[string][]domain.Offer{
		"neg-1": {
			{Side: domain.OfferSideBuyer, Price: 500},
			{Side: domain.OfferSideBuyer, Price: 0, Message: "is this still available?"},
			{Side: domain.OfferSideBuyer, Price: 450},
		},
	}}

	g := NewGatherer(&fakeListingStore{}, &fakeNegotiationStore{}, offers, testLogger())
	ctx := g.Gather(context.Background(), "item-1", "neg-1")

	require.Equal(t, 2, ctx.History.BuyerOfferCount)
	require.Equal(t, 2, ctx.History.Rounds)
	require.Equal(t, domain.MomentumDecreasing, ctx.History.BuyerMomentum)
	require.Equal(t, []float64{500, 450}, ctx.History.PriceProgression)
}

func TestHistoryStageClassification(t *testing.T) {
	offers := &fakeOfferStore{byNegotiation: map[string][]domain.Offer{
		"neg-1": {{Side: domain.OfferSideBuyer, Price: 500}},
	}}
	g := NewGatherer(&fakeListingStore{}, &fakeNegotiationStore{}, offers, testLogger())

	ctx := g.Gather(context.Background(), "item-1", "neg-1")
	require.Equal(t, domain.StageOpening, ctx.History.Stage)
	require.Equal(t, domain.MomentumNew, ctx.History.BuyerMomentum)

	offers.byNegotiation["neg-1"] = []domain.Offer{
		{Side: domain.OfferSideBuyer, Price: 500},
		{Side: domain.OfferSideSeller, Price: 700},
		{Side: domain.OfferSideBuyer, Price: 550},
		{Side: domain.OfferSideSeller, Price: 680},
		{Side: domain.OfferSideBuyer, Price: 600},
		{Side: domain.OfferSideSeller, Price: 650},
		{Side: domain.OfferSideBuyer, Price: 620},
	}
	ctx = g.Gather(context.Background(), "item-1", "neg-1")
	require.Equal(t, 4, ctx.History.Rounds)
	require.Equal(t, domain.StageClosing, ctx.History.Stage)
}

func TestTimingBoundariesWithFixedClock(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		days     int
		views    int
		status   domain.MarketStatus
		activity domain.ActivityLevel
	}{
		{7, 11, domain.MarketFresh, domain.ActivityHigh},
		{8, 10, domain.MarketActive, domain.ActivityMedium},
		{21, 6, domain.MarketActive, domain.ActivityMedium},
		{22, 5, domain.MarketStale, domain.ActivityLow},
	}
	for _, tc := range cases {
		listings := &fakeListingStore{listing: domain.Listing{
			ID:        "item-1",
			ViewCount: tc.views,
			CreatedAt: fixed.Add(-time.Duration(tc.days) * 24 * time.Hour),
		}}
		g := NewGatherer(listings, &fakeNegotiationStore{}, &fakeOfferStore{}, testLogger())
		g.now = func() time.Time { return fixed }

		bundle := g.Gather(context.Background(), "item-1", "neg-1")
		require.Equal(t, tc.days, bundle.Timing.DaysOnMarket)
		require.Equal(t, tc.status, bundle.Timing.MarketStatus)
		require.Equal(t, tc.activity, bundle.Timing.ActivityLevel)
	}
}
