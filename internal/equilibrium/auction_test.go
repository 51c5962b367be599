package equilibrium

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

func TestComputeAuctionReserveIsMaxOfFloors(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Market floor dominates: 0.80 * 1200 = 960 > target 800 and 1.10 * 850 = 935.
	res := ComputeAuction(AuctionInput{
		SellerTarget: 800,
		MarketValue:  1200,
		HighestBid:   850,
		BidderCount:  2,
		Now:          now,
	})
	require.InDelta(t, 960, res.OptimalReserve, 1e-9)

	// Rival premium dominates: 1.10 * 900 = 990.
	res = ComputeAuction(AuctionInput{
		SellerTarget: 800,
		MarketValue:  1200,
		HighestBid:   900,
		BidderCount:  2,
		Now:          now,
	})
	require.InDelta(t, 990, res.OptimalReserve, 1e-9)

	// Target dominates when bids and market are soft.
	res = ComputeAuction(AuctionInput{
		SellerTarget: 1500,
		MarketValue:  1200,
		HighestBid:   900,
		BidderCount:  2,
		Now:          now,
	})
	require.InDelta(t, 1500, res.OptimalReserve, 1e-9)
}

func TestComputeAuctionDeadlineTiers(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		lastBid  time.Time
		recent   bool
		deadline time.Duration
	}{
		{"hot bidding", now.Add(-3 * time.Hour), false, 4 * time.Hour},
		{"warm bidding", now.Add(-10 * time.Hour), false, 12 * time.Hour},
		{"cold bidding", now.Add(-30 * time.Hour), false, 24 * time.Hour},
		{"no timestamp but recent activity", time.Time{}, true, 4 * time.Hour},
		{"no timestamp and quiet", time.Time{}, false, 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ComputeAuction(AuctionInput{
				SellerTarget:  500,
				MarketValue:   600,
				HighestBid:    450,
				BidderCount:   2,
				LastBidAt:     tc.lastBid,
				RecentBidding: tc.recent,
				Now:           now,
			})
			require.Equal(t, tc.deadline, res.Deadline)
			require.Equal(t, now.Add(tc.deadline), res.DecideBy)
		})
	}
}

func TestComputeAuctionIntensityAndExpectedPrice(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	res := ComputeAuction(AuctionInput{
		SellerTarget:  800,
		MarketValue:   1000,
		HighestBid:    900,
		BidderCount:   2,
		RecentBidding: true,
		Now:           now,
	})
	require.InDelta(t, 0.75, res.IntensityScore, 1e-9)
	// Reserve 1.10*900=990 exceeds the standing bid, so it anchors the forecast.
	require.InDelta(t, 990*1.075, res.ExpectedFinalPrice, 1e-6)

	// Bidder count saturates at three.
	res = ComputeAuction(AuctionInput{
		SellerTarget:  800,
		MarketValue:   1000,
		HighestBid:    900,
		BidderCount:   7,
		RecentBidding: true,
		Now:           now,
	})
	require.InDelta(t, 1.0, res.IntensityScore, 1e-9)
}

func TestInAuctionMode(t *testing.T) {
	require.False(t, InAuctionMode(domain.Competition{Count: 0}))
	require.False(t, InAuctionMode(domain.Competition{Count: 1}))
	require.True(t, InAuctionMode(domain.Competition{Count: 2}))
	require.True(t, InAuctionMode(domain.Competition{Count: 5}))
}
