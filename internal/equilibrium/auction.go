package equilibrium

import (
	"math"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Auction-mode constants. Reserve floors keep the seller from being bid down
// below market, and deadline tiers shorten as bidding heats up.
const (
	reserveMarketFloor  = 0.80 // reserve never below 80% of market value
	reserveRivalPremium = 1.10 // reserve at least 10% over the best rival bid
	hotBidWindow        = 6 * time.Hour
	warmBidWindow       = 24 * time.Hour
	hotDeadline         = 4 * time.Hour
	warmDeadline        = 12 * time.Hour
	coldDeadline        = 24 * time.Hour
)

// AuctionInput describes a multi-buyer situation on one listing.
type AuctionInput struct {
	SellerTarget  float64
	MarketValue   float64
	HighestBid    float64
	BidderCount   int
	LastBidAt     time.Time
	RecentBidding bool
	Now           time.Time
}

// AuctionResult is the auction-dynamics verdict: hold out for the reserve,
// and how long to let the field bid before deciding.
type AuctionResult struct {
	OptimalReserve     float64       `json:"optimalReserve"`
	Deadline           time.Duration `json:"deadline"`
	DecideBy           time.Time     `json:"decideBy"`
	IntensityScore     float64       `json:"intensityScore"`
	ExpectedFinalPrice float64       `json:"expectedFinalPrice"`
}

// ComputeAuction derives the reserve price and decision deadline for a
// listing with competing bidders. The reserve is the max of the seller's
// target, a floor fraction of market value, and a premium over the standing
// high bid.
func ComputeAuction(in AuctionInput) AuctionResult {
	reserve := in.SellerTarget
	if f := reserveMarketFloor * in.MarketValue; f > reserve {
		reserve = f
	}
	if f := reserveRivalPremium * in.HighestBid; f > reserve {
		reserve = f
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	deadline := coldDeadline
	if !in.LastBidAt.IsZero() {
		age := now.Sub(in.LastBidAt)
		switch {
		case age <= hotBidWindow:
			deadline = hotDeadline
		case age <= warmBidWindow:
			deadline = warmDeadline
		}
	} else if in.RecentBidding {
		deadline = hotDeadline
	}

	intensity := 0.25 * math.Min(float64(in.BidderCount), 3)
	if in.RecentBidding {
		intensity += 0.25
	}
	intensity = clamp(intensity, 0, 1)

	base := math.Max(in.HighestBid, reserve)
	res := AuctionResult{
		OptimalReserve:     reserve,
		Deadline:           deadline,
		DecideBy:           now.Add(deadline),
		IntensityScore:     intensity,
		ExpectedFinalPrice: base * (1 + 0.10*intensity),
	}
	return res
}

// InAuctionMode reports whether the competition facet justifies switching
// from bilateral bargaining to auction dynamics.
func InAuctionMode(c domain.Competition) bool {
	return c.Count >= 2
}
