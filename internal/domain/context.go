package domain

import "time"

// Enumerations for the three market context facets. Every facet carries an
// "unknown" sentinel: a failed sub-query degrades to Unknown instead of
// blocking the decision, and callers must treat Unknown as "assume
// conservative defaults", never as zero.

// ActivityLevel classifies listing view traffic.
type ActivityLevel string

const (
	ActivityHigh    ActivityLevel = "high"
	ActivityMedium  ActivityLevel = "medium"
	ActivityLow     ActivityLevel = "low"
	ActivityUnknown ActivityLevel = "unknown"
)

// MarketStatus classifies how long a listing has been on the market.
type MarketStatus string

const (
	MarketFresh   MarketStatus = "fresh"  // <= 7 days
	MarketActive  MarketStatus = "active" // <= 21 days
	MarketStale   MarketStatus = "stale"
	MarketUnknown MarketStatus = "unknown"
)

// CompetitionLevel classifies rival buyer interest on the same item.
type CompetitionLevel string

const (
	CompetitionNone    CompetitionLevel = "none"
	CompetitionMedium  CompetitionLevel = "medium" // >= 1 competing offer
	CompetitionHigh    CompetitionLevel = "high"   // >= 3 competing offers
	CompetitionUnknown CompetitionLevel = "unknown"
)

// BuyerMomentum classifies the direction of the buyer's last two offers.
type BuyerMomentum string

const (
	MomentumIncreasing BuyerMomentum = "increasing"
	MomentumDecreasing BuyerMomentum = "decreasing"
	MomentumStagnant   BuyerMomentum = "stagnant"
	MomentumNew        BuyerMomentum = "new" // fewer than two buyer offers
	MomentumUnknown    BuyerMomentum = "unknown"
)

// NegotiationStage classifies progress by round count.
type NegotiationStage string

const (
	StageOpening NegotiationStage = "opening" // round <= 1
	StageMiddle  NegotiationStage = "middle"  // round <= 3
	StageClosing NegotiationStage = "closing"
	StageUnknown NegotiationStage = "unknown"
)

// ListingTiming is the freshness/activity facet of the market context.
type ListingTiming struct {
	DaysOnMarket  int           `json:"daysOnMarket"`
	ViewCount     int           `json:"viewCount"`
	ActivityLevel ActivityLevel `json:"activityLevel"`
	MarketStatus  MarketStatus  `json:"marketStatus"`
	Err           string        `json:"error,omitempty"`
}

// Competition is the rival-offer facet of the market context.
type Competition struct {
	Count          int              `json:"count"`
	HighestPrice   float64          `json:"highestPrice"`
	RecentActivity bool             `json:"recentOfferActivity"` // any rival negotiation started within 48h
	Level          CompetitionLevel `json:"competitionLevel"`
	Err            string           `json:"error,omitempty"`
}

// History is the negotiation-history facet of the market context.
type History struct {
	PriceProgression  []float64        `json:"priceProgression"`
	BuyerOfferCount   int              `json:"buyerOfferCount"`
	SellerOfferCount  int              `json:"sellerOfferCount"`
	Rounds            int              `json:"rounds"`
	HighestBuyerOffer float64          `json:"highestBuyerOffer"`
	AverageBuyerOffer float64          `json:"averageBuyerOffer"`
	BuyerMomentum     BuyerMomentum    `json:"buyerMomentum"`
	Stage             NegotiationStage `json:"negotiationStage"`
	Err               string           `json:"error,omitempty"`
}

// MarketContext bundles the three facets computed fresh for every decision.
// It is derived state and is never cached across calls: stale context would
// produce wrong pricing.
type MarketContext struct {
	Timing      ListingTiming `json:"timing"`
	Competition Competition   `json:"competition"`
	History     History       `json:"history"`
	GatheredAt  time.Time     `json:"gatheredAt"`
}
