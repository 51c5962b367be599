package domain

import "time"

// AutoAcceptRule selects which of the two overlapping auto-accept conditions
// wins: the seller's target (asking) price, the auto-accept threshold
// fraction of the listing price, or either one.
type AutoAcceptRule string

const (
	AutoAcceptEither    AutoAcceptRule = "either"
	AutoAcceptTarget    AutoAcceptRule = "target"
	AutoAcceptThreshold AutoAcceptRule = "threshold"
)

// SellerPolicy is the per-seller agent configuration. It is created with
// defaults on first opt-in, mutated only by the seller, and read-only to the
// decision engine.
type SellerPolicy struct {
	SellerID            string
	Enabled             bool
	Aggressiveness      float64 // 0 conservative .. 1 aggressive
	AutoAcceptThreshold float64 // fraction of asking price
	MinAcceptableRatio  float64 // hard floor fraction, never bypassed
	MaxRounds           int
	ResponseDelay       time.Duration
	AutoAcceptRule      AutoAcceptRule
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultPolicy is the single source of default thresholds, injected wherever
// a seller record is missing. Callers must treat it as immutable.
func DefaultPolicy(sellerID string) SellerPolicy {
	return SellerPolicy{
		SellerID:            sellerID,
		Enabled:             true,
		Aggressiveness:      0.5,
		AutoAcceptThreshold: 0.95,
		MinAcceptableRatio:  0.75,
		MaxRounds:           8,
		ResponseDelay:       0,
		AutoAcceptRule:      AutoAcceptEither,
	}
}

// FloorPrice returns the lowest settlement the policy permits for the given
// listing price.
func (p SellerPolicy) FloorPrice(listingPrice float64) float64 {
	return p.MinAcceptableRatio * listingPrice
}
