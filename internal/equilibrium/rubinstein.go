// Package equilibrium computes counter prices from a finite-horizon
// alternating-offers bargaining model, plus the auction-dynamics and market
// analysis companion routines. Everything here is pure computation; callers
// supply the inputs and apply guardrails to the outputs.
package equilibrium

import (
	"fmt"
	"math"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Recommendation is the qualitative verdict attached to a computed price.
type Recommendation string

const (
	RecommendAccept              Recommendation = "ACCEPT"
	RecommendCounter             Recommendation = "COUNTER"
	RecommendCounterConservative Recommendation = "COUNTER_CONSERVATIVE"
	RecommendConsiderCounter     Recommendation = "CONSIDER_COUNTER"
)

// Model constants. Discount factors decay with round number and seller
// urgency; buyers decay slightly faster, reflecting typical buyer attrition.
const (
	sellerBaseDiscount  = 0.95
	sellerRoundDecay    = 0.030
	sellerUrgencyDecay  = 0.20
	buyerBaseDiscount   = 0.93
	buyerRoundDecay     = 0.035
	minDiscount         = 0.50
	maxDiscount         = 0.99
	risingTrendFactor   = 0.85 // scale the counter increment down to keep momentum
	fallingTrendFactor  = 1.15 // scale up to test the buyer's true ceiling
	competitionPullStep = 0.12 // per-competitor pull toward estimated buyer max
	competitionPullCap  = 0.50
	upperBoundSlack     = 1.05 // upper clamp: estimatedBuyerMax x slack
	risingUpperSpread   = 1.18 // tightened upper clamp when buyer is trending up
)

// Input carries everything Compute needs. BuyerHistory holds prior
// buyer-side prices in chronological order, excluding the current offer.
type Input struct {
	SellerTarget      float64
	BuyerOffer        float64
	EstimatedBuyerMax float64
	MarketValue       float64
	Round             int
	Urgency           float64 // 0 patient .. 1 desperate
	CompetitorCount   int
	BuyerHistory      []float64
	BuyerMomentum     domain.BuyerMomentum
}

// Result is the solver output.
type Result struct {
	NashPrice      float64        `json:"nashPrice"`
	Confidence     float64        `json:"confidence"`
	ExpectedProfit float64        `json:"expectedProfit"`
	ProfitMargin   float64        `json:"profitMargin"`
	SellerPower    float64        `json:"sellerPower"`
	BuyerPower     float64        `json:"buyerPower"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
}

// Compute solves the bargaining model and classifies the outcome.
func Compute(in Input) (Result, error) {
	if in.BuyerOffer <= 0 || in.SellerTarget <= 0 {
		return Result{}, fmt.Errorf("equilibrium: prices must be positive: %w", domain.ErrInvalidInput)
	}
	if in.EstimatedBuyerMax < in.BuyerOffer {
		in.EstimatedBuyerMax = in.BuyerOffer
	}
	urgency := clamp(in.Urgency, 0, 1)
	round := in.Round
	if round < 1 {
		round = 1
	}

	deltaSeller := clamp(sellerBaseDiscount-sellerRoundDecay*float64(round)-sellerUrgencyDecay*urgency, minDiscount, maxDiscount)
	deltaBuyer := clamp(buyerBaseDiscount-buyerRoundDecay*float64(round), minDiscount, maxDiscount)

	sellerPower := bargainingPower(in.CompetitorCount, urgency, in.BuyerMomentum)
	buyerPower := 1 - sellerPower

	// Rubinstein proposer share over the surplus between the standing offer
	// and the buyer's estimated ceiling, blended with the power term.
	share := (1 - deltaBuyer) / (1 - deltaSeller*deltaBuyer)
	share = clamp(0.5*share+0.5*sellerPower, 0, 1)

	surplus := in.EstimatedBuyerMax - in.BuyerOffer
	price := in.BuyerOffer + share*surplus

	trend := in.BuyerMomentum
	if trend == "" || trend == domain.MomentumUnknown {
		trend = trendDirection(in.BuyerHistory)
	}
	switch trend {
	case domain.MomentumIncreasing:
		price = in.BuyerOffer + (price-in.BuyerOffer)*risingTrendFactor
	case domain.MomentumDecreasing:
		price = in.BuyerOffer + (price-in.BuyerOffer)*fallingTrendFactor
	}

	// Auction pressure: with two or more rival offers, pull toward the
	// estimated buyer ceiling proportionally to the field size.
	if in.CompetitorCount >= 2 {
		pull := math.Min(competitionPullStep*float64(in.CompetitorCount), competitionPullCap)
		price += (in.EstimatedBuyerMax - price) * pull
	}

	lower := in.BuyerOffer
	upper := in.EstimatedBuyerMax * upperBoundSlack
	if trend == domain.MomentumIncreasing {
		// Tighten the spread so counters stay small, momentum-preserving
		// increments rather than large jumps.
		upper = math.Min(upper, in.BuyerOffer*risingUpperSpread)
	}
	price = clamp(price, lower, upper)

	res := Result{
		NashPrice:   price,
		SellerPower: sellerPower,
		BuyerPower:  buyerPower,
		Confidence:  confidence(in.MarketValue, in.EstimatedBuyerMax, round, len(in.BuyerHistory)),
	}
	res.ExpectedProfit = price - in.SellerTarget
	res.ProfitMargin = res.ExpectedProfit / in.SellerTarget

	res.Recommendation, res.Reasoning = classify(price, in.BuyerOffer, trend)
	return res, nil
}

// classify applies the ordered recommendation table; the first matching rule
// wins.
func classify(price, buyerOffer float64, trend domain.BuyerMomentum) (Recommendation, string) {
	increase := (price - buyerOffer) / buyerOffer
	switch {
	case trend == domain.MomentumIncreasing && increase <= 0.10:
		return RecommendCounterConservative,
			fmt.Sprintf("buyer is trending up; a small %.1f%% ask preserves momentum", increase*100)
	case trend == domain.MomentumIncreasing && increase > 0.15:
		return RecommendAccept,
			"buyer is trending up and the model asks for a large jump; accepting avoids killing a near-done deal"
	case increase > 0.15:
		return RecommendCounter,
			fmt.Sprintf("equilibrium price is %.1f%% above the offer; counter", increase*100)
	case increase > 0.05:
		return RecommendConsiderCounter,
			fmt.Sprintf("equilibrium price is %.1f%% above the offer; a counter is worth considering", increase*100)
	default:
		return RecommendAccept,
			fmt.Sprintf("equilibrium price is within %.1f%% of the offer; accept", increase*100)
	}
}

// bargainingPower scores the seller's position from competition and urgency,
// nudged by buyer momentum: a rising buyer lets the seller afford patience.
func bargainingPower(competitors int, urgency float64, momentum domain.BuyerMomentum) float64 {
	power := 0.5 + 0.08*math.Min(float64(competitors), 4) - 0.25*urgency
	switch momentum {
	case domain.MomentumIncreasing:
		power += 0.05
	case domain.MomentumDecreasing:
		power -= 0.05
	}
	return clamp(power, 0.05, 0.95)
}

// confidence combines information quality (divergence between market value
// and the buyer-max estimate), a round-based decay, and a bonus for having
// at least two points of buyer history.
func confidence(marketValue, estimatedBuyerMax float64, round, historyPoints int) float64 {
	quality := 0.5
	if marketValue > 0 && estimatedBuyerMax > 0 {
		divergence := math.Abs(marketValue-estimatedBuyerMax) / math.Max(marketValue, estimatedBuyerMax)
		quality = clamp(1-divergence, 0, 1)
	}
	c := 0.35 + 0.45*quality - 0.04*float64(round)
	if historyPoints >= 2 {
		c += 0.10
	}
	return clamp(c, 0.05, 0.95)
}

// trendDirection reads direction from the last two points of buyer history.
func trendDirection(history []float64) domain.BuyerMomentum {
	if len(history) < 2 {
		return domain.MomentumNew
	}
	last, prev := history[len(history)-1], history[len(history)-2]
	switch {
	case last > prev:
		return domain.MomentumIncreasing
	case last < prev:
		return domain.MomentumDecreasing
	default:
		return domain.MomentumStagnant
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
