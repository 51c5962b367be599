// Package policy is the decision state machine. It combines analyzer output,
// market context, and the equilibrium price under the seller's guardrails and
// emits exactly one verdict. The rule ordering here IS the policy: the first
// applicable rule wins, and the floor clamp at the end is never bypassed.
package policy

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/analyzer"
	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/equilibrium"
)

const (
	highConfidence       = 0.70
	exhaustionAcceptMin  = 0.85 // fraction of target accepted on the final round
	lowConfAcceptRatio   = 0.90 // of market value
	lowConfCounterRatio  = 0.80
	highUrgency          = 0.70
	lowUrgency           = 0.30
	urgencyCounterCap    = 1.05 // high urgency caps counters at 5% over the offer
	borderlineAcceptFrac = 0.95 // low urgency upgrades accepts below this fraction of target
	counterRounding      = 5.0  // counters are rounded to the nearest $5
)

// Input is everything a single decision needs. All fields are read-only
// snapshots gathered before Decide runs; Decide itself does no I/O.
type Input struct {
	Task        domain.Task
	Policy      domain.SellerPolicy
	Listing     domain.Listing
	Analysis    analyzer.Result
	Context     domain.MarketContext
	Equilibrium equilibrium.Result
	Auction     *equilibrium.AuctionResult // nil outside auction mode
	Valuation   equilibrium.Valuation
	Urgency     float64
	Round       int
	Now         time.Time
}

// Verdict is the policy output. Price is meaningful for accept and counter;
// Deadline for wait.
type Verdict struct {
	Decision   domain.DecisionType
	Price      float64
	Confidence float64
	Reasoning  string
	Deadline   *time.Time
	Rule       string
}

// Engine evaluates the ordered decision rules.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With(slog.String("component", "decision_policy"))}
}

// Decide walks the rule table, applies the urgency override and rounding, and
// finishes with the hard floor clamp. The clamp is applied to the final price,
// not threaded through the math, so upstream bugs cannot leak a sub-floor
// settlement.
func (e *Engine) Decide(in Input) Verdict {
	target := in.Task.ListingPrice
	offer := in.Task.OfferPrice
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	v := e.baseVerdict(in, target, offer, now)

	// Urgency override, applied to whatever the table chose.
	if v.Decision == domain.DecisionCounter && in.Urgency > highUrgency {
		capped := offer * urgencyCounterCap
		if v.Price > capped {
			v.Price = capped
			v.Rule += "+urgency_cap"
			v.Reasoning += fmt.Sprintf("; high urgency caps the counter at $%.2f", capped)
		}
	}
	if v.Decision == domain.DecisionAccept && in.Urgency < lowUrgency && offer < borderlineAcceptFrac*target {
		v.Decision = domain.DecisionCounter
		v.Price = conservativeCounter(offer, target)
		v.Rule += "+urgency_upgrade"
		v.Reasoning += "; low urgency, countering a borderline accept instead"
	}

	return e.Guardrails(in, v)
}

// Guardrails applies the final rounding and the hard floor clamp to any
// proposed verdict, whether it came from the rule table or the reasoning
// shell. This is the one layer nothing may bypass.
func (e *Engine) Guardrails(in Input, v Verdict) Verdict {
	floor := floorPrice(in)

	if v.Decision == domain.DecisionCounter {
		v.Price = roundToNearest(v.Price, counterRounding)
	}

	if (v.Decision == domain.DecisionAccept || v.Decision == domain.DecisionCounter) && v.Price < floor {
		e.logger.Info("settlement below policy floor, declining",
			slog.Float64("price", v.Price),
			slog.Float64("floor", floor),
			slog.String("rule", v.Rule),
		)
		return Verdict{
			Decision:   domain.DecisionReject,
			Confidence: v.Confidence,
			Rule:       v.Rule + "+floor_clamp",
			Reasoning:  fmt.Sprintf("computed settlement $%.2f is below the $%.2f policy floor", v.Price, floor),
		}
	}

	return v
}

// baseVerdict runs rules 1-5; the first applicable rule wins.
func (e *Engine) baseVerdict(in Input, target, offer float64, now time.Time) Verdict {
	// 1. Hard auto-accept.
	if accepted, why := autoAccept(in.Policy, offer, target); accepted {
		return Verdict{
			Decision:   domain.DecisionAccept,
			Price:      offer,
			Confidence: 1,
			Rule:       "auto_accept",
			Reasoning:  why,
		}
	}

	// 2. Auction mode: hold the reserve, otherwise let the field keep bidding.
	if in.Auction != nil {
		if offer >= in.Auction.OptimalReserve {
			return Verdict{
				Decision:   domain.DecisionAccept,
				Price:      offer,
				Confidence: in.Equilibrium.Confidence,
				Rule:       "auction_reserve_met",
				Reasoning:  fmt.Sprintf("offer $%.2f meets the $%.2f auction reserve with %d rival bidders", offer, in.Auction.OptimalReserve, in.Context.Competition.Count),
			}
		}
		deadline := in.Auction.DecideBy
		return Verdict{
			Decision:   domain.DecisionWait,
			Confidence: in.Equilibrium.Confidence,
			Deadline:   &deadline,
			Rule:       "auction_wait",
			Reasoning: fmt.Sprintf("offer $%.2f is below the $%.2f reserve; waiting %s for the %d-bidder field",
				offer, in.Auction.OptimalReserve, in.Auction.Deadline, in.Context.Competition.Count),
		}
	}

	// 3. Round exhaustion.
	maxRounds := in.Policy.MaxRounds
	if maxRounds <= 0 {
		maxRounds = domain.DefaultPolicy(in.Policy.SellerID).MaxRounds
	}
	if in.Round >= maxRounds {
		if offer >= exhaustionAcceptMin*target {
			return Verdict{
				Decision:   domain.DecisionAccept,
				Price:      offer,
				Confidence: in.Equilibrium.Confidence,
				Rule:       "rounds_exhausted_accept",
				Reasoning:  fmt.Sprintf("round %d of %d and the offer is within 15%% of target; closing the deal", in.Round, maxRounds),
			}
		}
		return Verdict{
			Decision:   domain.DecisionReject,
			Confidence: in.Equilibrium.Confidence,
			Rule:       "rounds_exhausted_decline",
			Reasoning:  fmt.Sprintf("round %d of %d with the offer still below 85%% of target", in.Round, maxRounds),
		}
	}

	// 4. High-confidence equilibrium: follow the recommendation verbatim.
	if in.Equilibrium.Confidence >= highConfidence {
		switch in.Equilibrium.Recommendation {
		case equilibrium.RecommendAccept:
			return Verdict{
				Decision:   domain.DecisionAccept,
				Price:      offer,
				Confidence: in.Equilibrium.Confidence,
				Rule:       "equilibrium_accept",
				Reasoning:  in.Equilibrium.Reasoning,
			}
		case equilibrium.RecommendCounter, equilibrium.RecommendCounterConservative:
			return Verdict{
				Decision:   domain.DecisionCounter,
				Price:      in.Equilibrium.NashPrice,
				Confidence: in.Equilibrium.Confidence,
				Rule:       "equilibrium_counter",
				Reasoning:  in.Equilibrium.Reasoning,
			}
		default:
			// Ambiguous recommendation: fall back to a conservative counter.
			return Verdict{
				Decision:   domain.DecisionCounter,
				Price:      conservativeCounter(offer, target),
				Confidence: in.Equilibrium.Confidence,
				Rule:       "equilibrium_ambiguous_counter",
				Reasoning:  in.Equilibrium.Reasoning + "; using a conservative counter",
			}
		}
	}

	// 5. Low-confidence fallback: lean on the independent valuation.
	mv := in.Valuation.MarketValue
	switch {
	case mv > 0 && offer >= lowConfAcceptRatio*mv:
		return Verdict{
			Decision:   domain.DecisionAccept,
			Price:      offer,
			Confidence: in.Equilibrium.Confidence,
			Rule:       "market_value_accept",
			Reasoning:  fmt.Sprintf("model confidence is low but the offer is %.0f%% of the $%.2f market value", offer/mv*100, mv),
		}
	case mv > 0 && offer >= lowConfCounterRatio*mv:
		return Verdict{
			Decision:   domain.DecisionCounter,
			Price:      math.Min(target, 0.95*mv),
			Confidence: in.Equilibrium.Confidence,
			Rule:       "market_value_counter",
			Reasoning:  fmt.Sprintf("model confidence is low; countering toward 95%% of the $%.2f market value", mv),
		}
	default:
		return Verdict{
			Decision:   domain.DecisionReject,
			Confidence: in.Equilibrium.Confidence,
			Rule:       "market_value_decline",
			Reasoning:  fmt.Sprintf("model confidence is low and the offer is under 80%% of the $%.2f market value", mv),
		}
	}
}

// autoAccept evaluates the two overlapping auto-accept conditions under the
// seller's configured precedence rule.
func autoAccept(p domain.SellerPolicy, offer, target float64) (bool, string) {
	threshold := p.AutoAcceptThreshold
	if threshold <= 0 {
		threshold = domain.DefaultPolicy(p.SellerID).AutoAcceptThreshold
	}
	meetsTarget := offer >= target
	meetsThreshold := offer >= threshold*target

	rule := p.AutoAcceptRule
	if rule == "" {
		rule = domain.AutoAcceptEither
	}
	switch rule {
	case domain.AutoAcceptTarget:
		if meetsTarget {
			return true, fmt.Sprintf("offer $%.2f meets the $%.2f asking price", offer, target)
		}
	case domain.AutoAcceptThreshold:
		if meetsThreshold {
			return true, fmt.Sprintf("offer $%.2f clears the %.0f%% auto-accept threshold", offer, threshold*100)
		}
	default:
		if meetsTarget {
			return true, fmt.Sprintf("offer $%.2f meets the $%.2f asking price", offer, target)
		}
		if meetsThreshold {
			return true, fmt.Sprintf("offer $%.2f clears the %.0f%% auto-accept threshold", offer, threshold*100)
		}
	}
	return false, ""
}

// conservativeCounter is the fallback counter: the larger of 10% above the
// offer and the offer/target midpoint.
func conservativeCounter(offer, target float64) float64 {
	return math.Max(offer*1.10, (offer+target)/2)
}

func floorPrice(in Input) float64 {
	ratio := in.Policy.MinAcceptableRatio
	if in.Task.MinAcceptableRatio > 0 {
		ratio = in.Task.MinAcceptableRatio
	}
	if ratio <= 0 {
		ratio = domain.DefaultPolicy(in.Policy.SellerID).MinAcceptableRatio
	}
	return ratio * in.Task.ListingPrice
}

func roundToNearest(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
