package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/analyzer"
	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/equilibrium"
)

// HeuristicPlanner is the built-in planner: it walks the facets in a fixed
// order, then picks the counter percentage within context-driven ranges
// instead of following the fixed rule table. Outcomes still pass through the
// guardrail clamp downstream.
type HeuristicPlanner struct {
	Urgency float64
}

func NewHeuristicPlanner(urgency float64) *HeuristicPlanner {
	return &HeuristicPlanner{Urgency: urgency}
}

func (p *HeuristicPlanner) Next(_ context.Context, s *State) (Step, error) {
	task := s.Task

	if _, done := s.Outputs[ToolAnalyzeOffer]; !done {
		return Step{Tool: ToolAnalyzeOffer, Input: map[string]any{
			"offerPrice":    task.OfferPrice,
			"listPrice":     task.ListingPrice,
			"minAcceptable": task.MinAcceptableRatio * task.ListingPrice,
		}}, nil
	}
	if _, done := s.Outputs[ToolMarketContext]; !done {
		return Step{Tool: ToolMarketContext, Input: map[string]any{
			"itemId":        task.ItemID,
			"negotiationId": task.NegotiationID,
		}}, nil
	}
	if _, done := s.Outputs[ToolAppraiseListing]; !done {
		return Step{Tool: ToolAppraiseListing, Input: map[string]any{
			"itemId": task.ItemID,
		}}, nil
	}

	mctx, _ := s.Outputs[ToolMarketContext].(domain.MarketContext)
	valuation, _ := s.Outputs[ToolAppraiseListing].(equilibrium.Valuation)

	if equilibrium.InAuctionMode(mctx.Competition) {
		if _, done := s.Outputs[ToolAuction]; !done {
			return Step{Tool: ToolAuction, Input: map[string]any{
				"input": equilibrium.AuctionInput{
					SellerTarget:  task.ListingPrice,
					MarketValue:   valuation.MarketValue,
					HighestBid:    mctx.Competition.HighestPrice,
					BidderCount:   mctx.Competition.Count,
					RecentBidding: mctx.Competition.RecentActivity,
					Now:           time.Now().UTC(),
				},
			}}, nil
		}
	}

	if _, done := s.Outputs[ToolEquilibrium]; !done {
		return Step{Tool: ToolEquilibrium, Input: map[string]any{
			"input": equilibrium.Input{
				SellerTarget:      task.ListingPrice,
				BuyerOffer:        task.OfferPrice,
				EstimatedBuyerMax: EstimateBuyerMax(task.OfferPrice, task.ListingPrice, mctx),
				MarketValue:       valuation.MarketValue,
				Round:             mctx.History.Rounds,
				Urgency:           p.Urgency,
				CompetitorCount:   mctx.Competition.Count,
				BuyerHistory:      buyerPrices(mctx.History),
				BuyerMomentum:     mctx.History.BuyerMomentum,
			},
		}}, nil
	}

	return p.conclude(s, mctx, valuation)
}

// conclude turns the accumulated tool outputs into a proposed outcome.
func (p *HeuristicPlanner) conclude(s *State, mctx domain.MarketContext, valuation equilibrium.Valuation) (Step, error) {
	task := s.Task
	analysis, _ := s.Outputs[ToolAnalyzeOffer].(analyzer.Result)
	eq, _ := s.Outputs[ToolEquilibrium].(equilibrium.Result)

	if auction, ok := s.Outputs[ToolAuction].(equilibrium.AuctionResult); ok {
		if task.OfferPrice >= auction.OptimalReserve {
			return final(domain.DecisionAccept, task.OfferPrice,
				fmt.Sprintf("offer meets the $%.2f auction reserve", auction.OptimalReserve)), nil
		}
		return final(domain.DecisionWait, 0,
			fmt.Sprintf("holding the $%.2f reserve while %d rivals bid", auction.OptimalReserve, mctx.Competition.Count)), nil
	}

	if analysis.IsLowball && mctx.Timing.MarketStatus != domain.MarketStale {
		return final(domain.DecisionReject,
			0, analysis.Reason+"; listing still has traction, declining"), nil
	}

	if eq.Recommendation == equilibrium.RecommendAccept {
		return final(domain.DecisionAccept, task.OfferPrice, eq.Reasoning), nil
	}

	// Counter, picking the percentage within a context-driven range around
	// the model price: hot fresh listings push toward the top of the range,
	// stale ones soften toward the offer.
	price := eq.NashPrice
	reason := eq.Reasoning
	switch {
	case mctx.Timing.ActivityLevel == domain.ActivityHigh && mctx.Timing.MarketStatus == domain.MarketFresh:
		price *= 1.02
		reason += "; fresh listing with strong interest, holding firm"
	case mctx.Timing.MarketStatus == domain.MarketStale:
		price = math.Max(task.OfferPrice*1.05, price*0.97)
		reason += "; listing has gone stale, softening the ask"
	}
	return final(domain.DecisionCounter, price, reason), nil
}

func final(decision domain.DecisionType, price float64, reasoning string) Step {
	return Step{Final: &Outcome{Decision: decision, Price: price, Reasoning: reasoning}}
}

// EstimateBuyerMax guesses the buyer's ceiling: weak offers leave more
// headroom than strong ones, and a rival's standing high bid raises the
// estimate. Capped at the listing price.
func EstimateBuyerMax(offer, listPrice float64, mctx domain.MarketContext) float64 {
	if offer <= 0 {
		return 0
	}
	ratio := 0.0
	if listPrice > 0 {
		ratio = offer / listPrice
	}
	est := offer * (1 + 0.15*(1-clamp01(ratio)))
	if best := mctx.Competition.HighestPrice; best > est {
		est = best
	}
	if h := mctx.History.HighestBuyerOffer; h > est {
		est = h
	}
	if listPrice > 0 && est > listPrice {
		est = listPrice
	}
	return est
}

func buyerPrices(h domain.History) []float64 {
	// Momentum is passed explicitly; the progression only feeds the solver's
	// history-depth confidence bonus.
	if h.BuyerOfferCount == 0 {
		return nil
	}
	return h.PriceProgression
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
