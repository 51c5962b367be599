package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/analyzer"
	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/equilibrium"
	"github.com/chasef07/marketplace-sub002/internal/market"
)

// Tool names. The planner addresses tools by these.
const (
	ToolAnalyzeOffer    = "analyze_offer"
	ToolMarketContext   = "gather_market_context"
	ToolAppraiseListing = "appraise_listing"
	ToolEquilibrium     = "compute_equilibrium"
	ToolAuction         = "auction_dynamics"
)

type analyzeTool struct{}

// NewAnalyzeTool exposes the offer analyzer.
func NewAnalyzeTool() domain.NegotiationTool { return analyzeTool{} }

func (analyzeTool) Name() string { return ToolAnalyzeOffer }
func (analyzeTool) Description() string {
	return "score a buyer offer against the listing price and lowball line"
}

func (analyzeTool) Execute(_ context.Context, input map[string]any) (any, error) {
	offer, err := floatArg(input, "offerPrice")
	if err != nil {
		return nil, err
	}
	list, err := floatArg(input, "listPrice")
	if err != nil {
		return nil, err
	}
	min, _ := floatArg(input, "minAcceptable")
	return analyzer.Analyze(offer, list, min)
}

type contextTool struct {
	gatherer *market.Gatherer
}

// NewContextTool exposes the market context gatherer.
func NewContextTool(g *market.Gatherer) domain.NegotiationTool { return contextTool{gatherer: g} }

func (contextTool) Name() string { return ToolMarketContext }
func (contextTool) Description() string {
	return "gather listing timing, competing offers, and negotiation history"
}

func (t contextTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	itemID, err := stringArg(input, "itemId")
	if err != nil {
		return nil, err
	}
	negotiationID, err := stringArg(input, "negotiationId")
	if err != nil {
		return nil, err
	}
	return t.gatherer.Gather(ctx, itemID, negotiationID), nil
}

type appraiseTool struct {
	listings domain.ListingStore
	now      func() time.Time
}

// NewAppraiseTool exposes the independent market valuation.
func NewAppraiseTool(listings domain.ListingStore) domain.NegotiationTool {
	return appraiseTool{listings: listings, now: time.Now}
}

func (appraiseTool) Name() string { return ToolAppraiseListing }
func (appraiseTool) Description() string {
	return "estimate fair market value from category, condition, and time on market"
}

func (t appraiseTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	itemID, err := stringArg(input, "itemId")
	if err != nil {
		return nil, err
	}
	listing, err := t.listings.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("agent: appraise: %w", err)
	}
	days := int(t.now().Sub(listing.CreatedAt).Hours() / 24)
	return equilibrium.Appraise(listing, days), nil
}

type equilibriumTool struct{}

// NewEquilibriumTool exposes the bargaining solver.
func NewEquilibriumTool() domain.NegotiationTool { return equilibriumTool{} }

func (equilibriumTool) Name() string { return ToolEquilibrium }
func (equilibriumTool) Description() string {
	return "solve the alternating-offers model for a counter price and recommendation"
}

func (equilibriumTool) Execute(_ context.Context, input map[string]any) (any, error) {
	in, ok := input["input"].(equilibrium.Input)
	if !ok {
		return nil, fmt.Errorf("agent: compute_equilibrium wants an equilibrium.Input: %w", domain.ErrInvalidInput)
	}
	return equilibrium.Compute(in)
}

type auctionTool struct{}

// NewAuctionTool exposes the auction-dynamics sub-routine.
func NewAuctionTool() domain.NegotiationTool { return auctionTool{} }

func (auctionTool) Name() string { return ToolAuction }
func (auctionTool) Description() string {
	return "compute the reserve price and decision deadline for a multi-bidder listing"
}

func (auctionTool) Execute(_ context.Context, input map[string]any) (any, error) {
	in, ok := input["input"].(equilibrium.AuctionInput)
	if !ok {
		return nil, fmt.Errorf("agent: auction_dynamics wants an equilibrium.AuctionInput: %w", domain.ErrInvalidInput)
	}
	return equilibrium.ComputeAuction(in), nil
}

func floatArg(input map[string]any, key string) (float64, error) {
	v, ok := input[key]
	if !ok {
		return 0, fmt.Errorf("agent: missing argument %q: %w", key, domain.ErrInvalidInput)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("agent: argument %q must be numeric: %w", key, domain.ErrInvalidInput)
	}
}

func stringArg(input map[string]any, key string) (string, error) {
	s, ok := input[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("agent: missing argument %q: %w", key, domain.ErrInvalidInput)
	}
	return s, nil
}
