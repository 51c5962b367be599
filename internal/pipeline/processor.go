// Package pipeline orchestrates decisions end to end: the per-offer
// processor, the backlog sweeper, and the cold-storage archiver. Each
// incoming offer is one independent pipeline run; runs for different
// negotiations proceed in parallel, runs for the same negotiation are
// serialized by a distributed lock.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/agent"
	"github.com/chasef07/marketplace-sub002/internal/analyzer"
	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/equilibrium"
	"github.com/chasef07/marketplace-sub002/internal/execute"
	"github.com/chasef07/marketplace-sub002/internal/market"
	"github.com/chasef07/marketplace-sub002/internal/policy"
)

const (
	defaultDecisionTimeout = 30 * time.Second
	lockTTL                = 45 * time.Second
	decisionChannel        = "agent:decisions"
	decisionStream         = "agent:decisions:stream"
)

// Processor runs one decision per incoming offer. It is a catch-all
// boundary: Process never panics outward and always returns a well-formed
// result, and the audit record is written for every attempt that got far
// enough to evaluate.
type Processor struct {
	gatherer  *market.Gatherer
	engine    *policy.Engine
	executor  *execute.Executor
	shell     *agent.Shell // nil unless reasoning mode is enabled
	locks     domain.LockManager
	listings  domain.ListingStore
	policies  domain.PolicyStore
	bus       domain.DecisionBus
	timeout   time.Duration
	urgency   float64 // baseline, bent by listing staleness
	logger    *slog.Logger
}

// ProcessorOpts carries the optional knobs.
type ProcessorOpts struct {
	Shell           *agent.Shell
	DecisionTimeout time.Duration
	BaseUrgency     float64
}

func NewProcessor(
	gatherer *market.Gatherer,
	engine *policy.Engine,
	executor *execute.Executor,
	locks domain.LockManager,
	listings domain.ListingStore,
	policies domain.PolicyStore,
	bus domain.DecisionBus,
	opts ProcessorOpts,
	logger *slog.Logger,
) *Processor {
	timeout := opts.DecisionTimeout
	if timeout <= 0 {
		timeout = defaultDecisionTimeout
	}
	urgency := opts.BaseUrgency
	if urgency <= 0 {
		urgency = 0.5
	}
	return &Processor{
		gatherer: gatherer,
		engine:   engine,
		executor: executor,
		shell:    opts.Shell,
		locks:    locks,
		listings: listings,
		policies: policies,
		bus:      bus,
		timeout:  timeout,
		urgency:  urgency,
		logger:   logger.With(slog.String("component", "decision_processor")),
	}
}

// Process runs the full pipeline for one task and returns the result
// contract. The wall clock starts before any I/O so executionTimeMs covers
// the whole attempt.
func (p *Processor) Process(ctx context.Context, task domain.Task) domain.DecisionResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := p.run(ctx, task, started)
	res.ExecutionTimeMs = time.Since(started).Milliseconds()

	p.logger.InfoContext(ctx, "decision complete",
		slog.String("negotiation_id", task.NegotiationID),
		slog.String("decision", string(res.Decision)),
		slog.Bool("success", res.Success),
		slog.Int64("execution_ms", res.ExecutionTimeMs),
	)
	return res
}

func (p *Processor) run(ctx context.Context, task domain.Task, started time.Time) domain.DecisionResult {
	if task.NegotiationID == "" || task.ItemID == "" || task.SellerID == "" {
		return errorResult("task is missing identifiers")
	}
	if task.ListingPrice <= 0 || task.OfferPrice <= 0 {
		return errorResult("task prices must be positive")
	}

	unlock, err := p.locks.Acquire(ctx, "negotiation:"+task.NegotiationID, lockTTL)
	if err != nil {
		return errorResult("a decision for this negotiation is already in progress")
	}
	defer unlock()

	listing, err := p.listings.GetByID(ctx, task.ItemID)
	if err != nil {
		return errorResult(fmt.Sprintf("listing lookup failed: %v", err))
	}
	if !listing.AgentEnabled {
		return disabledResult("the agent is not enabled for this listing")
	}
	if !listing.Available {
		return errorResult("listing is no longer available")
	}

	sellerPolicy, err := p.loadPolicy(ctx, task.SellerID)
	if err != nil {
		return errorResult(fmt.Sprintf("seller policy lookup failed: %v", err))
	}
	if !sellerPolicy.Enabled {
		return disabledResult("the seller has turned the agent off")
	}

	mctx := p.gatherer.Gather(ctx, task.ItemID, task.NegotiationID)
	valuation := equilibrium.Appraise(listing, mctx.Timing.DaysOnMarket)
	urgency := p.deriveUrgency(mctx.Timing, sellerPolicy.Aggressiveness)

	analysis, err := analyzer.Analyze(task.OfferPrice, task.ListingPrice, floorFor(task, sellerPolicy))
	if err != nil {
		return errorResult(fmt.Sprintf("offer analysis failed: %v", err))
	}

	eq, err := equilibrium.Compute(equilibrium.Input{
		SellerTarget:      task.ListingPrice,
		BuyerOffer:        task.OfferPrice,
		EstimatedBuyerMax: agent.EstimateBuyerMax(task.OfferPrice, task.ListingPrice, mctx),
		MarketValue:       valuation.MarketValue,
		Round:             mctx.History.Rounds,
		Urgency:           urgency,
		CompetitorCount:   mctx.Competition.Count,
		BuyerHistory:      mctx.History.PriceProgression,
		BuyerMomentum:     mctx.History.BuyerMomentum,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("equilibrium model failed: %v", err))
	}

	var auction *equilibrium.AuctionResult
	if equilibrium.InAuctionMode(mctx.Competition) {
		a := equilibrium.ComputeAuction(equilibrium.AuctionInput{
			SellerTarget:  task.ListingPrice,
			MarketValue:   valuation.MarketValue,
			HighestBid:    mctx.Competition.HighestPrice,
			BidderCount:   mctx.Competition.Count,
			RecentBidding: mctx.Competition.RecentActivity,
		})
		auction = &a
	}

	in := policy.Input{
		Task:        task,
		Policy:      sellerPolicy,
		Listing:     listing,
		Analysis:    analysis,
		Context:     mctx,
		Equilibrium: eq,
		Auction:     auction,
		Valuation:   valuation,
		Urgency:     urgency,
		Round:       mctx.History.Rounds,
	}

	verdict, trace := p.decide(ctx, in)

	if sellerPolicy.ResponseDelay > 0 && !waitDelay(ctx, sellerPolicy.ResponseDelay) {
		verdict = policy.Verdict{
			Decision:  domain.DecisionError,
			Reasoning: "cancelled during response delay",
		}
	}

	var action domain.ActionResult
	if verdict.Decision == domain.DecisionError {
		action = domain.ActionResult{Action: "none", Error: verdict.Reasoning}
	} else {
		action = p.executor.Apply(ctx, task, verdict)
	}

	// The audit row must land even when the decision burned the whole
	// wall-clock budget, so the insert runs on a detached context.
	rec := buildRecord(task, verdict, action, mctx, valuation, eq, trace, started)
	_ = p.executor.Audit(context.WithoutCancel(ctx), rec)

	res := domain.DecisionResult{
		Success:      action.Error == "" && verdict.Decision != domain.DecisionError,
		Decision:     verdict.Decision,
		Reasoning:    verdict.Reasoning,
		ActionResult: action,
		ToolResults:  trace,
	}
	p.publish(ctx, task, res)
	return res
}

// decide picks between the rule table and the reasoning shell. Shell
// proposals still pass through the guardrail clamp.
func (p *Processor) decide(ctx context.Context, in policy.Input) (policy.Verdict, []domain.ToolResult) {
	if p.shell == nil {
		return p.engine.Decide(in), nil
	}

	outcome, trace, err := p.shell.Run(ctx, in.Task, in.Policy)
	if err != nil {
		p.logger.WarnContext(ctx, "reasoning shell failed, falling back to rule table",
			slog.String("negotiation_id", in.Task.NegotiationID),
			slog.String("error", err.Error()),
		)
		return p.engine.Decide(in), trace
	}

	v := policy.Verdict{
		Decision:   outcome.Decision,
		Price:      outcome.Price,
		Confidence: in.Equilibrium.Confidence,
		Reasoning:  outcome.Reasoning,
		Rule:       "reasoning_shell",
	}
	if v.Decision == domain.DecisionWait && in.Auction != nil {
		deadline := in.Auction.DecideBy
		v.Deadline = &deadline
	}
	return p.engine.Guardrails(in, v), trace
}

func (p *Processor) loadPolicy(ctx context.Context, sellerID string) (domain.SellerPolicy, error) {
	sp, err := p.policies.GetBySeller(ctx, sellerID)
	if err == nil {
		return sp, nil
	}
	if isNotFound(err) {
		return domain.DefaultPolicy(sellerID), nil
	}
	return domain.SellerPolicy{}, err
}

// deriveUrgency bends the baseline by listing staleness: fresh listings can
// afford patience, stale ones cannot. Aggressive sellers shade patient.
func (p *Processor) deriveUrgency(t domain.ListingTiming, aggressiveness float64) float64 {
	u := p.urgency
	switch t.MarketStatus {
	case domain.MarketFresh:
		u -= 0.15
	case domain.MarketStale:
		u += 0.25
	}
	if t.ActivityLevel == domain.ActivityHigh {
		u -= 0.10
	}
	u -= 0.10 * (aggressiveness - 0.5)
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	return u
}

func (p *Processor) publish(ctx context.Context, task domain.Task, res domain.DecisionResult) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(struct {
		NegotiationID string              `json:"negotiationId"`
		ItemID        string              `json:"itemId"`
		SellerID      string              `json:"sellerId"`
		Result        domain.DecisionResult `json:"result"`
	}{task.NegotiationID, task.ItemID, task.SellerID, res})
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, decisionChannel, payload); err != nil {
		p.logger.DebugContext(ctx, "decision event not published", slog.String("error", err.Error()))
	}
	_ = p.bus.PublishStream(ctx, decisionStream, map[string]any{
		"negotiation_id": task.NegotiationID,
		"decision":       string(res.Decision),
		"price":          res.ActionResult.Price,
	})
}

func buildRecord(
	task domain.Task,
	v policy.Verdict,
	action domain.ActionResult,
	mctx domain.MarketContext,
	valuation equilibrium.Valuation,
	eq equilibrium.Result,
	trace []domain.ToolResult,
	started time.Time,
) domain.DecisionRecord {
	conditions, _ := json.Marshal(struct {
		Context     domain.MarketContext  `json:"context"`
		Valuation   equilibrium.Valuation `json:"valuation"`
		Equilibrium equilibrium.Result    `json:"equilibrium"`
		Trace       []domain.ToolResult   `json:"trace,omitempty"`
		Rule        string                `json:"rule"`
	}{mctx, valuation, eq, trace, v.Rule})

	return domain.DecisionRecord{
		NegotiationID:    task.NegotiationID,
		ItemID:           task.ItemID,
		SellerID:         task.SellerID,
		Decision:         v.Decision,
		OfferPrice:       task.OfferPrice,
		RecommendedPrice: v.Price,
		ExecutedPrice:    action.Price,
		Confidence:       v.Confidence,
		Reasoning:        v.Reasoning,
		MarketConditions: conditions,
		Error:            action.Error,
		ExecutionTimeMs:  time.Since(started).Milliseconds(),
	}
}

func floorFor(task domain.Task, p domain.SellerPolicy) float64 {
	ratio := p.MinAcceptableRatio
	if task.MinAcceptableRatio > 0 {
		ratio = task.MinAcceptableRatio
	}
	return ratio * task.ListingPrice
}

func waitDelay(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func errorResult(reason string) domain.DecisionResult {
	return domain.DecisionResult{
		Decision:     domain.DecisionError,
		Reasoning:    reason,
		ActionResult: domain.ActionResult{Action: "none", Error: reason},
	}
}

func disabledResult(reason string) domain.DecisionResult {
	return domain.DecisionResult{
		Success:      true,
		Decision:     domain.DecisionDisabled,
		Reasoning:    reason,
		ActionResult: domain.ActionResult{Success: true, Action: "none"},
	}
}
