// Package execute is the execution and audit sink: it applies the state
// mutation a verdict calls for and writes the append-only decision record.
// Mutations are optimistic, re-checking active status right before writing,
// so a race with manual seller action degrades to a no-op instead of forcing
// a transition.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/notify"
	"github.com/chasef07/marketplace-sub002/internal/policy"
)

// Action names reported in results.
const (
	ActionAccept  = "accept_offer"
	ActionCounter = "counter_offer"
	ActionDecline = "decline_offer"
	ActionWait    = "wait"
	ActionNone    = "none"
)

// Notification event types.
const (
	EventDealAccepted = "deal_accepted"
	EventDealDeclined = "deal_declined"
)

const notActiveMsg = "Negotiation not active"

// Executor applies verdicts. All writes go through the narrow store
// interfaces; the notifier is best-effort and never fails an execution.
type Executor struct {
	negotiations domain.NegotiationStore
	offers       domain.OfferStore
	listings     domain.ListingStore
	decisions    domain.DecisionStore
	deadlines    domain.DeadlineStore
	notifier     *notify.Notifier
	logger       *slog.Logger
}

func NewExecutor(
	negotiations domain.NegotiationStore,
	offers domain.OfferStore,
	listings domain.ListingStore,
	decisions domain.DecisionStore,
	deadlines domain.DeadlineStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		negotiations: negotiations,
		offers:       offers,
		listings:     listings,
		decisions:    decisions,
		deadlines:    deadlines,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "executor")),
	}
}

// Apply performs the side effects for a verdict and reports what happened.
// It never returns partial panic states: a lost status race yields a failed
// ActionResult tagged with the not-active message.
func (e *Executor) Apply(ctx context.Context, task domain.Task, v policy.Verdict) domain.ActionResult {
	switch v.Decision {
	case domain.DecisionAccept:
		return e.accept(ctx, task, v.Price)
	case domain.DecisionCounter:
		return e.counter(ctx, task, v.Price)
	case domain.DecisionReject:
		return e.decline(ctx, task, v.Reasoning)
	case domain.DecisionWait:
		return e.wait(ctx, task, v.Deadline)
	default:
		return domain.ActionResult{Success: true, Action: ActionNone}
	}
}

// accept completes the negotiation at the offered price, marks the listing
// sold, retires rival negotiations, and notifies the seller.
func (e *Executor) accept(ctx context.Context, task domain.Task, price float64) domain.ActionResult {
	neg, err := e.negotiations.GetByID(ctx, task.NegotiationID)
	if err != nil {
		return failed(ActionAccept, price, err)
	}

	won, err := e.negotiations.UpdateStatusIfActive(ctx, task.NegotiationID, domain.NegotiationCompleted, &price)
	if err != nil {
		return failed(ActionAccept, price, err)
	}
	if !won {
		return domain.ActionResult{Action: ActionAccept, Price: price, Error: notActiveMsg}
	}

	offer := domain.Offer{
		ID:             uuid.NewString(),
		NegotiationID:  task.NegotiationID,
		Side:           domain.OfferSideSeller,
		Price:          price,
		Message:        acceptMessage(price),
		RoundNumber:    neg.RoundNumber + 1,
		AgentGenerated: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.offers.Create(ctx, offer); err != nil {
		e.logger.ErrorContext(ctx, "accept offer row not recorded",
			slog.String("negotiation_id", task.NegotiationID),
			slog.String("error", err.Error()),
		)
	}

	if err := e.listings.MarkSold(ctx, task.ItemID, price); err != nil {
		e.logger.ErrorContext(ctx, "listing not marked sold",
			slog.String("item_id", task.ItemID),
			slog.String("error", err.Error()),
		)
	}

	e.cancelRivals(ctx, task.ItemID, task.NegotiationID)
	e.clearDeadline(ctx, task.NegotiationID)

	if e.notifier != nil {
		_ = e.notifier.Notify(ctx, EventDealAccepted, "Offer accepted",
			fmt.Sprintf("Accepted $%.2f for item %s (negotiation %s).", price, task.ItemID, task.NegotiationID))
	}

	return domain.ActionResult{Success: true, Action: ActionAccept, Price: price}
}

// counter records a seller counter-offer. Fully autonomous, so no seller
// notification.
func (e *Executor) counter(ctx context.Context, task domain.Task, price float64) domain.ActionResult {
	neg, err := e.negotiations.GetByID(ctx, task.NegotiationID)
	if err != nil {
		return failed(ActionCounter, price, err)
	}
	if neg.IsTerminal() {
		return domain.ActionResult{Action: ActionCounter, Price: price, Error: notActiveMsg}
	}

	if err := e.negotiations.RecordCounter(ctx, task.NegotiationID, price); err != nil {
		if errors.Is(err, domain.ErrNotActive) {
			return domain.ActionResult{Action: ActionCounter, Price: price, Error: notActiveMsg}
		}
		return failed(ActionCounter, price, err)
	}

	stage := stageForRound(neg.RoundNumber+1, neg.MaxRounds)
	offer := domain.Offer{
		ID:             uuid.NewString(),
		NegotiationID:  task.NegotiationID,
		Side:           domain.OfferSideSeller,
		Price:          price,
		Message:        counterMessage(price, stage),
		RoundNumber:    neg.RoundNumber + 1,
		IsCounter:      true,
		AgentGenerated: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.offers.Create(ctx, offer); err != nil {
		return failed(ActionCounter, price, err)
	}

	e.clearDeadline(ctx, task.NegotiationID)
	return domain.ActionResult{Success: true, Action: ActionCounter, Price: price}
}

// decline cancels the negotiation and tells the seller why.
func (e *Executor) decline(ctx context.Context, task domain.Task, reason string) domain.ActionResult {
	won, err := e.negotiations.UpdateStatusIfActive(ctx, task.NegotiationID, domain.NegotiationCancelled, nil)
	if err != nil {
		return failed(ActionDecline, 0, err)
	}
	if !won {
		return domain.ActionResult{Action: ActionDecline, Error: notActiveMsg}
	}

	offer := domain.Offer{
		ID:             uuid.NewString(),
		NegotiationID:  task.NegotiationID,
		Side:           domain.OfferSideSeller,
		Message:        declineMessage(),
		AgentGenerated: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.offers.Create(ctx, offer); err != nil {
		e.logger.WarnContext(ctx, "decline message not recorded",
			slog.String("negotiation_id", task.NegotiationID),
			slog.String("error", err.Error()),
		)
	}

	if e.notifier != nil {
		_ = e.notifier.Notify(ctx, EventDealDeclined, "Offer declined",
			fmt.Sprintf("Declined $%.2f on item %s: %s", task.OfferPrice, task.ItemID, reason))
	}

	e.clearDeadline(ctx, task.NegotiationID)
	return domain.ActionResult{Success: true, Action: ActionDecline}
}

// wait schedules the auction deadline; no negotiation state changes.
func (e *Executor) wait(ctx context.Context, task domain.Task, deadline *time.Time) domain.ActionResult {
	if deadline == nil {
		return domain.ActionResult{Success: true, Action: ActionWait}
	}
	if err := e.deadlines.SetDeadline(ctx, task.NegotiationID, *deadline); err != nil {
		return failed(ActionWait, 0, err)
	}
	return domain.ActionResult{Success: true, Action: ActionWait, Deadline: deadline}
}

// Audit writes the append-only decision record. Callers invoke this for
// every decision attempt, including ones whose action failed.
func (e *Executor) Audit(ctx context.Context, rec domain.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := e.decisions.Insert(ctx, rec); err != nil {
		e.logger.ErrorContext(ctx, "decision record not persisted",
			slog.String("negotiation_id", rec.NegotiationID),
			slog.String("decision", string(rec.Decision)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("execute: audit insert: %w", err)
	}
	return nil
}

// cancelRivals retires the other live negotiations on a sold item. Failures
// are logged per rival and never abort the accept.
func (e *Executor) cancelRivals(ctx context.Context, itemID, winnerNegotiationID string) {
	rivals, err := e.negotiations.ListActiveByItem(ctx, itemID, winnerNegotiationID)
	if err != nil {
		e.logger.WarnContext(ctx, "rival lookup failed",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, rival := range rivals {
		if _, err := e.negotiations.UpdateStatusIfActive(ctx, rival.ID, domain.NegotiationCancelled, nil); err != nil {
			e.logger.WarnContext(ctx, "rival not cancelled",
				slog.String("negotiation_id", rival.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.clearDeadline(ctx, rival.ID)
	}
}

func (e *Executor) clearDeadline(ctx context.Context, negotiationID string) {
	if e.deadlines == nil {
		return
	}
	if err := e.deadlines.ClearDeadline(ctx, negotiationID); err != nil {
		e.logger.DebugContext(ctx, "deadline not cleared",
			slog.String("negotiation_id", negotiationID),
			slog.String("error", err.Error()),
		)
	}
}

func failed(action string, price float64, err error) domain.ActionResult {
	return domain.ActionResult{Action: action, Price: price, Error: err.Error()}
}

func stageForRound(round, maxRounds int) domain.NegotiationStage {
	switch {
	case round <= 1:
		return domain.StageOpening
	case maxRounds > 0 && round >= maxRounds-1:
		return domain.StageClosing
	case round > 3:
		return domain.StageClosing
	default:
		return domain.StageMiddle
	}
}
