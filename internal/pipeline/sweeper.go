package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

const defaultBatchSize = 25

// Sweeper drains the decision backlog: offers that arrived while the service
// was down, or whose synchronous decision attempt failed, are enqueued as
// tasks and picked up here. Each tick also re-decides negotiations whose
// auction wait deadline has passed. Work in one tick runs sequentially; the
// per-negotiation lock inside the processor keeps overlap with live requests
// safe.
type Sweeper struct {
	tasks        domain.TaskStore
	deadlines    domain.DeadlineStore
	negotiations domain.NegotiationStore
	listings     domain.ListingStore
	processor    *Processor
	batchSize    int
	logger       *slog.Logger
}

func NewSweeper(
	tasks domain.TaskStore,
	deadlines domain.DeadlineStore,
	negotiations domain.NegotiationStore,
	listings domain.ListingStore,
	processor *Processor,
	batchSize int,
	logger *slog.Logger,
) *Sweeper {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Sweeper{
		tasks:        tasks,
		deadlines:    deadlines,
		negotiations: negotiations,
		listings:     listings,
		processor:    processor,
		batchSize:    batchSize,
		logger:       logger.With(slog.String("component", "sweeper")),
	}
}

// RunOnce re-decides expired wait deadlines, then processes a single backlog
// batch. It returns how many decisions were handled.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	handled := s.sweepDeadlines(ctx)

	batch, err := s.tasks.DequeuePending(ctx, s.batchSize)
	if err != nil {
		return handled, fmt.Errorf("sweeper: dequeue: %w", err)
	}
	if len(batch) == 0 {
		return handled, nil
	}

	s.logger.InfoContext(ctx, "sweeping decision backlog", slog.Int("batch", len(batch)))

	for _, task := range batch {
		if err := ctx.Err(); err != nil {
			return handled, fmt.Errorf("sweeper: cancelled after %d tasks: %w", handled, err)
		}

		res := s.processor.Process(ctx, task)
		handled++

		if res.Decision == domain.DecisionError {
			if err := s.tasks.MarkFailed(ctx, task.ID, res.Reasoning); err != nil {
				s.logger.WarnContext(ctx, "task not marked failed",
					slog.String("task_id", task.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if err := s.tasks.MarkDone(ctx, task.ID); err != nil {
			s.logger.WarnContext(ctx, "task not marked done",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return handled, nil
}

// sweepDeadlines re-decides negotiations whose wait deadline has passed. A
// deadline that cannot be rebuilt into a task (negotiation gone or already
// settled) is cleared so it stops resurfacing.
func (s *Sweeper) sweepDeadlines(ctx context.Context) int {
	if s.deadlines == nil {
		return 0
	}
	expired, err := s.deadlines.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.WarnContext(ctx, "expired deadline scan failed", slog.String("error", err.Error()))
		return 0
	}

	handled := 0
	for _, id := range expired {
		if ctx.Err() != nil {
			return handled
		}
		task, ok := s.deadlineTask(ctx, id)
		if !ok {
			if err := s.deadlines.ClearDeadline(ctx, id); err != nil {
				s.logger.WarnContext(ctx, "stale deadline not cleared",
					slog.String("negotiation_id", id),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		res := s.processor.Process(ctx, task)
		handled++
		if res.Decision == domain.DecisionError {
			// The deadline stays in place and is retried on the next tick.
			s.logger.WarnContext(ctx, "deadline re-decision failed",
				slog.String("negotiation_id", id),
				slog.String("reason", res.Reasoning),
			)
		}
	}
	return handled
}

// deadlineTask rebuilds a decision task from the standing state of a
// negotiation whose deadline expired.
func (s *Sweeper) deadlineTask(ctx context.Context, negotiationID string) (domain.Task, bool) {
	neg, err := s.negotiations.GetByID(ctx, negotiationID)
	if err != nil || neg.IsTerminal() || neg.CurrentOffer <= 0 {
		return domain.Task{}, false
	}
	listing, err := s.listings.GetByID(ctx, neg.ItemID)
	if err != nil {
		return domain.Task{}, false
	}
	return domain.Task{
		NegotiationID: neg.ID,
		ItemID:        neg.ItemID,
		SellerID:      neg.SellerID,
		ListingPrice:  listing.StartingPrice,
		OfferPrice:    neg.CurrentOffer,
		FurnitureType: listing.FurnitureType,
	}, true
}

// RunLoop sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) RunLoop(ctx context.Context, interval time.Duration) error {
	s.logger.Info("sweeper started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			handled, err := s.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
				continue
			}
			if handled > 0 {
				s.logger.Info("sweep complete", slog.Int("handled", handled))
			}
		}
	}
}
