package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

type memTaskStore struct {
	pending    []domain.Task
	dequeueErr error
	done       []string
	failed     map[string]string
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{failed: make(map[string]string)}
}

func (m *memTaskStore) Enqueue(ctx context.Context, task domain.Task) error {
	m.pending = append(m.pending, task)
	return nil
}

func (m *memTaskStore) DequeuePending(ctx context.Context, limit int) ([]domain.Task, error) {
	if m.dequeueErr != nil {
		return nil, m.dequeueErr
	}
	if len(m.pending) > limit {
		batch := m.pending[:limit]
		m.pending = m.pending[limit:]
		return batch, nil
	}
	batch := m.pending
	m.pending = nil
	return batch, nil
}

func (m *memTaskStore) MarkDone(ctx context.Context, id string) error {
	m.done = append(m.done, id)
	return nil
}

func (m *memTaskStore) MarkFailed(ctx context.Context, id, reason string) error {
	m.failed[id] = reason
	return nil
}

func TestRunOnceMarksOutcomes(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", AgentEnabled: true, Available: true,
		FurnitureType: domain.FurnitureCouch, Condition: "excellent", StartingPrice: 1000,
		ViewCount: 8, CreatedAt: time.Now().UTC().Add(-24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", Status: domain.NegotiationActive,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	tasks := newMemTaskStore()
	good := pipelineTask()
	good.OfferPrice = 1000 // meets asking
	bad := pipelineTask()
	bad.ID = "task-2"
	bad.NegotiationID = "" // invalid: missing identifier
	tasks.pending = []domain.Task{good, bad}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(tasks, f.deadlines, f.negotiations, f.listings, f.processor, 10, logger)

	handled, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, handled)
	require.Equal(t, []string{"task-1"}, tasks.done)
	require.Contains(t, tasks.failed, "task-2")
	require.Contains(t, tasks.failed["task-2"], "missing identifiers")
}

func TestRunOnceEmptyBacklog(t *testing.T) {
	f := newPipelineFixture()
	tasks := newMemTaskStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(tasks, f.deadlines, f.negotiations, f.listings, f.processor, 10, logger)

	handled, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, handled)
}

func TestRunOnceDequeueFailure(t *testing.T) {
	f := newPipelineFixture()
	tasks := newMemTaskStore()
	tasks.dequeueErr = errors.New("backlog unavailable")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(tasks, f.deadlines, f.negotiations, f.listings, f.processor, 10, logger)

	_, err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "dequeue")
}

func TestRunOnceRedecidesExpiredDeadlines(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", SellerID: "seller-1", AgentEnabled: true, Available: true,
		FurnitureType: domain.FurnitureCouch, Condition: "excellent", StartingPrice: 1000,
		ViewCount: 8, CreatedAt: time.Now().UTC().Add(-24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive, CurrentOffer: 1000,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	f.deadlines.deadlines["neg-1"] = time.Now().UTC().Add(-time.Hour)
	// No negotiation behind this entry: the sweep drops it instead of retrying.
	f.deadlines.deadlines["neg-gone"] = time.Now().UTC().Add(-2 * time.Hour)

	tasks := newMemTaskStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(tasks, f.deadlines, f.negotiations, f.listings, f.processor, 10, logger)

	handled, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, handled)

	// Standing offer met asking, so the re-decision accepted and the executor
	// cleared the winner's deadline; the orphaned entry is gone too.
	require.Equal(t, domain.NegotiationCompleted, f.negotiations.negotiations["neg-1"].Status)
	require.Empty(t, f.deadlines.deadlines)
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	f := newPipelineFixture()
	tasks := newMemTaskStore()
	for i := 0; i < 5; i++ {
		task := pipelineTask()
		task.ID = "task"
		task.NegotiationID = "" // all invalid, fails fast without store setup
		tasks.pending = append(tasks.pending, task)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(tasks, f.deadlines, f.negotiations, f.listings, f.processor, 2, logger)

	handled, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, handled)
	require.Len(t, tasks.pending, 3)
}
