package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

type plannerFunc func(ctx context.Context, s *State) (Step, error)

func (f plannerFunc) Next(ctx context.Context, s *State) (Step, error) { return f(ctx, s) }

type fakeTool struct {
	name string
	out  any
	err  error
}

func (f fakeTool) Name() string        { return f.name }
func (f fakeTool) Description() string { return "test tool" }
func (f fakeTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	return f.out, f.err
}

func shellLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsAtStepBudget(t *testing.T) {
	registry := NewRegistry(fakeTool{name: "noop", out: "ok"})
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		return Step{Tool: "noop"}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	_, trace, err := shell.Run(context.Background(), domain.Task{NegotiationID: "neg-1"}, domain.SellerPolicy{})
	require.ErrorIs(t, err, domain.ErrStepBudget)
	require.Len(t, trace, 8)
	for i, r := range trace {
		require.Equal(t, i+1, r.Step)
		require.Equal(t, "noop", r.Tool)
	}
}

func TestRunImmediateOutcome(t *testing.T) {
	registry := NewRegistry()
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		return Step{Final: &Outcome{Decision: domain.DecisionAccept, Price: 500, Reasoning: "done"}}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	out, trace, err := shell.Run(context.Background(), domain.Task{}, domain.SellerPolicy{})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAccept, out.Decision)
	require.InDelta(t, 500, out.Price, 1e-9)
	require.Empty(t, trace)
}

func TestRunRecordsFailedToolInTrace(t *testing.T) {
	registry := NewRegistry(fakeTool{name: "broken", err: errors.New("store unavailable")})
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		if s.Steps == 0 {
			return Step{Tool: "broken", Input: map[string]any{"itemId": "item-1"}}, nil
		}
		return Step{Final: &Outcome{Decision: domain.DecisionReject, Reasoning: "giving up"}}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	out, trace, err := shell.Run(context.Background(), domain.Task{}, domain.SellerPolicy{})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionReject, out.Decision)
	require.Len(t, trace, 1)
	require.Equal(t, "broken", trace[0].Tool)
	require.Equal(t, "store unavailable", trace[0].Error)
	require.Nil(t, trace[0].Output)
}

func TestRunUnknownToolFails(t *testing.T) {
	registry := NewRegistry()
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		return Step{Tool: "does_not_exist"}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	_, _, err := shell.Run(context.Background(), domain.Task{}, domain.SellerPolicy{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunHonorsCancellation(t *testing.T) {
	registry := NewRegistry(fakeTool{name: "noop"})
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		return Step{Tool: "noop"}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := shell.Run(ctx, domain.Task{}, domain.SellerPolicy{})
	require.ErrorIs(t, err, domain.ErrContextDone)
}

func TestRunAccumulatesOutputs(t *testing.T) {
	registry := NewRegistry(
		fakeTool{name: "first", out: 1},
		fakeTool{name: "second", out: 2},
	)
	planner := plannerFunc(func(ctx context.Context, s *State) (Step, error) {
		if _, ok := s.Outputs["first"]; !ok {
			return Step{Tool: "first"}, nil
		}
		if _, ok := s.Outputs["second"]; !ok {
			return Step{Tool: "second"}, nil
		}
		require.Equal(t, 1, s.Outputs["first"])
		require.Equal(t, 2, s.Outputs["second"])
		return Step{Final: &Outcome{Decision: domain.DecisionWait}}, nil
	})
	shell := NewShell(registry, planner, shellLogger())

	out, trace, err := shell.Run(context.Background(), domain.Task{}, domain.SellerPolicy{})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionWait, out.Decision)
	require.Len(t, trace, 2)
}
