package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// maxSteps bounds every shell run. The loop terminates on a proposed outcome,
// an exhausted budget, or context cancellation, whichever comes first.
const maxSteps = 8

// Outcome is the shell's proposed terminal action. Price carries the counter
// or accepted price; the guardrail clamp downstream may still override the
// whole proposal.
type Outcome struct {
	Decision  domain.DecisionType
	Price     float64
	Reasoning string
}

// Step is one planner directive: either a tool invocation or a final outcome.
type Step struct {
	Tool    string
	Input   map[string]any
	Final   *Outcome
	Comment string
}

// State accumulates tool outputs across a run so the planner can condition
// later steps on earlier results.
type State struct {
	Task    domain.Task
	Policy  domain.SellerPolicy
	Outputs map[string]any // tool name -> last output
	Steps   int
}

// Planner decides the next step from the accumulated state.
type Planner interface {
	Next(ctx context.Context, s *State) (Step, error)
}

// Shell runs the bounded reasoning loop.
type Shell struct {
	registry *Registry
	planner  Planner
	logger   *slog.Logger
}

func NewShell(registry *Registry, planner Planner, logger *slog.Logger) *Shell {
	return &Shell{
		registry: registry,
		planner:  planner,
		logger:   logger.With(slog.String("component", "reasoning_shell")),
	}
}

// Run drives the planner until it proposes an outcome or the step budget is
// spent. Every tool invocation, including failed ones, lands in the typed
// trace.
func (s *Shell) Run(ctx context.Context, task domain.Task, policy domain.SellerPolicy) (Outcome, []domain.ToolResult, error) {
	state := &State{
		Task:    task,
		Policy:  policy,
		Outputs: make(map[string]any),
	}
	trace := make([]domain.ToolResult, 0, maxSteps)

	for state.Steps < maxSteps {
		if err := ctx.Err(); err != nil {
			return Outcome{}, trace, fmt.Errorf("agent: run cancelled: %w", errors.Join(domain.ErrContextDone, err))
		}

		step, err := s.planner.Next(ctx, state)
		if err != nil {
			return Outcome{}, trace, fmt.Errorf("agent: planner: %w", err)
		}
		if step.Final != nil {
			s.logger.DebugContext(ctx, "shell proposed outcome",
				slog.String("negotiation_id", task.NegotiationID),
				slog.String("decision", string(step.Final.Decision)),
				slog.Int("steps", state.Steps),
			)
			return *step.Final, trace, nil
		}

		tool, err := s.registry.Get(step.Tool)
		if err != nil {
			return Outcome{}, trace, err
		}

		state.Steps++
		started := time.Now()
		out, err := tool.Execute(ctx, step.Input)
		result := domain.ToolResult{
			Step:       state.Steps,
			Tool:       step.Tool,
			Input:      step.Input,
			DurationMS: time.Since(started).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			s.logger.WarnContext(ctx, "tool failed",
				slog.String("tool", step.Tool),
				slog.String("error", err.Error()),
			)
		} else {
			result.Output = out
			state.Outputs[step.Tool] = out
		}
		trace = append(trace, result)
	}

	return Outcome{}, trace, fmt.Errorf("agent: no outcome after %d steps: %w", maxSteps, domain.ErrStepBudget)
}
