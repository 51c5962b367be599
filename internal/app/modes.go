package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chasef07/marketplace-sub002/internal/agent"
	"github.com/chasef07/marketplace-sub002/internal/execute"
	"github.com/chasef07/marketplace-sub002/internal/market"
	"github.com/chasef07/marketplace-sub002/internal/pipeline"
	"github.com/chasef07/marketplace-sub002/internal/policy"
	"github.com/chasef07/marketplace-sub002/internal/server"
	"github.com/chasef07/marketplace-sub002/internal/server/handler"
	"github.com/chasef07/marketplace-sub002/internal/server/ws"
)

// buildProcessor assembles the full decision pipeline from wired dependencies:
// gatherer, policy engine, executor, optional reasoning shell, and the
// processor that ties them together.
func (a *App) buildProcessor(deps *Dependencies) *pipeline.Processor {
	gatherer := market.NewGatherer(
		deps.ListingStore,
		deps.NegotiationStore,
		deps.OfferStore,
		a.logger,
	)

	engine := policy.NewEngine(a.logger)

	executor := execute.NewExecutor(
		deps.NegotiationStore,
		deps.OfferStore,
		deps.ListingStore,
		deps.DecisionStore,
		deps.DeadlineStore,
		deps.Notifier,
		a.logger,
	)

	var shell *agent.Shell
	if a.cfg.Agent.ShellEnabled {
		registry := agent.NewRegistry(
			agent.NewAnalyzeTool(),
			agent.NewContextTool(gatherer),
			agent.NewAppraiseTool(deps.ListingStore),
			agent.NewEquilibriumTool(),
			agent.NewAuctionTool(),
		)
		planner := agent.NewHeuristicPlanner(a.cfg.Agent.BaseUrgency)
		shell = agent.NewShell(registry, planner, a.logger)
	}

	return pipeline.NewProcessor(
		gatherer,
		engine,
		executor,
		deps.LockManager,
		deps.ListingStore,
		deps.PolicyStore,
		deps.DecisionBus,
		pipeline.ProcessorOpts{
			Shell:           shell,
			DecisionTimeout: a.cfg.Agent.DecisionTimeout.Duration,
			BaseUrgency:     a.cfg.Agent.BaseUrgency,
		},
		a.logger,
	)
}

// ServeMode runs the HTTP + WebSocket API without background workers.
// Decisions still run synchronously via POST /api/v1/decisions; queued tasks
// wait until a sweep-capable instance picks them up.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	processor := a.buildProcessor(deps)
	a.startHTTPServer(ctx, g, deps, processor)

	return g.Wait()
}

// SweepMode runs only the background workers: the backlog sweeper and, when
// archiving is configured, the decision-log archiver. No HTTP surface.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	processor := a.buildProcessor(deps)
	a.startWorkers(ctx, g, deps, processor)

	return g.Wait()
}

// FullMode runs everything: HTTP + WebSocket API, backlog sweeper, and the
// archiver when configured.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	processor := a.buildProcessor(deps)
	a.startWorkers(ctx, g, deps, processor)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, processor)
	}

	return g.Wait()
}

// startWorkers adds the sweeper and archiver goroutines to the errgroup.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies, processor *pipeline.Processor) {
	if a.cfg.Sweep.Enabled {
		sweeper := pipeline.NewSweeper(
			deps.TaskStore,
			deps.DeadlineStore,
			deps.NegotiationStore,
			deps.ListingStore,
			processor,
			a.cfg.Sweep.BatchSize,
			a.logger,
		)
		interval := a.cfg.Sweep.Interval.Duration
		g.Go(func() error {
			return sweeper.RunLoop(ctx, interval)
		})
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		cronExpr := a.cfg.Archive.Cron
		g.Go(func() error {
			return archiver.RunCron(ctx, cronExpr)
		})
	}
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, processor *pipeline.Processor) {
	hub := ws.NewHub(deps.DecisionBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Decisions: handler.NewDecisionHandler(processor, deps.DecisionStore, deps.TaskStore, a.logger),
		Policies:  handler.NewPolicyHandler(deps.PolicyStore, a.logger),
		Archives:  handler.NewArchiveHandler(deps.BlobReader, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimitPerMinute,
		RateLimitWindow: time.Minute,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
