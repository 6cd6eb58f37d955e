package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/executor"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/server"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/server/handler"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/server/middleware"
)

// TradeMode runs the full pipeline: quote polling, detection, risk
// authorization, and execution, plus the optional reporting server and
// archiver.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Any("venues", deps.Aggregator.Sources()),
		slog.String("signer", deps.Signer.Identity()),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startQuoteInfra(ctx, g, deps)
	a.startReportingInfra(ctx, g, deps)

	g.Go(func() error {
		return a.runEngineLoop(ctx, deps, true)
	})

	return g.Wait()
}

// MonitorMode runs quote polling and detection without executing anything.
// Detected opportunities are logged and published but never traded.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Any("venues", deps.Aggregator.Sources()),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startQuoteInfra(ctx, g, deps)
	a.startReportingInfra(ctx, g, deps)

	g.Go(func() error {
		return a.runEngineLoop(ctx, deps, false)
	})

	return g.Wait()
}

// ServerMode serves the reporting API over an existing execution ledger
// without running the trading pipeline.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startReportingInfra(ctx, g, deps)
	return g.Wait()
}

// startQuoteInfra launches the staleness sweeper and websocket stream
// sources.
func (a *App) startQuoteInfra(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Aggregator.RunSweeper(ctx)
	})
	for _, src := range deps.StreamSources {
		g.Go(func() error {
			defer src.Close()
			return src.Run(ctx)
		})
	}
}

// startReportingInfra launches the HTTP server and archiver when configured.
func (a *App) startReportingInfra(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Server.Enabled {
		handlers := server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Executions: handler.NewExecutionHandler(deps.Store, a.logger),
		}
		if deps.Aggregator != nil {
			handlers.Quotes = handler.NewQuoteHandler(deps.Aggregator, a.logger)
		}

		var limiter middleware.RateLimiter
		if deps.RateLimiter != nil {
			limiter = deps.RateLimiter
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		}, handlers, limiter, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.S3.ArchiveInterval.Duration)
		})
	}
}

// runEngineLoop drives detection cycles: refresh quotes for every watched
// pair, detect the best opportunity per pair, and (when execute is set)
// route it through risk and execution.
func (a *App) runEngineLoop(ctx context.Context, deps *Dependencies, execute bool) error {
	interval := a.cfg.Engine.CycleInterval.Duration
	if interval <= 0 {
		interval = 2 * time.Second
	}
	refAmount := a.cfg.Engine.ReferenceAmount

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var cycle uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		cycle++

		for _, pair := range deps.Pairs {
			if err := deps.Aggregator.Refresh(ctx, pair, refAmount); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.WarnContext(ctx, "quote refresh failed",
					slog.String("pair", pair.String()),
					slog.String("error", err.Error()))
				continue
			}

			quotes := deps.Aggregator.LatestQuotes(pair)
			opps := deps.Detector.Detect(pair, quotes)
			if len(opps) == 0 {
				continue
			}
			opp := opps[0]

			a.logger.InfoContext(ctx, "opportunity detected",
				slog.String("pair", pair.String()),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.Float64("net_profit_pct", opp.NetProfitPct),
				slog.Float64("max_trade", opp.MaxTradeAmount))

			if !execute {
				continue
			}
			a.executeOpportunity(ctx, deps, opp, cycle)
		}
	}
}

// executeOpportunity sizes, authorizes, and executes one opportunity.
// Failures are logged and recorded; they never abort the engine loop.
func (a *App) executeOpportunity(ctx context.Context, deps *Dependencies, opp domain.Opportunity, cycle uint64) {
	sized := a.cfg.Engine.ReferenceAmount
	if sized > opp.MaxTradeAmount {
		sized = opp.MaxTradeAmount
	}
	if sized < opp.MinTradeAmount {
		a.logger.InfoContext(ctx, "opportunity below minimum size",
			slog.String("pair", opp.Pair.String()),
			slog.Float64("sized", sized))
		return
	}

	signerID := deps.Signer.Identity()
	req := domain.ExecutionRequest{
		Opportunity:    opp,
		SizedAmount:    sized,
		Signer:         signerID,
		IdempotencyKey: executor.IdempotencyKey(opp.Pair, cycle, signerID),
		MaxSlippageBps: a.cfg.Executor.MaxSlippageBps,
		Deadline:       time.Now().Add(a.cfg.Executor.Deadline.Duration),
		Cycle:          cycle,
	}

	decision := deps.Governor.Authorize(ctx, signerID, opp, sized)
	if !decision.Approved {
		a.logger.InfoContext(ctx, "execution denied",
			slog.String("pair", opp.Pair.String()),
			slog.String("reason", decision.Reason))
		if _, err := deps.Coordinator.RecordDenial(ctx, req, decision.Reason); err != nil {
			a.logger.ErrorContext(ctx, "record denial failed", slog.String("error", err.Error()))
		}
		return
	}

	rec, err := deps.Coordinator.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrSignerBusy) {
			a.logger.InfoContext(ctx, "signer busy, skipping cycle",
				slog.String("signer", signerID))
			return
		}
		a.logger.ErrorContext(ctx, "execution error",
			slog.String("pair", opp.Pair.String()),
			slog.String("error", err.Error()))
		return
	}

	a.logger.InfoContext(ctx, "execution finished",
		slog.String("id", rec.ID),
		slog.String("status", string(rec.Status)),
		slog.String("reason", rec.Reason))
}
