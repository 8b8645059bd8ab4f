package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mardiprk/Mini-MetaDAO/internal/engine"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/handler"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/ws"
	"github.com/Mardiprk/Mini-MetaDAO/internal/service"
)

// shutdownGrace is how long in-flight requests get to finish after the run
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the HTTP + WebSocket API over the wired ledger, cache,
// and signal bus. It blocks until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := engine.New(deps.Ledger, engine.Params{
		FeeBps:      a.cfg.Economics.FeeBps,
		MinBet:      a.cfg.Economics.MinBet,
		MinDuration: a.cfg.Economics.MinDuration.Duration,
		MaxDuration: a.cfg.Economics.MaxDuration.Duration,
	}, nil, a.logger)

	settlementSvc := service.NewSettlementService(
		eng, deps.Ledger, deps.LockManager, deps.MarketCache,
		deps.SignalBus, deps.AuditStore, deps.Notifier, a.logger,
	)
	querySvc := service.NewQueryService(deps.Ledger, deps.MarketCache, deps.AuditStore, a.logger)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Dao:       handler.NewDaoHandler(settlementSvc, querySvc, a.logger),
		Proposals: handler.NewProposalHandler(settlementSvc, querySvc, a.logger),
		Markets:   handler.NewMarketHandler(settlementSvc, querySvc, a.logger),
		Audit:     handler.NewAuditHandler(querySvc, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: serve mode: %w", err)
	}
	return nil
}

// ArchiveMode performs a one-shot archival of settled markets and the audit
// log to S3, then returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode: archiver not wired")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	settledPath, err := deps.Archiver.ArchiveSettled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive settled: %w", err)
	}
	if settledPath == "" {
		a.logger.InfoContext(ctx, "no settled markets to archive")
	} else {
		a.logger.InfoContext(ctx, "archived settled markets",
			slog.String("path", settledPath),
		)
	}

	auditPath, err := deps.Archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive audit: %w", err)
	}
	if auditPath == "" {
		a.logger.InfoContext(ctx, "no audit entries to archive")
	} else {
		a.logger.InfoContext(ctx, "archived audit log",
			slog.String("path", auditPath),
		)
	}

	return nil
}
