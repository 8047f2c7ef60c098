package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tasknest/tasknest/config"
	"github.com/tasknest/tasknest/internal/adapters/maildispatch"
	"github.com/tasknest/tasknest/internal/service"
)

// MailDispatcherConfig contains configuration for the outbox dispatcher service.
type MailDispatcherConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunMailDispatcher runs the outbox dispatcher and its prune loop until the
// context is cancelled. Requires a configured mail provider.
func RunMailDispatcher(ctx context.Context, cfg MailDispatcherConfig) error {
	if cfg.Config == nil || cfg.Services == nil {
		return errors.New("mail dispatcher requires config and services")
	}
	if cfg.Services.Mailer == nil {
		return errors.New("mail dispatcher enabled but no mail provider configured (set MAIL_BASE_URL and MAIL_API_KEY)")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dispatchCfg := cfg.Config.Mail.Dispatch
	dispatcher, err := maildispatch.NewDispatcher(maildispatch.Options{
		Outbox:      cfg.Services.Outbox.Repo(),
		Mailer:      cfg.Services.Mailer,
		Logger:      logger,
		Metrics:     cfg.Services.Observability.MetricsSink,
		Interval:    dispatchCfg.Interval,
		BatchSize:   dispatchCfg.BatchSize,
		Concurrency: dispatchCfg.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("create mail dispatcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		return runOutboxPruner(gctx, cfg.Services.Outbox, dispatchCfg, logger)
	})
	return g.Wait()
}

// runOutboxPruner deletes old sent mail on a slow cadence so the outbox
// table does not grow without bound.
func runOutboxPruner(
	ctx context.Context,
	outbox *service.OutboxService,
	cfg config.MailDispatchConfig,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			// PruneSent logs the deleted count itself.
			if _, err := outbox.PruneSent(ctx, cfg.PruneMaxAge, cfg.PruneBatchSize); err != nil {
				logger.ErrorContext(ctx, "outbox prune failed", "error", err)
			}
		}
	}
}
