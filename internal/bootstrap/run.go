package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tasknest/tasknest/config"
)

// ServiceOrchestrationConfig groups dependencies for running enabled services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the enabled services and blocks until a
// termination signal arrives or a service fails, then shuts down gracefully.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("orchestration requires config and services")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Config.IsHTTPServerEnabled() {
		server := StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error {
			<-gctx.Done()
			return ShutdownHTTPServer(context.Background(), server, logger)
		})
	}

	if cfg.Config.IsMailDispatcherEnabled() {
		g.Go(func() error {
			return RunMailDispatcher(gctx, MailDispatcherConfig{
				Config:   cfg.Config,
				Services: cfg.Services,
				Logger:   logger,
			})
		})
	}

	err := g.Wait()

	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		if cerr := sink.Close(); cerr != nil {
			logger.Error("close metrics sink failed", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("all services stopped")
	return nil
}
