// Package maildispatch drains the transactional mail outbox and hands
// messages to a Mailer for delivery.
package maildispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
	"github.com/tasknest/tasknest/internal/observability/metrics"
	"github.com/tasknest/tasknest/internal/observability/statsd"
	"github.com/tasknest/tasknest/internal/ports"
)

const (
	defaultInterval    = 15 * time.Second
	defaultBatchSize   = 25
	defaultConcurrency = 4
)

// Options groups dependencies for the Dispatcher.
type Options struct {
	Outbox  core.OutboxRepository // Required: outbox repository
	Mailer  ports.Mailer          // Required: mail delivery client
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: delivery metrics

	// Interval between outbox sweeps. Defaults to 15s.
	Interval time.Duration
	// BatchSize is the maximum number of messages claimed per sweep.
	// Defaults to 25.
	BatchSize int
	// Concurrency bounds parallel deliveries within a batch. Defaults to 4.
	Concurrency int
}

// Dispatcher periodically claims pending outbox messages and delivers them.
// Claiming uses row locks, so multiple dispatcher instances can run against
// the same database without double-sending.
type Dispatcher struct {
	outbox      core.OutboxRepository
	mailer      ports.Mailer
	logger      *slog.Logger
	metrics     statsd.Sink
	interval    time.Duration
	batchSize   int
	concurrency int
}

// NewDispatcher constructs a Dispatcher, applying defaults for unset options.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Outbox == nil {
		return nil, errors.New("OutboxRepository is required")
	}
	if opts.Mailer == nil {
		return nil, errors.New("Mailer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mail_dispatcher")

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Dispatcher{
		outbox:      opts.Outbox,
		mailer:      opts.Mailer,
		logger:      logger,
		metrics:     opts.Metrics,
		interval:    interval,
		batchSize:   batchSize,
		concurrency: concurrency,
	}, nil
}

// Run sweeps the outbox until the context is cancelled. Returns nil on
// graceful shutdown (context.Canceled), the context error otherwise.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "starting mail dispatcher",
		"interval", d.interval,
		"batch_size", d.batchSize,
		"concurrency", d.concurrency,
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Sweep once at startup so queued mail is not delayed by a full interval.
	d.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "mail dispatcher stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep drains the outbox in batches until no pending messages remain or the
// context is cancelled. Errors are logged per message, never fatal: a failed
// delivery stays in the outbox for a later sweep.
func (d *Dispatcher) sweep(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := d.outbox.ReserveBatch(ctx, d.batchSize)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to reserve outbox batch", "error", err)
			return
		}
		if len(batch) == 0 {
			return
		}

		d.deliverBatch(ctx, batch)

		// A short batch means the queue is drained.
		if len(batch) < d.batchSize {
			return
		}
	}
}

// deliverBatch fans deliveries out across a bounded worker group.
func (d *Dispatcher) deliverBatch(ctx context.Context, batch []*model.OutboxMessage) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, msg := range batch {
		g.Go(func() error {
			d.deliver(gctx, msg)
			return nil
		})
	}

	// Workers never return errors; Wait only orders completion.
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg *model.OutboxMessage) {
	start := time.Now()
	err := d.mailer.Send(ctx, ports.MailMessage{
		To:      msg.ToEmail,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitMailDelivery(d.metrics, metrics.MailDelivery{
		Result:   result,
		Duration: time.Since(start),
	})
	if err != nil {
		d.logger.WarnContext(ctx, "mail delivery failed",
			"message_id", msg.ID,
			"to", msg.ToEmail,
			"attempts", msg.Attempts,
			"error", err,
		)
		if markErr := d.outbox.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			d.logger.ErrorContext(ctx, "failed to record delivery failure",
				"message_id", msg.ID, "error", markErr)
		}
		return
	}

	if markErr := d.outbox.MarkSent(ctx, msg.ID, time.Now().UTC()); markErr != nil {
		d.logger.ErrorContext(ctx, "failed to record delivery",
			"message_id", msg.ID, "error", markErr)
		return
	}

	d.logger.DebugContext(ctx, "mail delivered", "message_id", msg.ID, "to", msg.ToEmail)
}
