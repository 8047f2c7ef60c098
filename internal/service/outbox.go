package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
)

// OutboxServiceOptions groups dependencies for OutboxService.
type OutboxServiceOptions struct {
	Repo   core.OutboxRepository // Required: outbox repository
	Logger *slog.Logger          // Optional: structured logger
}

// OutboxService queues transactional email for delivery by the background
// dispatcher. Enqueueing is the only way mail leaves the system; nothing
// sends synchronously.
type OutboxService struct {
	repo   core.OutboxRepository
	logger *slog.Logger
}

// NewOutboxService constructs a new OutboxService.
func NewOutboxService(opts OutboxServiceOptions) (*OutboxService, error) {
	if opts.Repo == nil {
		return nil, errors.New("OutboxRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxService{repo: opts.Repo, logger: logger.With("component", "outbox_service")}, nil
}

// Repo exposes the underlying repository for the background dispatcher,
// which reserves and marks messages directly.
//
//nolint:ireturn // the dispatcher consumes the repository through its port.
func (s *OutboxService) Repo() core.OutboxRepository {
	return s.repo
}

// Enqueue records a message for asynchronous delivery.
func (s *OutboxService) Enqueue(ctx context.Context, toEmail, subject, body string) (*model.OutboxMessage, error) {
	return s.repo.Enqueue(ctx, core.EnqueueMailParams{
		ToEmail: toEmail,
		Subject: subject,
		Body:    body,
	})
}

// PruneSent deletes delivered messages older than maxAge, up to batchSize
// rows per call.
func (s *OutboxService) PruneSent(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	n, err := s.repo.DeleteOldSent(ctx, maxAge, batchSize)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "pruned sent outbox messages", "deleted", n)
	}
	return n, nil
}
