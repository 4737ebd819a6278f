package scheduler

import (
	"context"
	"time"

	"whatsapp_sdr_backend/platform/logger"
)

const (
	defaultSweepInterval = time.Minute
	pendingGracePeriod   = 2 * time.Minute
	sweepBatchSize       = 100
)

// PendingSource finds conversations with inbound messages nobody picked up.
type PendingSource interface {
	StalePendingConversations(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// PendingSweeper re-enqueues turn tasks for conversations whose inbound messages
// have been waiting longer than the grace period, e.g. after an enqueue failure
// in the webhook.
type PendingSweeper struct {
	source   PendingSource
	enqueuer TurnEnqueuer
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time
}

func NewPendingSweeper(source PendingSource, enqueuer TurnEnqueuer, log *logger.Logger, interval time.Duration) *PendingSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &PendingSweeper{
		source:   source,
		enqueuer: enqueuer,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

func (s *PendingSweeper) Run(ctx context.Context) {
	if s == nil || s.source == nil || s.enqueuer == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PendingSweeper) sweep(ctx context.Context) int {
	ids, err := s.source.StalePendingConversations(ctx, s.now().Add(-pendingGracePeriod), sweepBatchSize)
	if err != nil {
		s.log.Warn("pending sweep failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, id := range ids {
		if err := s.enqueuer.EnqueueConversationTurn(ctx, id); err != nil {
			s.log.Warn("pending sweep enqueue failed", "conversation_id", id, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.log.Info("pending sweep re-enqueued conversations", "count", enqueued)
	}
	return enqueued
}
