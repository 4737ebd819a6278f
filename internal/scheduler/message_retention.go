package scheduler

import (
	"context"
	"time"

	"whatsapp_sdr_backend/platform/logger"
)

const (
	defaultRetentionInterval = time.Hour
	defaultMessageRetention  = 90 * 24 * time.Hour
)

// MessagePruner deletes processed message history.
type MessagePruner interface {
	DeleteProcessedMessagesBefore(ctx context.Context, before time.Time) (int64, error)
}

// MessageRetention periodically removes old processed messages. The decision log
// is kept.
type MessageRetention struct {
	pruner    MessagePruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewMessageRetention(pruner MessagePruner, log *logger.Logger, interval, retention time.Duration) *MessageRetention {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	if retention <= 0 {
		retention = defaultMessageRetention
	}

	return &MessageRetention{
		pruner:    pruner,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (m *MessageRetention) Run(ctx context.Context) {
	if m == nil || m.pruner == nil {
		return
	}

	m.cleanup(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(ctx)
		}
	}
}

func (m *MessageRetention) cleanup(ctx context.Context) {
	deleted, err := m.pruner.DeleteProcessedMessagesBefore(ctx, m.now().Add(-m.retention))
	if err != nil {
		m.log.Warn("message retention cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		m.log.Info("message retention deleted processed messages", "deleted", deleted)
	}
}
