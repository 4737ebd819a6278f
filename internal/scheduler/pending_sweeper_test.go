package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp_sdr_backend/platform/logger"
)

type fakePendingSource struct {
	ids    []string
	before time.Time
	err    error
}

func (s *fakePendingSource) StalePendingConversations(_ context.Context, before time.Time, _ int) ([]string, error) {
	s.before = before
	return s.ids, s.err
}

type fakePruner struct {
	before  time.Time
	deleted int64
}

func (p *fakePruner) DeleteProcessedMessagesBefore(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.deleted, nil
}

func TestPendingSweeperReenqueuesStaleConversations(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	source := &fakePendingSource{ids: []string{"a", "b"}}
	enqueuer := &fakeEnqueuer{}
	s := NewPendingSweeper(source, enqueuer, logger.New("development"), 0)
	s.now = func() time.Time { return now }

	if n := s.sweep(context.Background()); n != 2 {
		t.Fatalf("expected 2 enqueued, got %d", n)
	}
	if !source.before.Equal(now.Add(-pendingGracePeriod)) {
		t.Errorf("unexpected cutoff %s", source.before)
	}
	if len(enqueuer.ids) != 2 {
		t.Errorf("expected both conversations enqueued, got %v", enqueuer.ids)
	}
}

func TestPendingSweeperToleratesFailures(t *testing.T) {
	s := NewPendingSweeper(&fakePendingSource{err: errors.New("db down")}, &fakeEnqueuer{}, logger.New("development"), time.Second)
	if n := s.sweep(context.Background()); n != 0 {
		t.Errorf("expected nothing enqueued, got %d", n)
	}

	s = NewPendingSweeper(&fakePendingSource{ids: []string{"a"}}, &fakeEnqueuer{err: errors.New("redis down")}, logger.New("development"), time.Second)
	if n := s.sweep(context.Background()); n != 0 {
		t.Errorf("expected nothing enqueued, got %d", n)
	}
}

func TestMessageRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	pruner := &fakePruner{deleted: 3}
	m := NewMessageRetention(pruner, logger.New("development"), 0, 48*time.Hour)
	m.now = func() time.Time { return now }

	m.cleanup(context.Background())

	if !pruner.before.Equal(now.Add(-48 * time.Hour)) {
		t.Errorf("unexpected cutoff %s", pruner.before)
	}
}
