package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp_sdr_backend/internal/email"
	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/internal/funnel"
	"whatsapp_sdr_backend/internal/funnel/agent"
	"whatsapp_sdr_backend/internal/notification"
	"whatsapp_sdr_backend/internal/scheduler"
	"whatsapp_sdr_backend/internal/whatsapp"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/db"
	"whatsapp_sdr_backend/platform/lock"
	"whatsapp_sdr_backend/platform/logger"
	"whatsapp_sdr_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const retentionInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	locker, err := lock.NewRedisLocker(cfg)
	if err != nil {
		log.Error("failed to initialize redis locker", "error", err)
		panic("failed to initialize redis locker: " + err.Error())
	}
	defer func() { _ = locker.Close() }()

	turnClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize turn queue client", "error", err)
		panic("failed to initialize turn queue client: " + err.Error())
	}
	defer func() { _ = turnClient.Close() }()

	sdr, err := agent.NewSDRFromConfig(cfg, log)
	if err != nil {
		log.Error("failed to initialize sdr agent", "error", err)
		panic("failed to initialize sdr agent: " + err.Error())
	}

	whatsappClient := whatsapp.NewClient(cfg, log)

	notificationModule := notification.New(email.NewSender(cfg), whatsappClient, log)
	notificationModule.RegisterHandlers(eventBus)

	// Worker-side funnel wiring (no HTTP handlers required).
	funnelModule := funnel.NewModule(pool, eventBus, locker, sdr, validator.New(), cfg, log)
	repo := funnelModule.Repository()

	turns := scheduler.NewTurnHandler(funnelModule.Engine(), repo, whatsappClient, turnClient, cfg.GetHistoryLimit(), log)
	worker, err := scheduler.NewWorker(cfg, turns, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	sweeper := scheduler.NewPendingSweeper(repo, turnClient, log, cfg.GetPendingSweepInterval())
	retention := scheduler.NewMessageRetention(repo, log, retentionInterval, cfg.GetMessageRetention())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		retention.Run(gctx)
		return nil
	})
	_ = g.Wait()

	funnelModule.Engine().Wait()
	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
