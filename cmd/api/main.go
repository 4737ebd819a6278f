package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp_sdr_backend/internal/email"
	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/internal/funnel"
	"whatsapp_sdr_backend/internal/funnel/agent"
	apphttp "whatsapp_sdr_backend/internal/http"
	"whatsapp_sdr_backend/internal/http/router"
	"whatsapp_sdr_backend/internal/notification"
	"whatsapp_sdr_backend/internal/scheduler"
	"whatsapp_sdr_backend/internal/whatsapp"
	"whatsapp_sdr_backend/migrations"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/db"
	"whatsapp_sdr_backend/platform/lock"
	"whatsapp_sdr_backend/platform/logger"
	"whatsapp_sdr_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	locker, closeLocker := initLocker(cfg, log)
	if closeLocker != nil {
		defer closeLocker()
	}

	turnClient, closeClient := initTurnClient(cfg, log)
	if closeClient != nil {
		defer closeClient()
	}

	sdr, err := agent.NewSDRFromConfig(cfg, log)
	if err != nil {
		log.Error("failed to initialize sdr agent", "error", err)
		panic("failed to initialize sdr agent: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	whatsappClient := whatsapp.NewClient(cfg, log)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(email.NewSender(cfg), whatsappClient, log)
	notificationModule.RegisterHandlers(eventBus)

	funnelModule := funnel.NewModule(pool, eventBus, locker, sdr, val, cfg, log)

	modules := []apphttp.Module{funnelModule}
	if turnClient != nil {
		modules = append(modules, whatsapp.NewModule(funnelModule.Repository(), turnClient, cfg, log))
	} else {
		log.Warn("REDIS_URL not configured; whatsapp webhook disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules:  modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		funnelModule.Engine().Wait()
		eventBus.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

// initLocker prefers the Redis locker so the API and the worker serialize on the
// same keys. Without Redis the lock is process local.
func initLocker(cfg *config.Config, log *logger.Logger) (lock.Locker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; using in-process conversation lock")
		return lock.NewLocalLocker(cfg.GetConversationLockWait()), nil
	}

	locker, err := lock.NewRedisLocker(cfg)
	if err != nil {
		log.Error("failed to initialize redis locker", "error", err)
		panic("failed to initialize redis locker: " + err.Error())
	}
	return locker, func() {
		_ = locker.Close()
	}
}

func initTurnClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize turn queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
