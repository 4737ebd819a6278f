package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"whatsapp_sdr_backend/platform/apperr"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const busyRetryDelay = 5 * time.Second

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, turns *TurnHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		RetryDelayFunc: retryDelay,
		Logger:         newAsynqLogger(log),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskConversationTurn, turns)

	return &Worker{
		server: server,
		mux:    mux,
		log:    log,
	}, nil
}

// retryDelay retries quickly when another worker holds the conversation and backs
// off exponentially otherwise.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if apperr.Is(err, apperr.KindConflict) {
		return busyRetryDelay
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}

// Run starts processing and blocks until ctx is done, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if err := w.server.Start(w.mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			w.log.Error("scheduler worker stopped", "error", err)
		}
		return
	}
	w.log.Info("scheduler worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
}

// asynqLogger routes asynq's internal logging through the service logger.
type asynqLogger struct {
	log *slog.Logger
}

var (
	osExit = os.Exit
	// exit is swapped in tests.
	exit = osExit
)

func newAsynqLogger(log *logger.Logger) *asynqLogger {
	return &asynqLogger{log: log.Logger.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...), "fatal", true)
	exit(1)
}
