package scheduler

import (
	"context"
	"errors"
	"fmt"

	"spotter_portal_backend/internal/notification"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/config"
	"spotter_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Deliverer makes one delivery attempt for an update.
type Deliverer interface {
	Deliver(ctx context.Context, updateID int64) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	deliverer Deliverer
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deliverer Deliverer, log *logger.Logger) (*Worker, error) {
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
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		deliverer: deliverer,
		log:       log,
	}

	mux.HandleFunc(TaskDeliverUpdate, w.handleDeliverUpdate)

	return w, nil
}

// handleDeliverUpdate lets asynq retry channel failures and stops retries
// once the update can never be delivered.
func (w *Worker) handleDeliverUpdate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeliverUpdatePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	err = w.deliverer.Deliver(ctx, payload.UpdateID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notification.ErrAttemptsExhausted):
		w.log.Warn("update delivery gave up", "update_id", payload.UpdateID, "error", err)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	case apperr.Is(err, apperr.KindNotFound):
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	default:
		return err
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
