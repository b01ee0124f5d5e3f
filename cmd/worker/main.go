package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotter_portal_backend/internal/email"
	"spotter_portal_backend/internal/identity"
	"spotter_portal_backend/internal/notification"
	"spotter_portal_backend/internal/notification/sse"
	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/internal/scheduler"
	"spotter_portal_backend/platform/config"
	"spotter_portal_backend/platform/db"
	"spotter_portal_backend/platform/logger"
	"spotter_portal_backend/platform/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := retry.Do(ctx, log, "database connection", 5, 2*time.Second, func() error {
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

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer rdb.Close()

	queue, err := scheduler.NewClient(cfg, cfg.GetDeliveryMaxAttempts())
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer queue.Close()

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	directory := identity.NewModule(pool).Directory()

	// The worker holds no streams; in-app events go to the API through Redis.
	relay := sse.NewRelay(rdb, "", nil, log)

	dispatcher := notification.NewDispatcher(notification.DispatcherDeps{
		Store:    updates.NewRepository(pool),
		Channels: notification.DefaultChannels(relay, sender, directory, cfg.GetAppBaseURL()),
		Enqueuer: queue,
		Guard:    scheduler.NewRedisGuard(rdb),
		Log:      log,
	}, notification.WithConfig(cfg))

	worker, err := scheduler.NewWorker(cfg, dispatcher, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	sweep, err := scheduler.NewRedeliverySweep(cfg.GetRedeliverySchedule(), dispatcher, log)
	if err != nil {
		log.Error("invalid redelivery schedule", "error", err, "schedule", cfg.GetRedeliverySchedule())
		panic("invalid redelivery schedule: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})
	_ = g.Wait()

	dispatcher.Wait()
	log.Info("worker stopped")
}
