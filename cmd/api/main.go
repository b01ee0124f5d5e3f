package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotter_portal_backend/internal/adapters/storage"
	"spotter_portal_backend/internal/email"
	"spotter_portal_backend/internal/events"
	apphttp "spotter_portal_backend/internal/http"
	"spotter_portal_backend/internal/http/router"
	"spotter_portal_backend/internal/identity"
	"spotter_portal_backend/internal/leads"
	leadadapters "spotter_portal_backend/internal/leads/adapters"
	"spotter_portal_backend/internal/notification"
	"spotter_portal_backend/internal/notification/sse"
	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/internal/scheduler"
	"spotter_portal_backend/migrations"
	"spotter_portal_backend/platform/config"
	"spotter_portal_backend/platform/db"
	"spotter_portal_backend/platform/logger"
	"spotter_portal_backend/platform/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

	if cfg.MigrationsEnabled {
		if err := retry.Do(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	images := initImageStorage(ctx, cfg, log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	rdb, queue := initQueue(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}
	if queue != nil {
		defer queue.Close()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	identityModule := identity.NewModule(pool)
	directory := identityModule.Directory()

	// Live updates: with Redis the worker's deliveries reach this process's
	// streams through the relay.
	stream := sse.New(log)
	var (
		publisher notification.InAppPublisher = stream
		relay     *sse.Relay
	)
	if rdb != nil {
		relay = sse.NewRelay(rdb, "", stream, log)
		publisher = relay
	}

	updateStore := updates.NewRepository(pool)
	deps := notification.DispatcherDeps{
		Store:    updateStore,
		Channels: notification.DefaultChannels(publisher, sender, directory, cfg.GetAppBaseURL()),
		Log:      log,
	}
	if queue != nil {
		deps.Enqueuer = queue
	}
	if rdb != nil {
		deps.Guard = scheduler.NewRedisGuard(rdb)
	}
	dispatcher := notification.NewDispatcher(deps, notification.WithConfig(cfg))

	notificationModule := notification.NewModule(dispatcher, updateStore, stream, directory, log)
	notificationModule.RegisterHandlers(eventBus)

	leadsModule, err := leads.NewModule(pool, leads.Deps{
		Users:    leadadapters.NewIdentityReaderAdapter(directory),
		Notifier: leadadapters.NewNotifierAdapter(dispatcher),
		Bus:      eventBus,
		Images:   images,
	}, cfg, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:     cfg,
		Logger:     log,
		Health:     db.NewPoolAdapter(pool),
		Principals: directory,
		Modules: []apphttp.Module{
			identityModule,
			leadsModule,
			notificationModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		// Streams never go idle on their own.
		stream.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	eventBus.Wait()
	dispatcher.Wait()
	log.Info("server stopped")
}

// initImageStorage returns nil when MinIO is not configured; lead images are
// then stored as keys without presigned URLs.
func initImageStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) *storage.MinIOService {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; lead image URLs disabled")
		return nil
	}

	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := retry.Do(ctx, log, "ensure lead images bucket", 5, 2*time.Second, func() error {
		return svc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", svc.Bucket())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "leadImagesBucket", svc.Bucket())
	return svc
}

// initQueue connects the delivery queue. Without Redis both results are nil
// and updates are delivered in-process.
func initQueue(cfg *config.Config, log *logger.Logger) (*redis.Client, *scheduler.Client) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notifications are delivered in-process")
		return nil, nil
	}

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg, cfg.GetDeliveryMaxAttempts())
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		_ = rdb.Close()
		return nil, nil
	}
	return rdb, client
}
