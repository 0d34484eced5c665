package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LookTrainer/internal/config"
	"LookTrainer/internal/http/handler"
	"LookTrainer/internal/http/router"
	"LookTrainer/internal/infrastructure/events"
	"LookTrainer/internal/infrastructure/export"
	"LookTrainer/internal/infrastructure/rulecache"
	"LookTrainer/internal/infrastructure/scheduler"
	"LookTrainer/internal/infrastructure/storage"
	"LookTrainer/internal/infrastructure/telegram"
	"LookTrainer/internal/logging"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/mining"
	"LookTrainer/internal/ports"
	"LookTrainer/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// store is what the application needs from a backing store.
type store interface {
	ports.ItemStore
	ports.SessionStore
	ports.PatternStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    store
	registry *prometheus.Registry

	Sessions *usecase.ReviewSessions
	Feedback *usecase.FeedbackProcessor
	Compiler *usecase.RuleCompiler
	Rules    *rulecache.Cache

	pubSub     *gochannel.GoChannel
	worker     *events.MiningWorker
	stopWorker context.CancelFunc
	scheduler  *usecase.Scheduler
}

// New opens the configured store and builds every use case on top of it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a, err := build(cfg, st, baseLogger)
	if err != nil {
		if c, ok := st.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store, error) {
	if cfg.Driver == "memory" {
		return storage.NewMemoryStore(), nil
	}
	st, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return st, nil
}

func build(cfg config.Config, st store, baseLogger *slog.Logger) (*Application, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    st,
		registry: registry,
		Rules:    rulecache.New(cfg.Rules.CacheTTL),
	}

	miner := mining.NewMiner(mining.MinerDeps{
		Items:    st,
		Patterns: st,
		Registry: mining.DefaultRegistry(cfg.Training),
		Metrics:  m,
		Logger:   baseLogger.With("component", "miner"),
	})

	var queue ports.MiningQueue
	if cfg.Mining.Async {
		a.pubSub = events.NewPubSub()
		queue = events.NewMiningQueue(a.pubSub, cfg.Mining.Topic)
		a.worker = events.NewMiningWorker(events.WorkerDeps{
			Subscriber:  a.pubSub,
			Topic:       cfg.Mining.Topic,
			Miner:       miner,
			MaxAttempts: cfg.Mining.MaxAttempts,
			Backoff:     200 * time.Millisecond,
			Metrics:     m,
			Logger:      baseLogger.With("component", "mining.worker"),
		})

		// the worker subscribes before any feedback can be published and
		// outlives request contexts; Close stops it after draining
		workerCtx, stop := context.WithCancel(context.Background())
		if err := a.worker.Start(workerCtx); err != nil {
			stop()
			_ = a.pubSub.Close()
			return nil, fmt.Errorf("start mining worker: %w", err)
		}
		a.stopWorker = stop
	} else {
		queue = mining.NewInlineQueue(miner, baseLogger.With("component", "miner"))
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	a.Sessions = usecase.NewReviewSessions(usecase.ReviewSessionDeps{
		Items:      st,
		Sessions:   st,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     baseLogger.With("component", "review_sessions"),
		BatchSize:  cfg.Review.BatchSize,
		SessionTTL: cfg.Review.SessionTTL,
		QueueLimit: cfg.Review.QueueLimit,
		BaseURL:    cfg.Review.BaseURL,
	})

	a.Feedback = usecase.NewFeedbackProcessor(usecase.FeedbackDeps{
		Items:    st,
		Sessions: st,
		Mining:   queue,
		Metrics:  m,
		Logger:   baseLogger.With("component", "feedback"),
	})

	sinks := []ports.RulesetSink{a.Rules}
	if cfg.Rules.ExportPath != "" {
		sinks = append(sinks, export.NewFileSink(cfg.Rules.ExportPath))
	}
	a.Compiler = usecase.NewRuleCompiler(usecase.CompilerDeps{
		Patterns: st,
		Training: cfg.Training,
		Sinks:    sinks,
		Metrics:  m,
		Logger:   baseLogger.With("component", "compiler"),
	})

	if cfg.Rules.ExportPath != "" && cfg.Rules.ExportInterval > 0 {
		a.scheduler = usecase.NewScheduler(
			scheduler.NewIntervalScheduler(cfg.Rules.ExportInterval),
			a.Compiler,
			baseLogger.With("component", "scheduler"),
		)
	}

	return a, nil
}

// Migrate applies the embedded schema; the memory store needs none.
func (a *Application) Migrate(ctx context.Context) error {
	m, ok := a.store.(interface {
		Migrate(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

// Start launches the export schedule. The mining worker already runs from New.
func (a *Application) Start(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

// Handler exposes the reviewer API.
func (a *Application) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := handler.NewTrainingHandler(a.Sessions, a.Feedback, a.Compiler, a.Rules, a.logger.With("component", "http"))
	router.SetupRoutes(engine, h, router.RouterConfig{
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	})
	return engine
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops background work, waits (bounded by ctx) for the mining worker
// to finish its current job and then releases the store.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop(ctx))
	}
	if a.pubSub != nil {
		errs = append(errs, a.pubSub.Close())
	}
	if a.worker != nil {
		select {
		case <-a.worker.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for mining worker: %w", ctx.Err()))
		}
		a.stopWorker()
	}
	if c, ok := a.store.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
