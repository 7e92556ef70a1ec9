package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xaenox/goodluck-bot/internal/auth"
	"github.com/xaenox/goodluck-bot/internal/bot"
	"github.com/xaenox/goodluck-bot/internal/buffer"
	"github.com/xaenox/goodluck-bot/internal/classifier"
	"github.com/xaenox/goodluck-bot/internal/enabled"
	"github.com/xaenox/goodluck-bot/internal/metrics"
	"github.com/xaenox/goodluck-bot/internal/registry"
	"github.com/xaenox/goodluck-bot/internal/scheduler"
	"github.com/xaenox/goodluck-bot/internal/selector"
	"github.com/xaenox/goodluck-bot/internal/storage"
	"github.com/xaenox/goodluck-bot/internal/tally"
	"github.com/xaenox/goodluck-bot/internal/tracker"
	"github.com/xaenox/goodluck-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	var startupErr *config.StartupError
	if errors.As(err, &startupErr) {
		logger.Fatal("Invalid configuration",
			zap.Strings("missing", startupErr.Missing),
			zap.Strings("invalid", startupErr.Invalid))
	}
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize storage
	var store storage.SheetStore
	if cfg.Store.Driver == config.DriverMemory {
		logger.Info("Using in-memory store")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL store")
		db := cfg.Store.Database
		pg, err := storage.NewPostgresStore(ctx, storage.DatabaseConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			DBName:   db.DBName,
			SSLMode:  db.SSLMode,
		}, cfg.Store.SpreadsheetID, logger.Named("storage"))
		if err != nil {
			logger.Fatal("Failed to initialize store", zap.Error(err))
		}
		store = pg
	}
	store = storage.WithMetrics(store)
	defer store.Close()

	// Load the enabled chats
	persister, err := newPersister(ctx, cfg, store)
	if err != nil {
		logger.Fatal("Failed to initialize enabled chats backend",
			zap.Error(err),
			zap.String("backend", cfg.Enabled.Backend))
	}
	if c, ok := persister.(interface{ Close() error }); ok {
		defer c.Close()
	}
	set, err := enabled.Load(ctx, persister, logger.Named("enabled"))
	if err != nil {
		logger.Fatal("Failed to load enabled chats", zap.Error(err))
	}

	reg := registry.New()
	table := tally.New()
	buf := buffer.NewBuffer()
	flusher := buffer.NewFlusher(buf, store, table, buffer.Options{
		SummaryDestination: cfg.Store.SummaryDestination,
		MaxAttempts:        cfg.Tracking.MaxAttempts,
		Timeout:            cfg.Store.Timeout,
	}, logger.Named("flusher"))

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, cfg.Telegram.PollTimeout, logger.Named("bot"))
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	engine := tracker.New(tracker.Deps{
		Messenger:  b,
		Guard:      auth.NewGuard(cfg.Operators),
		Registry:   reg,
		Selector:   selector.New(cfg.Tracking.Scope, reg, set),
		Classifier: classifier.NewTriggerClassifier(cfg.Tracking.MatchMode, cfg.Tracking.Triggers),
		Table:      table,
		Buffer:     buf,
		Flusher:    flusher,
		Enabled:    set,
	}, logger.Named("tracker"))

	// Background jobs. Store calls are bounded by their own timeout; shutdown does not cut them short.
	flushJob := scheduler.NewJob("flush", cfg.Tracking.FlushInterval, func(ctx context.Context) error {
		_, err := flusher.Flush(context.WithoutCancel(ctx))
		if errors.Is(err, buffer.ErrFlushInProgress) {
			return nil
		}
		return err
	}, logger)
	flushJob.Start(ctx)

	var resetJob *scheduler.Job
	if cfg.Tracking.ResetInterval > 0 {
		resetJob = scheduler.NewJob("reset", cfg.Tracking.ResetInterval, func(ctx context.Context) error {
			previous := table.Reset()
			logger.Info("Counts reset", zap.Int("senders", len(previous)))
			return nil
		}, logger)
		resetJob.Start(ctx)
	}

	var server *metrics.Server
	if cfg.Metrics.Addr != "" {
		server = metrics.NewServer(cfg.Metrics.Addr, engine.Health, logger.Named("metrics"))
		server.Start()
	}

	logger.Info("Bot started",
		zap.Strings("triggers", cfg.Tracking.Triggers),
		zap.String("match_mode", string(cfg.Tracking.MatchMode)),
		zap.String("scope", string(cfg.Tracking.Scope)),
		zap.Int("enabled_chats", len(set.List())),
		zap.Duration("flush_interval", cfg.Tracking.FlushInterval))

	// Blocks until the signal context is cancelled
	runErr := b.Run(ctx, engine)

	logger.Info("Shutting down")
	flushJob.Stop()
	if resetJob != nil {
		resetJob.Stop()
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Store.Timeout)
	defer cancel()
	if res, err := flusher.Flush(flushCtx); err != nil {
		logger.Error("Final flush failed",
			zap.Error(err),
			zap.Int("requeued", res.Requeued),
			zap.Int("pending", buf.Len()))
	}

	if server != nil {
		if err := server.Shutdown(flushCtx); err != nil {
			logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}
	return runErr
}

func newPersister(ctx context.Context, cfg *config.Config, store storage.SheetStore) (enabled.Persister, error) {
	switch cfg.Enabled.Backend {
	case config.BackendSheet:
		return enabled.NewSheetPersister(store, cfg.Enabled.Destination, cfg.Store.Timeout), nil
	case config.BackendRedis:
		p, err := enabled.NewRedisPersister(ctx, cfg.Enabled.RedisURL, cfg.Enabled.RedisKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendMemory:
		return enabled.NewMemoryPersister(), nil
	default:
		return enabled.NewFilePersister(cfg.Enabled.Path), nil
	}
}
