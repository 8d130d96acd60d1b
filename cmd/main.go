package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/config"
	"toon-shelf/history"
	"toon-shelf/logging"
	"toon-shelf/metrics"
	"toon-shelf/notifier"
	"toon-shelf/scheduler"
	"toon-shelf/scraper"
	"toon-shelf/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Invalid configuration", zap.Error(err))
	}

	logger, syncLogs, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer syncLogs()

	logger.Info("Starting Toon Shelf maintenance daemon",
		zap.String("backend", cfg.Backend),
		zap.String("origin", cfg.Origin),
		zap.String("run_mode", cfg.RunMode),
	)

	storeOpts := cfg.StorageOptions()
	storeOpts.Logger = logger.Named("storage")
	store, err := storage.Open(storeOpts)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	catalogURL, _ := cfg.CatalogURL()
	fetcher := scraper.NewScraper(cfg.FetchTimeout, logger.Named("scraper"))
	cache := catalog.NewCache(store, fetcher, catalogURL,
		catalog.WithTTL(cfg.CatalogTTL),
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithRecorder(recorder),
	)
	historyStore := history.NewStore(store,
		history.WithLogger(logger.Named("history")),
		history.WithEvictor(cache.Evictor()),
	)

	var changeNotifier scheduler.ChangeNotifier
	emailConfig := notifier.GetEmailConfigFromEnv(logger.Named("notifier"))
	if emailConfig.Enabled() {
		changeNotifier = notifier.NewEmailNotifier(emailConfig, logger.Named("notifier"))
		logger.Info("Catalog change notifications enabled", zap.String("recipient", emailConfig.RecipientEmail))
	} else {
		logger.Info("Catalog change notifications disabled: missing configuration")
	}

	refreshJob := scheduler.NewCatalogRefreshJob(cache, catalogURL, changeNotifier, logger.Named("refresh"))
	sweepJob := scheduler.NewProgressSweepJob(historyStore, logger.Named("sweep"))

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, registry, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	switch cfg.RunMode {
	case config.RunModeOnce:
		logger.Info("Running in single execution mode")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := refreshJob.Run(ctx); err != nil {
			logger.Error("Catalog refresh failed", zap.Error(err))
		}
		if err := sweepJob.Run(ctx); err != nil {
			logger.Error("Progress sweep failed", zap.Error(err))
		}
		displayStoreStats(store, cache, logger)

	default:
		logger.Info("Starting in scheduler mode")
		sched := scheduler.NewScheduler(logger.Named("scheduler"))

		if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
			logger.Fatal("Failed to schedule catalog refresh", zap.Error(err))
		}
		if err := sched.AddJob(cfg.SweepSchedule, sweepJob); err != nil {
			logger.Fatal("Failed to schedule progress sweep", zap.Error(err))
		}

		// Seed the in-memory snapshot so the first refresh can diff against it.
		cache.Load(context.Background())

		sched.Start()

		if cfg.RunAtStartup {
			logger.Info("Running jobs at startup")
			for _, name := range []string{refreshJob.Name(), sweepJob.Name()} {
				if err := sched.RunJobNow(name); err != nil {
					logger.Error("Startup job failed", zap.String("job", name), zap.Error(err))
				}
			}
		}

		displayStoreStats(store, cache, logger)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		logger.Info("Application running. Press Ctrl+C to exit")

		sig := <-quit
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		sched.Stop()
	}

	logger.Info("Application exiting")
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}

// displayStoreStats logs what the store holds for this origin.
func displayStoreStats(store storage.Backend, cache *catalog.Cache, logger *zap.Logger) {
	keys, err := store.Keys()
	if err != nil {
		logger.Error("Failed to list store keys", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.Int("keys", len(keys)),
		zap.Int("catalog_entries", len(cache.All())),
	}

	if sqlite, ok := store.(*storage.SQLiteStorage); ok {
		stats, err := sqlite.GetStats()
		if err != nil {
			logger.Error("Failed to get database stats", zap.Error(err))
		} else {
			fields = append(fields, zap.Int("bytes", stats["bytes"]), zap.Int("origins", stats["origins"]))
		}
	}
	logger.Info("Store statistics", fields...)

	recent := catalog.SortByYear(cache.All(), catalog.Descending)
	if len(recent) > 5 {
		recent = recent[:5]
	}
	for _, e := range recent {
		logger.Info("Catalog entry",
			zap.String("title", e.Title),
			zap.Int("year", e.YearOrZero()),
			zap.String("category", e.Category),
		)
	}
}
