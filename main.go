package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/wordquiz/internal/ai"
	"github.com/example/wordquiz/internal/cache"
	"github.com/example/wordquiz/internal/config"
	"github.com/example/wordquiz/internal/database"
	"github.com/example/wordquiz/internal/excel"
	"github.com/example/wordquiz/internal/logger"
	"github.com/example/wordquiz/internal/metrics"
	"github.com/example/wordquiz/internal/quiz"
	"github.com/example/wordquiz/internal/scheduler"
	"github.com/example/wordquiz/internal/selection"
	"github.com/example/wordquiz/internal/statistics"
	"github.com/example/wordquiz/internal/tracker"
	"github.com/example/wordquiz/pkg/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if len(os.Args) > 2 && os.Args[1] == "import" {
		if err := importWords(cfg, zlog, os.Args[2]); err != nil {
			zlog.Fatal("Import failed", zap.Error(err))
		}
		return
	}

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("Quiz service stopped with error", zap.Error(err))
	}
	zlog.Info("Quiz service stopped successfully")
}

// importWords merges a CSV or Excel word list into the vocabulary sheet
func importWords(cfg *config.Config, zlog *zap.Logger, path string) error {
	importCfg := excel.DefaultImportConfig()
	importCfg.FilePath = path

	sheet := excel.NewStore(cfg.Sheet.Path, clockwork.NewRealClock(), zlog.Named("sheet"))
	result, err := sheet.ImportWords(importCfg)
	if err != nil {
		return err
	}
	zlog.Info("Import finished",
		zap.String("file", path),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Strings("errors", result.Errors))
	return nil
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	db, err := database.Open(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, aggregator, err := buildService(cfg, db, clock, loc, m, zlog)
	if err != nil {
		return err
	}

	if err := svc.LoadCaches(ctx); err != nil {
		zlog.Warn("Failed to load content caches", zap.Error(err))
	}

	sched := scheduler.New(svc, aggregator, cfg.Cache.FlushInterval, loc, zlog.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			zlog.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	zlog.Info("Quiz service started. Press Ctrl+C to stop.",
		zap.String("database", cfg.Database.Type),
		zap.String("sheet", cfg.Sheet.Path),
		zap.Strings("users", cfg.Users))
	<-ctx.Done()
	zlog.Info("Shutting down")

	// Give pending work time to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error("Error during metrics server shutdown", zap.Error(err))
		}
	}
	if err := svc.FlushCaches(shutdownCtx); err != nil {
		zlog.Error("Failed to flush caches on shutdown", zap.Error(err))
	}
	return nil
}

func buildService(cfg *config.Config, db *sqlx.DB, clock clockwork.Clock, loc *time.Location, m *metrics.Metrics, zlog *zap.Logger) (*quiz.Service, *statistics.Aggregator, error) {
	wordRepo, err := database.NewExposureRepository(db, models.KindVocabulary)
	if err != nil {
		return nil, nil, err
	}
	problemRepo, err := database.NewExposureRepository(db, models.KindMath)
	if err != nil {
		return nil, nil, err
	}
	trackerOpts := []tracker.Option{tracker.WithClock(clock), tracker.WithLocation(loc), tracker.WithMetrics(m)}
	words := tracker.New(wordRepo, zlog.Named("tracker"), trackerOpts...)
	problems := tracker.New(problemRepo, zlog.Named("tracker"), trackerOpts...)

	store := database.NewCacheRepository(db)
	cacheOpts := func(name string, ttl time.Duration) cache.Options {
		return cache.Options{
			Name:          name,
			TTL:           ttl,
			FlushInterval: cfg.Cache.FlushInterval,
			Store:         store,
			Clock:         clock,
			Metrics:       m,
			Logger:        zlog.Named("cache"),
		}
	}
	caches := quiz.Caches{
		Words:        cache.New[models.Word](cacheOpts("words", cfg.Cache.WordTTL)),
		Problems:     cache.New[models.MathProblem](cacheOpts("math_problems", cache.NoExpiration)),
		Explanations: cache.New[string](cacheOpts("explanations", cache.NoExpiration)),
	}

	var provider quiz.Provider
	client, err := ai.New(ai.Config{
		APIKey:          cfg.OpenAI.APIKey,
		URL:             cfg.OpenAI.URL,
		Model:           cfg.OpenAI.Model,
		Timeout:         cfg.OpenAI.Timeout,
		MaxRetries:      cfg.OpenAI.MaxRetries,
		DailyTokenLimit: cfg.OpenAI.DailyTokenLimit,
		Location:        loc,
	}, zlog.Named("openai"), m, clock)
	if err != nil {
		zlog.Warn("Content generation disabled, serving stored and fallback content", zap.Error(err))
	} else {
		provider = client
	}

	sheet := excel.NewStore(cfg.Sheet.Path, clock, zlog.Named("sheet"))
	svc := quiz.NewService(quiz.Config{
		GradeThreshold:    cfg.Quiz.GradeThreshold,
		MaxExposure:       cfg.Quiz.MaxExposureCount,
		DailyWordLimit:    cfg.Quiz.DailyWordLimit,
		DailyProblemLimit: cfg.Quiz.DailyProblemLimit,
		DistractorCount:   cfg.Quiz.DistractorCount,
	}, provider, sheet, words, problems, caches, selection.NewSelector(), zlog.Named("quiz"))

	aggregator := statistics.NewAggregator(zlog.Named("statistics"), wordRepo, problemRepo)
	return svc, aggregator, nil
}
