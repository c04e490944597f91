// Package main is the entrypoint for the Nexis API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexis-health/nexis-backend/internal/alerts"
	"github.com/nexis-health/nexis-backend/internal/api"
	"github.com/nexis-health/nexis-backend/internal/api/handler"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/internal/cache"
	"github.com/nexis-health/nexis-backend/internal/checkin"
	"github.com/nexis-health/nexis-backend/internal/config"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/insights"
	"github.com/nexis-health/nexis-backend/internal/media"
	"github.com/nexis-health/nexis-backend/internal/narrative"
	"github.com/nexis-health/nexis-backend/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "narrative_provider", cfg.Narrative.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Load the inference models and build the analysis engine
	mdl, err := emotion.LoadModels(emotion.ModelPaths{
		ImageModel:  cfg.ModelPath(cfg.Models.ImageModel),
		ImageLabels: cfg.ModelPath(cfg.Models.ImageLabels),
		AudioModel:  cfg.ModelPath(cfg.Models.AudioModel),
		TextModel:   cfg.ModelPath(cfg.Models.TextModel),
		TextLabels:  cfg.ModelPath(cfg.Models.TextLabels),
		TextVocab:   cfg.ModelPath(cfg.Models.TextVocab),
		FusionModel: cfg.ModelPath(cfg.Models.FusionModel),
	})
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	defer mdl.Close()
	slog.Info("inference models loaded", "dir", cfg.Models.Dir)

	extractor := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.TempDir)
	engine := emotion.NewEngine(extractor, mdl.Image, mdl.Audio, mdl.Text, mdl.Fusion)

	// 6. Create narrative provider
	provider, err := narrative.NewProvider(cfg.Narrative)
	if err != nil {
		return fmt.Errorf("create narrative provider: %w", err)
	}
	slog.Info("narrative provider initialized", "provider", provider.Name())

	// 7. Create store and services
	pgStore := store.NewPostgresStore(pool)

	checkinSvc := checkin.NewService(pgStore, redisCache, engine)
	queue := checkin.NewQueue(cfg.Worker, pgStore, checkinSvc.ProcessQueued)
	checkinSvc.AttachQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()
	slog.Info("worker pool started", "workers", cfg.Worker.Count, "queue_size", cfg.Worker.QueueSize)

	alertSvc := alerts.NewService(pgStore)
	checkinSvc.AttachAlertRecorder(alertSvc)
	insightSvc := insights.NewService(pgStore, redisCache, provider)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		SubmitCheckinHandler:  handler.NewSubmitCheckinHandler(checkinSvc, cfg.Media.UploadDir),
		GetCheckinHandler:     handler.NewGetCheckinHandler(checkinSvc),
		ListCheckinsHandler:   handler.NewListCheckinsHandler(checkinSvc),
		AnalyzeCheckinHandler: handler.NewAnalyzeCheckinHandler(checkinSvc),
		ProcessPendingHandler: handler.NewProcessPendingHandler(checkinSvc),

		ListAlertsHandler:   handler.NewListAlertsHandler(alertSvc),
		AckAlertHandler:     handler.NewAckAlertHandler(alertSvc),
		AckAllAlertsHandler: handler.NewAckAllAlertsHandler(alertSvc),

		WeeklyReportHandler: handler.NewWeeklyReportHandler(insightSvc),

		SubmitSurveyHandler: handler.NewSubmitSurveyHandler(pgStore),
		ListSurveysHandler:  handler.NewListSurveysHandler(pgStore),

		DashboardSummaryHandler: handler.NewDashboardSummaryHandler(insightSvc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
