package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"notes-pipeline/internal/config"
	"notes-pipeline/internal/handler"
	"notes-pipeline/internal/logging"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/service"
	"notes-pipeline/internal/stages/extract"
	"notes-pipeline/internal/stages/render"
	"notes-pipeline/internal/stages/summarize"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $NOTES_CONFIG)")
	port := flag.String("port", "", "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "path to SQLite artifact database (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("error").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	jobs := repository.NewMemoryRepository()
	payloads := repository.NewMemoryPayloadRepository()
	artifacts, err := repository.NewSQLiteArtifactRepository(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize artifact repository", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer artifacts.Close()

	metricsInstance := metrics.NewMetrics()
	rateLimiter := service.NewRateLimiter(cfg.Limits.SubmissionsPerMinute, cfg.Limits.Burst)

	// Pipeline stages
	extractor := extract.NewRouter(logger)

	summarizer, closeSummarizer, err := summarize.New(ctx, cfg.Summarizer, logger)
	if err != nil {
		logger.Error("failed to initialize summarizer", "provider", cfg.Summarizer.Provider, "error", err)
		os.Exit(1)
	}
	defer closeSummarizer()

	var strategies []render.Strategy
	if cfg.Renderer.HandwritingURL != "" {
		strategies = append(strategies, render.Strategy{
			Name:     "handwriting",
			Renderer: render.NewHandwritingClient(cfg.Renderer.HandwritingURL, cfg.Renderer.Timeout, artifacts),
		})
	}
	strategies = append(strategies,
		render.Strategy{Name: "local", Renderer: render.NewLocalRenderer(artifacts)},
		render.Strategy{Name: "raw", Renderer: render.NewRawTextRenderer(artifacts)},
	)
	renderer := render.NewChain(strategies,
		render.WithLogger(logger),
		render.WithFallbackHook(func(string, error) { metricsInstance.IncrementRenderFallbacks() }),
	)

	// Initialize services
	pipeline := service.NewPipeline(jobs, payloads, extractor, summarizer, renderer, metricsInstance,
		service.WithStageTimeout(cfg.Pipeline.StageTimeout),
		service.WithPipelineLogger(logger),
	)
	scheduler := service.NewScheduler(jobs, pipeline, metricsInstance,
		service.WithInterval(cfg.Scheduler.PollInterval),
		service.WithConcurrency(cfg.Scheduler.Concurrency),
		service.WithSchedulerLogger(logger),
	)
	sweeper := service.NewSweeper(jobs, payloads, artifacts, rateLimiter, metricsInstance, cfg.Sweeper.MaxAge, logger)

	defaults := models.Options{
		Length: models.Length(cfg.Pipeline.DefaultLength),
		Style:  models.Style(cfg.Pipeline.DefaultStyle),
	}
	jobService := service.NewJobService(jobs, payloads, rateLimiter, metricsInstance, defaults, logger)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, artifacts, metricsInstance, cfg.Limits.MaxUploadBytes, logger)

	// CORS middleware - sets headers for all responses
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}

	// Setup routes with CORS
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			jobHandler.CreateJob(w, r)
		} else if r.Method == http.MethodGet {
			jobHandler.ListJobs(w, r)
		} else {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.HandleFunc("/jobs/", corsMiddleware(jobHandler.GetJob))
	mux.HandleFunc("/artifacts/", corsMiddleware(jobHandler.GetArtifact))
	mux.HandleFunc("/metrics", corsMiddleware(jobHandler.GetMetrics))

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	// Start background work
	scheduler.Start(ctx)
	if err := sweeper.Start(cfg.Sweeper.Schedule); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port, "summarizer", cfg.Summarizer.Provider, "renderers", renderer.Names())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error closing server", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop in time", "error", err)
	}
	sweeper.Stop(shutdownCtx)

	logger.Info("server stopped")
}
