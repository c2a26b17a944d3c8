package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/config"
	"github.com/kailas-cloud/biorag/internal/db"
	dbMemory "github.com/kailas-cloud/biorag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/biorag/internal/db/redis"
	"github.com/kailas-cloud/biorag/internal/domain"
	logpkg "github.com/kailas-cloud/biorag/internal/logger"
	"github.com/kailas-cloud/biorag/internal/metrics"
	"github.com/kailas-cloud/biorag/internal/repository/embcache"
	recordrepo "github.com/kailas-cloud/biorag/internal/repository/record"
	searchrepo "github.com/kailas-cloud/biorag/internal/repository/search"
	chiTransport "github.com/kailas-cloud/biorag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/biorag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/biorag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/biorag/internal/usecase/health"
	queryuc "github.com/kailas-cloud/biorag/internal/usecase/query"
	"github.com/kailas-cloud/biorag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting biorag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "memory":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready. The context is cancelled at
	// shutdown so background work (the init retry loop) stops with
	// the server.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Embedder chain: OpenAI -> cached -> retrying
	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})

	// Repositories
	recordRepo := recordrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(recordrepo.HNSWConfig{
		M:           cfg.Storage.HNSWM,
		EFConstruct: cfg.Storage.HNSWEFConstruct,
	})
	searchRepo := searchrepo.New(store)

	if err := recordRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure record index", zap.Error(err))
	}

	// Health service owns the startup readiness gate
	healthSvc := healthuc.New(store, embeddingHealthChecker{embedder}, recordRepo, logger)

	// Query orchestrator
	cache := queryuc.NewResponseCache(metrics.QueryCacheTotal)
	querySvc := queryuc.New(embedder, searchRepo, generator, cache, queryuc.Config{
		DefaultTopResults: cfg.Pipeline.DefaultTopResults,
		MaxTopResults:     cfg.Pipeline.MaxTopResults,
		DegradeOnFailure:  cfg.Generation.DegradeOnFailureEnabled(),
		Timeouts: queryuc.StageTimeouts{
			Embed:    time.Duration(cfg.Pipeline.EmbedTimeoutSec) * time.Second,
			Search:   time.Duration(cfg.Pipeline.SearchTimeoutSec) * time.Second,
			Generate: time.Duration(cfg.Pipeline.GenerateTimeoutSec) * time.Second,
		},
	}).WithReadiness(healthSvc)

	// Startup smoke test. Failure keeps the server up but not ready:
	// /api/query answers 503 until records arrive and Initialize is
	// retried in the background.
	if err := healthSvc.Initialize(ctx); err != nil {
		logger.Warn("System not ready yet", zap.Error(err))
		go retryInitialize(ctx, healthSvc, initRetryInterval, logger)
	}

	server := chiTransport.NewServer(querySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(chiTransport.RateLimitMiddleware(store, cfg.RateLimit.RequestsPerMinute, time.Minute, logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Retrying
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	cached := embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)

	return embeddinguc.NewRetryingEmbedder(cached, embeddinguc.RetryConfig{
		MaxAttempts: cfg.Embedding.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Embedding.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Embedding.Retry.MaxDelayMs) * time.Millisecond,
		IsRetryable: openaiTransport.IsTransient,
	}, cfg.Embedding.Model, logger)
}

const initRetryInterval = 15 * time.Second

// retryInitialize re-runs the startup smoke test until it passes or the
// context is cancelled. Covers the empty-corpus case: the service comes
// up before the first ingestion run and flips to ready once records
// appear.
func retryInitialize(ctx context.Context, healthSvc *healthuc.Service, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := healthSvc.Initialize(ctx); err != nil {
				logger.Debug("Initialization retry failed", zap.Error(err))
				continue
			}
			return
		}
	}
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
