package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/config"
	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/crawler/ted"
	"github.com/procurelab/tendermatch/internal/db"
	dbMemory "github.com/procurelab/tendermatch/internal/db/memory"
	dbRedis "github.com/procurelab/tendermatch/internal/db/redis"
	"github.com/procurelab/tendermatch/internal/domain"
	logpkg "github.com/procurelab/tendermatch/internal/logger"
	"github.com/procurelab/tendermatch/internal/metrics"
	companyrepo "github.com/procurelab/tendermatch/internal/repository/company"
	"github.com/procurelab/tendermatch/internal/repository/embcache"
	tenderrepo "github.com/procurelab/tendermatch/internal/repository/tender"
	chiTransport "github.com/procurelab/tendermatch/internal/transport/chi"
	"github.com/procurelab/tendermatch/internal/transport/gemini"
	openaiEmb "github.com/procurelab/tendermatch/internal/transport/openai"
	embeddinguc "github.com/procurelab/tendermatch/internal/usecase/embedding"
	healthuc "github.com/procurelab/tendermatch/internal/usecase/health"
	ingestuc "github.com/procurelab/tendermatch/internal/usecase/ingest"
	matchuc "github.com/procurelab/tendermatch/internal/usecase/match"
	"github.com/procurelab/tendermatch/internal/version"
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

	logger.Info("Starting tendermatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create the vector store based on driver
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
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterMatchMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories over hash records with a vector index on tenders
	dim := cfg.Embedding.Dimensions
	tenders := tenderrepo.New(store, cfg.Database.KeyPrefix, dim).WithHNSW(tenderrepo.HNSWConfig{
		M:           cfg.Database.HNSWM,
		EFConstruct: cfg.Database.HNSWEFConstruct,
	})
	companies := companyrepo.New(store, cfg.Database.KeyPrefix, dim)

	if err := tenders.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure tender index", zap.Error(err))
	}

	registry := buildSources(cfg, logger)
	logger.Info("Tender sources registered", zap.Strings("sources", registry.Names()))

	ingestSvc := ingestuc.New(tenders, companies, embedder, registry, logger)
	matchSvc := matchuc.New(companies, tenders, embedder, buildExplainer(ctx, cfg, logger), matchuc.Weights{
		Alpha:    cfg.Matching.Alpha,
		Sector:   cfg.Matching.SectorWeight,
		Cert:     cfg.Matching.CertWeight,
		Location: cfg.Matching.LocationWeight,
		Size:     cfg.Matching.SizeWeight,
	}, logger).
		WithLimits(cfg.Matching.DefaultPoolSize, cfg.Matching.DefaultTopN).
		WithDeadline(time.Duration(cfg.Matching.RecommendDeadline) * time.Second)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder))

	server := chiTransport.NewServer(ingestSvc, matchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(
			base, store, cfg.Database.KeyPrefix,
			time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model,
		embeddinguc.Options{
			MaxAttempts:   cfg.Embedding.MaxAttempts,
			Backoff:       time.Duration(cfg.Embedding.BackoffMs) * time.Millisecond,
			MaxConcurrent: cfg.Embedding.MaxConcurrent,
		}, logger,
	)
}

// buildSources registers the configured upstream adapters plus the synthetic
// generator. Real sources degrade to a same-named generator when unreachable.
func buildSources(cfg config.Config, logger *zap.Logger) *crawler.Registry {
	registry := crawler.NewRegistry()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	batchSize := cfg.Crawler.FallbackBatchSize

	for name, src := range cfg.Crawler.Sources {
		switch name {
		case ted.SourceName:
			adapter := ted.New(&ted.Config{
				BaseURL:  src.BaseURL,
				APIKey:   src.APIKey,
				PageSize: cfg.Crawler.PageSize,
				Timeout:  time.Duration(cfg.Crawler.RequestTimeoutSec) * time.Second,
				Logger:   logger,
			})
			backup := crawler.NewGenerator(ted.SourceName, batchSize, rng)
			registry.Register(crawler.WithFallback(adapter, backup, logger))
		default:
			logger.Warn("Skipping unknown source in config", zap.String("source", name))
		}
	}

	registry.Register(crawler.NewGenerator("synthetic", batchSize, rng))
	return registry
}

// buildExplainer returns nil unless narrative generation is enabled.
func buildExplainer(ctx context.Context, cfg config.Config, logger *zap.Logger) matchuc.Explainer {
	if !cfg.Reasoning.Enabled {
		return nil
	}
	explainer, err := gemini.NewExplainer(
		ctx, cfg.Reasoning.APIKey, cfg.Reasoning.Model,
		time.Duration(cfg.Reasoning.TimeoutSec)*time.Second, logger,
	)
	if err != nil {
		logger.Warn("Narrative generation disabled", zap.Error(err))
		return nil
	}
	return explainer
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
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
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
