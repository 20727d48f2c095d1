package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/config"
	dbRedis "github.com/shankh-ai/ragserve/internal/db/redis"
	"github.com/shankh-ai/ragserve/internal/domain"
	"github.com/shankh-ai/ragserve/internal/index"
	"github.com/shankh-ai/ragserve/internal/langdetect"
	logpkg "github.com/shankh-ai/ragserve/internal/logger"
	"github.com/shankh-ai/ragserve/internal/metrics"
	"github.com/shankh-ai/ragserve/internal/repository/embcache"
	chiTransport "github.com/shankh-ai/ragserve/internal/transport/chi"
	openaiTransport "github.com/shankh-ai/ragserve/internal/transport/openai"
	"github.com/shankh-ai/ragserve/internal/transport/yahoo"
	"github.com/shankh-ai/ragserve/internal/usecase/readiness"
	retrievaluc "github.com/shankh-ai/ragserve/internal/usecase/retrieval"
	statusuc "github.com/shankh-ai/ragserve/internal/usecase/status"
	stocksuc "github.com/shankh-ai/ragserve/internal/usecase/stocks"
	transcribeuc "github.com/shankh-ai/ragserve/internal/usecase/transcribe"
	"github.com/shankh-ai/ragserve/internal/version"
)

const serviceName = "ragserve"

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

	logger.Info("Starting ragserve API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_dir", cfg.Index.Dir),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	ctx := context.Background()

	// Build embedder chain — composition root
	var embedder retrievaluc.Embedder
	base := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	embedder = base

	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readyTimeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readyTimeout); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))

		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		embedder = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Speech model slots. Slots are remote endpoints: construction never
	// fails, the readiness probe decides the reported capability.
	var primarySTT, fallbackSTT domain.SpeechModel
	var primaryTranscriber, fallbackTranscriber *openaiTransport.Transcriber
	if cfg.STT.Primary.Configured() {
		primaryTranscriber = openaiTransport.NewPlainTranscriber(openaiTransport.TranscriberConfig{
			APIKey:  cfg.STT.Primary.APIKey,
			BaseURL: cfg.STT.Primary.BaseURL,
			Model:   cfg.STT.Primary.Model,
			Name:    "primary",
		})
		primarySTT = primaryTranscriber
	}
	if cfg.STT.Fallback.Configured() {
		fallbackTranscriber = openaiTransport.NewVerboseTranscriber(openaiTransport.TranscriberConfig{
			APIKey:  cfg.STT.Fallback.APIKey,
			BaseURL: cfg.STT.Fallback.BaseURL,
			Model:   cfg.STT.Fallback.Model,
			Name:    "fallback",
		})
		fallbackSTT = fallbackTranscriber
	}

	detector := langdetect.New()
	idx := &indexHolder{}
	gate := readiness.New(logger)

	// Use case services
	retrievalSvc := retrievaluc.New(gate, embedder, idx, detector)
	transcribeSvc := transcribeuc.New(primarySTT, fallbackSTT, detector, cfg.STT.TempDir)
	statusSvc := statusuc.New(gate, idx.forStatus, serviceName, version.Version, cfg.Embedding.Model, true)

	var stockSvc *stocksuc.Service
	if cfg.Stocks.Enabled {
		quoteClient := yahoo.NewClient(cfg.Stocks.BaseURL, time.Duration(cfg.Stocks.TimeoutSec)*time.Second)
		stockSvc = stocksuc.New(quoteClient, logger)
		logger.Info("Stock quote endpoints enabled", zap.String("base_url", cfg.Stocks.BaseURL))
	}

	// Create chi server
	server := chiTransport.NewServer(retrievalSvc, transcribeSvc, statusSvc, stockSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

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

	// Initialization runs behind the listener so /health answers from the
	// first moment of the process lifetime.
	go func() {
		steps := buildStartupSteps(cfg, embedder, idx, primaryTranscriber, fallbackTranscriber, logger)
		if err := gate.Initialize(ctx, steps...); err != nil {
			logger.Fatal("Startup failed", zap.Error(err))
		}
		logger.Info("Service ready",
			zap.Int("num_chunks", idx.get().Len()),
			zap.Bool("primary_stt", gate.Loaded("stt_primary")),
			zap.Bool("fallback_stt", gate.Loaded(statusuc.StepSTTFallback)),
		)
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

// buildStartupSteps assembles the readiness gate steps: provider and
// index are fatal, speech slots only degrade the capability.
func buildStartupSteps(
	cfg config.Config,
	embedder retrievaluc.Embedder,
	idx *indexHolder,
	primary, fallback *openaiTransport.Transcriber,
	logger *zap.Logger,
) []readiness.Step {
	steps := []readiness.Step{
		{
			Name:  "embedding_model",
			Fatal: true,
			Run: func(ctx context.Context) error {
				hc, ok := embedder.(domain.HealthChecker)
				if !ok {
					return nil
				}
				return hc.HealthCheck(ctx)
			},
		},
		{
			Name:  statusuc.StepIndex,
			Fatal: true,
			Run: func(_ context.Context) error {
				store, err := index.Open(cfg.Index.Dir, cfg.Embedding.Model, cfg.Embedding.Dimensions, logger)
				if err != nil {
					return err
				}
				idx.set(store)
				return nil
			},
		},
	}

	if primary != nil {
		steps = append(steps, readiness.Step{
			Name: "stt_primary",
			Run:  primary.HealthCheck,
		})
	}
	if fallback != nil {
		steps = append(steps, readiness.Step{
			Name: statusuc.StepSTTFallback,
			Run:  fallback.HealthCheck,
		})
	}
	return steps
}

// indexHolder defers the index store behind the readiness gate. The gate
// guarantees no search reaches an unset holder; the nil-guards exist for
// the introspection endpoints that serve during startup.
type indexHolder struct {
	store atomic.Pointer[index.Store]
}

func (h *indexHolder) set(s *index.Store) { h.store.Store(s) }

func (h *indexHolder) get() *index.Store { return h.store.Load() }

func (h *indexHolder) Search(vector []float32, k int) ([]float32, []int) {
	return h.get().Search(vector, k)
}

func (h *indexHolder) Chunk(i int) (domain.Chunk, bool) {
	return h.get().Chunk(i)
}

// forStatus adapts the holder for the status report, which must tolerate
// a not-yet-loaded index.
func (h *indexHolder) forStatus() statusuc.Index {
	if s := h.get(); s != nil {
		return s
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
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
