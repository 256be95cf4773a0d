// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/brightcart/support-assistant/internal/cache"
	"github.com/brightcart/support-assistant/internal/config"
	"github.com/brightcart/support-assistant/internal/events"
	"github.com/brightcart/support-assistant/internal/handler"
	"github.com/brightcart/support-assistant/internal/kv"
	"github.com/brightcart/support-assistant/internal/llm"
	"github.com/brightcart/support-assistant/internal/middleware"
	"github.com/brightcart/support-assistant/internal/ratelimit"
	"github.com/brightcart/support-assistant/internal/repository"
	"github.com/brightcart/support-assistant/internal/service"
	"github.com/brightcart/support-assistant/internal/tokens"
	"github.com/brightcart/support-assistant/pkg/logger"
	"github.com/brightcart/support-assistant/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Postgres is authoritative; failure to reach it is fatal.
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Error("failed to run migrations", zap.Error(err))
		os.Exit(1)
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis backs the rate limiter and the history cache. Both fail open,
	// so an unreachable Redis only degrades the service.
	store := kv.Open(kv.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup, continuing degraded", zap.Error(err))
	}

	historyCache := cache.New(store, cfg.CacheTTL, cfg.MaxHistoryTurns, log)
	limiter := ratelimit.New(store, cfg.SessionRateLimit, cfg.GlobalRateLimit, cfg.RateLimitWindow, log)

	repo := repository.New(repository.PoolDB{Pool: pool}, historyCache, tokens.NewCounter(), log)

	provider := llm.Provider(cfg.LLMProvider)
	apiKey := cfg.OpenAIAPIKey
	if provider == llm.ProviderAnthropic {
		apiKey = cfg.AnthropicAPIKey
	}
	backend, err := llm.NewClient(provider, apiKey)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	log.Info("LLM client ready", zap.String("provider", backend.Name()))

	publisher, err := events.Connect(ctx, cfg.NATSURL, log)
	if err != nil {
		log.Warn("failed to connect to NATS, events disabled", zap.Error(err))
		publisher = nil
	}
	defer publisher.Close()

	chatSvc := service.NewChatService(repo, historyCache, backend, publisher, service.Options{
		Model:            cfg.Model,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		MaxMessageLength: cfg.MaxMessageLength,
		MaxHistoryTurns:  cfg.MaxHistoryTurns,
		GenerateTimeout:  cfg.GenerateTimeout,
	}, log)

	healthHandler := handler.NewHealthHandler(repo, historyCache)
	chatHandler := handler.NewChatHandler(chatSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{
			"X-Correlation-ID",
			"X-RateLimit-Session-Remaining", "X-RateLimit-Session-Reset",
			"X-RateLimit-Global-Remaining", "X-RateLimit-Global-Reset",
			"Retry-After",
		},
		MaxAge: 300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.IPRateLimit(cfg.IPRateLimit, cfg.RateLimitWindow))
		r.With(middleware.Admission(limiter, log)).Post("/chat", chatHandler.Chat)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
