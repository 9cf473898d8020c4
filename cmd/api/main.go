package main

import (
	"context"
	"crypto/tls"
	_ "embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/njwalker/meetingbot/internal/api/router"
	"github.com/njwalker/meetingbot/internal/calendar"
	appconfig "github.com/njwalker/meetingbot/internal/config"
	"github.com/njwalker/meetingbot/internal/conversation"
	"github.com/njwalker/meetingbot/internal/observability/metrics"
	"github.com/njwalker/meetingbot/internal/schedule"
	"github.com/njwalker/meetingbot/internal/webchat"
	"github.com/njwalker/meetingbot/pkg/logging"
)

//go:embed widget.js
var widgetJS []byte

func main() {
	// Load .env in development; ignore if absent.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting meetingbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Conversation state store
	var store conversation.StateStore
	if cfg.UseMemoryStore || cfg.RedisAddr == "" {
		logger.Info("using in-memory state store")
		store = conversation.NewMemoryStore()
	} else {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = conversation.NewRedisStore(client, cfg.StateTTL)
		logger.Info("using redis state store", "addr", cfg.RedisAddr, "ttl", cfg.StateTTL)
	}

	// Language model extractor
	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	extractor, err := conversation.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, logger)
	if err != nil {
		logger.Error("failed to create gemini extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Google Calendar client
	cal, err := calendar.NewClient(ctx, cfg.CalendarID, logger,
		option.WithCredentialsFile(cfg.GoogleCredentials))
	if err != nil {
		logger.Error("failed to create calendar client", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	conversationMetrics := metrics.NewConversationMetrics(registry)

	// Conversation engine
	searcher := schedule.NewSearcher(cal, logger).
		WithLimits(cfg.MaxSuggestions, cfg.SearchHorizonDays)
	engine := conversation.NewEngine(store, extractor, cal, searcher, logger, conversationMetrics)

	conversationHandler := conversation.NewHandler(engine, logger)
	webchatHandler := webchat.NewHandler(engine, widgetJS, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		WebChatHandler:      webchatHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminJWTSecret:      cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		TurnRateLimit:       2,
		TurnRateBurst:       5,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
