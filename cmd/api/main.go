// Package main is the entry point for the webhook ingestion server.
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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/config"
	"github.com/wavedesk/messaging-platform/internal/handler"
	"github.com/wavedesk/messaging-platform/internal/middleware"
	natsclient "github.com/wavedesk/messaging-platform/internal/nats"
	"github.com/wavedesk/messaging-platform/internal/service"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/tracing"
)

func main() {
	// Load .env in development; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting webhook ingestion server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "messaging-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Durable store: Postgres when configured, in-memory otherwise.
	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn)
		if err != nil {
			log.Error("failed to connect to Postgres", zap.Error(err))
			os.Exit(1)
		}
		defer pg.Close()

		if cfg.MigrateOnBoot {
			if err := pg.Migrate(ctx); err != nil {
				log.Error("failed to apply schema", zap.Error(err))
				os.Exit(1)
			}
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store; state is lost on restart")
		st = store.NewMemory()
	}

	// Fan-out is best-effort: a missing broker degrades to no
	// notifications, never to a dead webhook.
	var (
		nc        *natsclient.Client
		publisher service.Publisher
	)
	if cfg.FanoutEnable {
		nc, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, fan-out disabled", zap.Error(err))
		} else {
			defer nc.Close()

			inbox := natsclient.NewInboxPublisher(nc)
			if err := inbox.EnsureStream(ctx); err != nil {
				log.Warn("failed to ensure inbox stream, fan-out disabled", zap.Error(err))
			} else {
				publisher = inbox
			}
		}
	}

	pipeline := service.NewPipeline(st, publisher, log)

	healthHandler := handler.NewHealthHandler(st, nc)
	webhookHandler := handler.NewWebhookHandler(pipeline, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhook/whatsapp", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(chimiddleware.Timeout(cfg.WebhookTimeout))

		r.Get("/", webhookHandler.Verify)
		r.Post("/", webhookHandler.Receive)
		r.Options("/", webhookHandler.Preflight)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
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
