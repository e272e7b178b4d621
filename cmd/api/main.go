package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"

	"github.com/payflow/checkout/internal/catalog"
	catalogpostgres "github.com/payflow/checkout/internal/catalog/postgres"
	"github.com/payflow/checkout/internal/config"
	"github.com/payflow/checkout/internal/database"
	journalpostgres "github.com/payflow/checkout/internal/journal/postgres"
	"github.com/payflow/checkout/internal/notifications"
	"github.com/payflow/checkout/internal/orders/adapters"
	httpadapter "github.com/payflow/checkout/internal/orders/adapters/http"
	orderspostgres "github.com/payflow/checkout/internal/orders/adapters/postgres"
	ordersapp "github.com/payflow/checkout/internal/orders/app"
	ordersmetrics "github.com/payflow/checkout/internal/orders/metrics"
	"github.com/payflow/checkout/internal/orders/ports"
	"github.com/payflow/checkout/internal/payu"
	"github.com/payflow/checkout/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully")
	}

	meter := otel.Meter(cfg.Service.Name)

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}
	publishMetrics, err := notifications.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create publisher metrics", "error", err)
		os.Exit(1)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	repo := adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics)
	products := catalogpostgres.NewStore(pool)
	reservations := catalog.NewReservationManager(products, logger)
	eventJournal := journalpostgres.NewStore(pool)
	users := orderspostgres.NewUserDirectory(pool)

	var basePublisher ports.NotificationPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := notifications.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", "error", err)
			}
		}()
		basePublisher = kafkaPublisher
		logger.Info("kafka notifications enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		basePublisher = notifications.NewNoopPublisher()
		logger.Info("kafka brokers not configured, notifications disabled")
	}
	publisher := adapters.NewObservablePublisher(basePublisher, publishMetrics)

	signer := payu.NewSigner(cfg.Gateway.MerchantKey, cfg.Gateway.MerchantSalt)
	if !signer.Configured() {
		logger.Warn("gateway merchant credentials not configured, payment endpoints will reject requests")
	}
	builder := payu.NewInitiationBuilder(payu.Config{
		MerchantKey:  cfg.Gateway.MerchantKey,
		MerchantSalt: cfg.Gateway.MerchantSalt,
		Mode:         cfg.Gateway.Mode,
		SuccessURL:   returnURL(cfg.Gateway.BaseURL, cfg.Gateway.SuccessPath),
		FailureURL:   returnURL(cfg.Gateway.BaseURL, cfg.Gateway.FailurePath),
	})

	service := ordersapp.NewService(ordersapp.Config{
		Repo:                repo,
		Products:            products,
		Reservations:        reservations,
		Journal:             eventJournal,
		Publisher:           publisher,
		Users:               users,
		Signer:              signer,
		InitiationBuilder:   builder,
		CreateUnknownOrders: cfg.Gateway.CreateUnknownOrders,
		Logger:              logger,
		Metrics:             orderMetrics,
	})

	handler := httpadapter.NewHandler(service, cfg.Gateway.AllowedIPs, logger)

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler {
		return httpadapter.WithMetrics(next, httpMetrics)
	})

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	handler.Routes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func returnURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + path
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
