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

	"github.com/go-chi/chi/v5"
	"github.com/kelseyhightower/envconfig"

	"paywallet/internal/common/api"
	"paywallet/internal/common/database"
	"paywallet/internal/common/middleware"
	natsclient "paywallet/internal/common/nats"
	redisclient "paywallet/internal/common/redis"
	"paywallet/internal/offers"
	"paywallet/internal/outbox"
	"paywallet/internal/payment"
	"paywallet/internal/providers/analyticssvc"
	"paywallet/internal/providers/cardsvc"
	"paywallet/internal/providers/otpsvc"
	"paywallet/internal/reaper"
	"paywallet/internal/scheduler"
	"paywallet/internal/transactions"
	txnapi "paywallet/internal/transactions/api"
	txnstore "paywallet/internal/transactions/store"
	"paywallet/migrations"
)

// Config is the top-level service configuration, populated from the
// environment.
type Config struct {
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"paywallet-transactions"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	Database  database.Config
	Redis     redisclient.Config
	NATS      natsclient.Config
	Offers    offers.Config
	Fees      payment.FeeConfig
	Outbox    outbox.Config
	Reaper    reaper.Config
	Cards     cardsvc.Config
	Otp       otpsvc.Config
	Analytics analyticssvc.Config
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting service",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"addr", cfg.HTTPAddr,
	)

	if err := database.Migrate(cfg.Database.URL, migrations.FS, migrations.Dir, logger); err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redisclient.New(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	nc, err := natsclient.New(ctx, cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	if _, err := nc.EnsureStream(ctx, natsclient.DefaultStreamConfig(
		"TRANSACTIONS",
		[]string{cfg.Outbox.SubjectPrefix + ".>"},
	)); err != nil {
		return err
	}

	offerStore := offers.NewStore(redisClient, cfg.Offers, logger)
	store := txnstore.New(db, logger)

	cards := cardsvc.New(cfg.Cards, logger)
	otp := otpsvc.New(cfg.Otp, logger)
	analytics := analyticssvc.New(cfg.Analytics, logger)

	ledger := transactions.NewService(store, offerStore, cards, logger)
	orchestrator := payment.NewOrchestrator(
		offerStore,
		cards,
		otp,
		ledger,
		payment.NewFeeCalculator(cfg.Fees),
		payment.NewValidator(),
		logger,
	)

	publisher := natsclient.NewPublisher(nc, logger)
	relay := outbox.NewRelay(store, publisher, cfg.Outbox, logger)
	txnReaper := reaper.New(ledger, cfg.Reaper, logger)

	jobs := scheduler.New(logger)
	jobs.Register(relay, relay.Interval())
	jobs.Register(txnReaper, txnReaper.Interval())
	jobs.Start(ctx)
	defer jobs.Stop()

	handlers := txnapi.NewHandlers(orchestrator, ledger, cards, analytics, logger)
	router := buildRouter(cfg, handlers, db, nc, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

func buildRouter(cfg Config, handlers *txnapi.Handlers, db *database.DB, nc *natsclient.Client, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.UserExtractor)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.HealthCheck(req.Context()); err != nil {
			api.ServiceUnavailable(w, "database not ready")
			return
		}
		if err := nc.HealthCheck(); err != nil {
			api.ServiceUnavailable(w, "message broker not ready")
			return
		}
		api.WriteData(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/transactions", handlers.Routes())
	})

	return r
}

func setupLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
}
