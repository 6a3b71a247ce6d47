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
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/broker"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/config"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/db"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/db/migrations"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/handlers"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/hub"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/payments"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/repositories"
	api "github.com/Malyadmin/Maly-Platforms-Inc.-sub001/routes"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/storage"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/telemetry"
)

const (
	serviceName     = "maly-rsvp"
	shutdownTimeout = 15 * time.Second
)

// @title Maly RSVP API
// @version 1.0
// @description Event RSVP, application review and payment webhook endpoints.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("log_level", level.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	dbConn, err := db.Connect(cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, dbConn, migrations.FS); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	wsHub := hub.New(logger)
	notifiers := []services.Notifier{wsHub}

	if cfg.RabbitMQURL != "" {
		publisher, err := broker.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		logger.Info("participation change publisher ready", slog.String("exchange", broker.ExchangeName))
	}
	notifier := services.NewMultiNotifier(notifiers...)

	var archiver services.ReceiptArchiver
	if cfg.ArchiveEnabled() {
		store, err := storage.NewCloudflareR2Store(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 store: %w", err)
		}
		archiver = storage.NewReceiptArchive(store, logger)
		logger.Info("payment receipt archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	tx := repositories.NewSQLTransactor(dbConn, logger)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	participationRepo := repositories.NewPostgresParticipationRepository(dbConn)

	applicationService := services.NewApplicationService(tx, eventRepo, userRepo, participationRepo, notifier, logger)
	participationService := services.NewParticipationService(tx, eventRepo, participationRepo, notifier, logger)
	webhookService := services.NewWebhookService(tx, eventRepo, userRepo, participationRepo, archiver, notifier, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.CORSAllowedOrigin, Logger: logger},
		handlers.NewApplicationHandler(applicationService),
		handlers.NewParticipationHandler(participationService),
		handlers.NewWebhookHandler(payments.NewStripeVerifier(cfg.StripeWebhookSecret), webhookService, logger),
		handlers.NewWebSocketHandler(wsHub, applicationService, cfg.CORSAllowedOrigin, logger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}
