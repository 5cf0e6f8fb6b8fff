package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/wekeepgrowing/paper-n-print-billing/internal/adapter/handler/http"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/adapter/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/http"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/notification"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/qrcode"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/storage"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store := repository.NewStore(db, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Provider adapters
	backend := stripe.NewBackend(cfg.Stripe, &http.Client{Timeout: 30 * time.Second}, zapLogger)
	verifier := stripe.NewVerifier(cfg.Stripe, zapLogger)
	links := stripe.NewLinkClient(backend, cfg.Stripe.SecretKey, stripe.LinkClientConfig{
		SuccessURL: cfg.Billing.SuccessURL,
		CancelURL:  cfg.Billing.CancelURL,
	}, zapLogger)
	customers := stripe.NewCustomerDirectory(backend, cfg.Stripe.SecretKey, zapLogger)

	artifacts, err := storage.NewArtifactStore(ctx, cfg.Storage, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}
	notifier, closeNotifier, err := notification.NewNotifier(ctx, cfg.Notification, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize notifier", zap.Error(err))
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			zapLogger.Error("Failed to close notifier", zap.Error(err))
		}
	}()

	// Use cases
	ledger := usecase.NewCreditLedger(store, cfg.Tiers, zapLogger)
	issuer := usecase.NewPaymentLinkIssuer(store, links, qrcode.NewRenderer(cfg.Billing.QRSize), artifacts,
		usecase.LinkIssuerConfig{
			Timeout:     cfg.Billing.LinkTimeout,
			MaxAttempts: cfg.Billing.MaxLinkAttempts,
		}, zapLogger)
	router := usecase.NewWebhookRouter(usecase.RouterDeps{
		Store:        store,
		Guard:        usecase.NewIdempotencyGuard(store, zapLogger),
		Ledger:       ledger,
		Materializer: usecase.NewInvoiceMaterializer(cfg.Billing.InvoiceDueDays, zapLogger),
		LinkIssuer:   issuer,
		Notifier:     notifier,
		Customers:    customers,
		Tiers:        cfg.Tiers,
		Logger:       zapLogger,
	})

	routes := handlers.Handlers{
		Webhook:      handlers.NewWebhookHandler(zapLogger, verifier, router),
		Credits:      handlers.NewCreditHandler(zapLogger, ledger),
		Subscription: handlers.NewSubscriptionHandler(zapLogger, usecase.NewSubscriptionService(store, cfg.Tiers, zapLogger)),
		Documents:    handlers.NewDocumentHandler(zapLogger, usecase.NewEstimateService(store, zapLogger), issuer),
	}

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, routes)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer shutdownCancel()

	// Shutdown servers
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
