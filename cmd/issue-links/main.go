package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/adapter/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/database"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/qrcode"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/storage"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/logger"
	"go.uber.org/zap"
)

// issue-links retries payment link issuance for pending invoices whose
// link could not be created when the deposit was recorded.
func main() {
	limit := flag.Int("limit", 100, "maximum invoices to process in one run")
	flag.Parse()

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

	// Run migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := stripe.NewBackend(cfg.Stripe, &http.Client{Timeout: 30 * time.Second}, zapLogger)
	links := stripe.NewLinkClient(backend, cfg.Stripe.SecretKey, stripe.LinkClientConfig{
		SuccessURL: cfg.Billing.SuccessURL,
		CancelURL:  cfg.Billing.CancelURL,
	}, zapLogger)

	artifacts, err := storage.NewArtifactStore(ctx, cfg.Storage, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}

	issuer := usecase.NewPaymentLinkIssuer(repository.NewStore(db, zapLogger), links,
		qrcode.NewRenderer(cfg.Billing.QRSize), artifacts,
		usecase.LinkIssuerConfig{
			Timeout:     cfg.Billing.LinkTimeout,
			MaxAttempts: cfg.Billing.MaxLinkAttempts,
		}, zapLogger)

	report, err := issuer.RetryPending(ctx, *limit)
	if err != nil {
		zapLogger.Fatal("Failed to retry payment links", zap.Error(err))
	}

	zapLogger.Info("Payment link retry completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("issued", report.Issued),
		zap.Int("failed", report.Failed))
}
