// Package storage keeps rendered invoice artifacts.
package storage

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"go.uber.org/zap"
)

// NewArtifactStore selects the store configured by cfg.Driver
func NewArtifactStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (provider.ArtifactStore, error) {
	switch cfg.Driver {
	case "", config.StorageInline:
		logger.Info("Using inline artifact storage")
		return InlineStore{}, nil
	case config.StorageS3:
		return NewS3Store(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// InlineStore returns artifacts as data URIs so they can live on the invoice row
type InlineStore struct{}

// Put encodes data as a base64 data URI
func (InlineStore) Put(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("artifact is empty")
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
