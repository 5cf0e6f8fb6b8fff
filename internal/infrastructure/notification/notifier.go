// Package notification delivers deposit confirmations to clients.
package notification

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/messaging"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// NewNotifier builds the notifier selected by cfg.Driver. The returned close
// function releases any connection the notifier holds.
func NewNotifier(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (provider.Notifier, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Driver {
	case "", config.NotifierNoop:
		return NewNoopNotifier(logger), noClose, nil

	case config.NotifierRedis:
		publisher, err := messaging.NewRedisPublisher(ctx, messaging.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewRedisNotifier(publisher, cfg.Redis.Channel, logger), publisher.Close, nil

	case config.NotifierSMTP:
		dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		return NewSMTPNotifier(dialer, cfg.SMTP.From, logger), noClose, nil

	default:
		return nil, nil, fmt.Errorf("unsupported notification driver: %s", cfg.Driver)
	}
}

// NoopNotifier only logs
type NoopNotifier struct {
	logger *zap.Logger
}

func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) DepositReceived(_ context.Context, msg provider.DepositNotification) error {
	n.logger.Info("Deposit notification skipped",
		zap.String("user_id", msg.UserID.String()),
		zap.String("invoice_number", msg.InvoiceNumber))
	return nil
}
