package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/messaging"
	"go.uber.org/zap"
)

const (
	defaultChannel         = "billing.notifications"
	messageDepositReceived = "deposit_received"
)

// Message is the payload published for the email worker
type Message struct {
	Type     string                       `json:"type"`
	SentAt   time.Time                    `json:"sentAt"`
	Deposit  provider.DepositNotification `json:"deposit"`
	Template string                       `json:"template"`
}

// RedisNotifier publishes notifications for a separate email worker
type RedisNotifier struct {
	publisher messaging.Publisher
	channel   string
	logger    *zap.Logger
}

func NewRedisNotifier(publisher messaging.Publisher, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisNotifier{publisher: publisher, channel: channel, logger: logger}
}

// DepositReceived publishes to the shared channel and the owner's channel
func (n *RedisNotifier) DepositReceived(ctx context.Context, msg provider.DepositNotification) error {
	payload := Message{
		Type:     messageDepositReceived,
		SentAt:   time.Now().UTC(),
		Deposit:  msg,
		Template: "deposit-received",
	}

	userChannel := fmt.Sprintf("%s:%s", n.channel, msg.UserID)
	if err := n.publisher.Publish(ctx, userChannel, payload); err != nil {
		return fmt.Errorf("publish deposit notification: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.channel, payload); err != nil {
		return fmt.Errorf("publish deposit notification: %w", err)
	}

	n.logger.Debug("Deposit notification published",
		zap.String("channel", n.channel),
		zap.String("invoice_number", msg.InvoiceNumber))
	return nil
}
