package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier emails the client directly
type SMTPNotifier struct {
	sender mailSender
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(sender mailSender, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{sender: sender, from: from, logger: logger}
}

// DepositReceived sends the deposit confirmation. Clients without an email are skipped.
func (n *SMTPNotifier) DepositReceived(_ context.Context, msg provider.DepositNotification) error {
	if msg.ClientEmail == "" {
		n.logger.Info("Client has no email, deposit notification skipped",
			zap.String("invoice_number", msg.InvoiceNumber))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", m.FormatAddress(msg.ClientEmail, msg.ClientName))
	m.SetHeader("Subject", fmt.Sprintf("Deposit received for invoice %s", msg.InvoiceNumber))
	m.SetBody("text/plain", depositText(msg))

	if err := n.sender.DialAndSend(m); err != nil {
		n.logger.Error("Failed to send deposit email",
			zap.String("invoice_number", msg.InvoiceNumber),
			zap.Error(err))
		return fmt.Errorf("send deposit email: %w", err)
	}

	n.logger.Info("Deposit email sent",
		zap.String("invoice_number", msg.InvoiceNumber))
	return nil
}

func depositText(msg provider.DepositNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", msg.ClientName)
	fmt.Fprintf(&b, "We received your deposit of %s toward a total of %s.\n",
		msg.DepositAmount.StringFixed(deposit.CurrencyPlaces),
		msg.TotalAmount.StringFixed(deposit.CurrencyPlaces))
	fmt.Fprintf(&b, "Invoice %s has been issued for the remaining balance.\n", msg.InvoiceNumber)
	if msg.PaymentLink != "" {
		fmt.Fprintf(&b, "\nPay the remaining balance here:\n%s\n", msg.PaymentLink)
	}
	b.WriteString("\nThank you.\n")
	return b.String()
}
