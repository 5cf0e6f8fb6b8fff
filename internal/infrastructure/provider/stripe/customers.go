package stripe

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"go.uber.org/zap"
)

// CustomerDirectory looks up Stripe customers
type CustomerDirectory struct {
	customers *customer.Client
	logger    *zap.Logger
}

// NewCustomerDirectory creates a customer directory on top of backend
func NewCustomerDirectory(backend stripeapi.Backend, secretKey string, logger *zap.Logger) *CustomerDirectory {
	return &CustomerDirectory{
		customers: &customer.Client{B: backend, Key: secretKey},
		logger:    logger,
	}
}

// LookupCustomer returns nil, nil for unknown or deleted customers
func (d *CustomerDirectory) LookupCustomer(ctx context.Context, customerID string) (*provider.Customer, error) {
	params := &stripeapi.CustomerParams{}
	params.Context = ctx

	c, err := d.customers.Get(customerID, params)
	if err != nil {
		if isResourceMissing(err) {
			d.logger.Info("Customer not found", zap.String("customer_id", customerID))
			return nil, nil
		}
		return nil, mapStripeError("get customer", err)
	}
	if c.Deleted {
		return nil, nil
	}

	return &provider.Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Metadata: c.Metadata,
	}, nil
}
