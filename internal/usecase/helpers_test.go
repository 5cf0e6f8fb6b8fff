package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/adapter/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/database/dbtest"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"go.uber.org/zap"
)

// MockLinkProvider is a mock implementation of provider.PaymentLinkProvider
type MockLinkProvider struct {
	mock.Mock
}

func (m *MockLinkProvider) CreateLink(ctx context.Context, req provider.LinkRequest) (*provider.PaymentLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PaymentLink), args.Error(1)
}

// MockCustomerDirectory is a mock implementation of provider.CustomerDirectory
type MockCustomerDirectory struct {
	mock.Mock
}

func (m *MockCustomerDirectory) LookupCustomer(ctx context.Context, customerID string) (*provider.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Customer), args.Error(1)
}

type stubRenderer struct{}

func (stubRenderer) Render(content string) ([]byte, error) { return []byte("png:" + content), nil }
func (stubRenderer) ContentType() string                   { return "image/png" }

type memoryArtifacts struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (s *memoryArtifacts) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[string][]byte{}
	}
	s.items[key] = data
	return "https://cdn.example.com/" + key, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []provider.DepositNotification
}

func (n *recordingNotifier) DepositReceived(_ context.Context, msg provider.DepositNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	store     domainRepo.Store
	router    *usecase.WebhookRouter
	ledger    *usecase.CreditLedger
	issuer    *usecase.PaymentLinkIssuer
	links     *MockLinkProvider
	customers *MockCustomerDirectory
	artifacts *memoryArtifacts
	notifier  *recordingNotifier
	tiers     *config.TierCatalog
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testTiers() *config.TierCatalog {
	tiers := config.DefaultTierCatalog()
	tiers.Prices = map[string]config.PriceBinding{
		"price_pro_monthly":  {Tier: "pro", Interval: config.IntervalMonth},
		"price_pro_annual":   {Tier: "pro", Interval: config.IntervalYear},
		"price_lite_monthly": {Tier: "lite", Interval: config.IntervalMonth},
	}
	return tiers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewStore(dbtest.New(t), logger)

	f := &fixture{
		store:     store,
		links:     new(MockLinkProvider),
		customers: new(MockCustomerDirectory),
		artifacts: &memoryArtifacts{},
		notifier:  &recordingNotifier{},
		tiers:     testTiers(),
	}
	f.ledger = usecase.NewCreditLedger(store, f.tiers, logger)
	f.issuer = usecase.NewPaymentLinkIssuer(store, f.links, stubRenderer{}, f.artifacts,
		usecase.LinkIssuerConfig{Timeout: 200 * time.Millisecond, MaxAttempts: 3}, logger)
	f.router = usecase.NewWebhookRouter(usecase.RouterDeps{
		Store:        store,
		Guard:        usecase.NewIdempotencyGuard(store, logger),
		Ledger:       f.ledger,
		Materializer: usecase.NewInvoiceMaterializer(30, logger),
		LinkIssuer:   f.issuer,
		Notifier:     f.notifier,
		Customers:    f.customers,
		Tiers:        f.tiers,
		Logger:       logger,
		Now:          func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) seedEstimate(t *testing.T, total decimal.Decimal, kind deposit.Kind, value decimal.Decimal) *model.Estimate {
	t.Helper()
	half := total.Div(decimal.NewFromInt(2)).Round(2)
	estimate := &model.Estimate{
		UserID:       uuid.New(),
		ClientName:   "Dana Client",
		ClientEmail:  "dana@example.com",
		Number:       "EST-" + uuid.NewString()[:8],
		Currency:     "usd",
		Subtotal:     total,
		Total:        total,
		DepositKind:  kind,
		DepositValue: value,
		Status:       model.EstimateStatusSent,
		Items: []model.EstimateItem{
			{Position: 0, Description: "Demolition", Quantity: decimal.NewFromInt(1), Rate: half, Amount: half},
			{Position: 1, Description: "Tile install", Quantity: decimal.NewFromInt(1), Rate: total.Sub(half), Amount: total.Sub(half)},
		},
	}
	require.NoError(t, f.store.Estimates().Create(context.Background(), estimate))
	return estimate
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func depositEnvelope(t *testing.T, eventID string, estimate *model.Estimate, cents int64) event.Envelope {
	return event.Envelope{
		ID:      eventID,
		Type:    event.TypeCheckoutSessionCompleted,
		Created: testNow,
		Payload: mustJSON(t, map[string]interface{}{
			"id":             "cs_" + eventID,
			"mode":           "payment",
			"payment_status": "paid",
			"payment_intent": "pi_" + estimate.ID.String(),
			"amount_total":   cents,
			"currency":       "usd",
			"metadata": map[string]string{
				event.MetaKind:       event.KindEstimateDeposit,
				event.MetaEstimateID: estimate.ID.String(),
				event.MetaClientIP:   "203.0.113.7",
			},
		}),
	}
}

func balanceEnvelope(t *testing.T, eventID string, invoiceID uuid.UUID, cents int64) event.Envelope {
	return event.Envelope{
		ID:      eventID,
		Type:    event.TypeCheckoutSessionCompleted,
		Created: testNow,
		Payload: mustJSON(t, map[string]interface{}{
			"id":             "cs_" + eventID,
			"mode":           "payment",
			"payment_status": "paid",
			"payment_intent": "pi_" + eventID,
			"amount_total":   cents,
			"currency":       "usd",
			"metadata": map[string]string{
				event.MetaKind:      event.KindInvoiceBalance,
				event.MetaInvoiceID: invoiceID.String(),
			},
		}),
	}
}

func subscriptionEnvelope(t *testing.T, eventID, typ string, created time.Time, userID uuid.UUID, status, priceID string) event.Envelope {
	interval := "month"
	if priceID == "price_pro_annual" {
		interval = "year"
	}
	return event.Envelope{
		ID:      eventID,
		Type:    typ,
		Created: created,
		Payload: mustJSON(t, map[string]interface{}{
			"id":                   "sub_1",
			"customer":             "cus_1",
			"status":               status,
			"current_period_start": created.Unix(),
			"current_period_end":   created.AddDate(0, 1, 0).Unix(),
			"metadata":             map[string]string{event.MetaUserID: userID.String()},
			"items": map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"price": map[string]interface{}{"id": priceID, "recurring": map[string]string{"interval": interval}}},
				},
			},
		}),
	}
}

func renewalEnvelope(t *testing.T, eventID, billingReason, priceID string) event.Envelope {
	return event.Envelope{
		ID:      eventID,
		Type:    event.TypeInvoicePaymentSucceeded,
		Created: testNow,
		Payload: mustJSON(t, map[string]interface{}{
			"id":             "in_" + eventID,
			"customer":       "cus_1",
			"subscription":   "sub_1",
			"billing_reason": billingReason,
			"amount_paid":    2900,
			"lines": map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{
						"price":  map[string]string{"id": priceID},
						"period": map[string]int64{"start": testNow.Unix(), "end": testNow.AddDate(0, 1, 0).Unix()},
					},
				},
			},
		}),
	}
}

func okLink(id string) *provider.PaymentLink {
	return &provider.PaymentLink{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}
}
