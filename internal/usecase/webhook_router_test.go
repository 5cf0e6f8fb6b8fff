package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/event"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
)

func amountIs(v int64) interface{} {
	return mock.MatchedBy(func(req provider.LinkRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(v))
	})
}

func TestRoute_DepositPercentCreatesPendingInvoiceWithLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))

	f.links.On("CreateLink", mock.Anything, mock.MatchedBy(func(req provider.LinkRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(700)) &&
			req.Metadata[event.MetaKind] == event.KindInvoiceBalance &&
			req.CustomerEmail == "dana@example.com"
	})).Return(okLink("cs_link_1"), nil).Once()

	outcome, err := f.router.Route(ctx, depositEnvelope(t, "evt_a", estimate, 30000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	stored, err := f.store.Estimates().FindByID(ctx, estimate.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstimateStatusInvoiced, stored.Status)
	require.NotNil(t, stored.AcceptedAt)
	require.NotNil(t, stored.AcceptedFromIP)
	assert.Equal(t, "203.0.113.7", *stored.AcceptedFromIP)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, model.InvoiceStatusPending, invoice.Status)
	assert.True(t, decimal.NewFromInt(700).Equal(invoice.Total), "total %s", invoice.Total)
	assert.True(t, strings.HasPrefix(invoice.Number, "INV-"))
	assert.WithinDuration(t, testNow.AddDate(0, 0, 30), invoice.DueDate, time.Second)

	require.Len(t, invoice.Items, 3)
	depositLine := invoice.Items[2]
	assert.True(t, depositLine.Synthetic)
	assert.True(t, decimal.NewFromInt(-300).Equal(depositLine.Amount))
	assert.Contains(t, depositLine.Description, estimate.Number)

	require.True(t, invoice.HasPaymentLink())
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_link_1", *invoice.PaymentLinkURL)
	require.NotNil(t, invoice.PaymentQR)
	assert.Equal(t, "https://cdn.example.com/invoices/"+invoice.ID.String()+"/payment-qr.png", *invoice.PaymentQR)

	payment, err := f.store.Payments().FindByExternalReference(ctx, "pi_"+estimate.ID.String())
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, model.PaymentKindDeposit, payment.Kind)
	assert.True(t, decimal.NewFromInt(300).Equal(payment.Amount))

	require.Equal(t, 1, f.notifier.count())
	sent := f.notifier.sent[0]
	assert.True(t, decimal.NewFromInt(300).Equal(sent.DepositAmount))
	assert.True(t, decimal.NewFromInt(1000).Equal(sent.TotalAmount))
	assert.Equal(t, invoice.Number, sent.InvoiceNumber)
	assert.Equal(t, *invoice.PaymentLinkURL, sent.PaymentLink)

	f.links.AssertExpectations(t)
}

func TestRoute_DepositCoveringTotalCreatesPaidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(500), deposit.KindFixed, decimal.NewFromInt(500))

	outcome, err := f.router.Route(ctx, depositEnvelope(t, "evt_b", estimate, 50000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, model.InvoiceStatusPaid, invoice.Status)
	assert.True(t, invoice.Total.IsZero())
	require.NotNil(t, invoice.PaidAt)
	assert.False(t, invoice.HasPaymentLink())

	f.links.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything)
	require.Equal(t, 1, f.notifier.count())
	assert.Empty(t, f.notifier.sent[0].PaymentLink)
}

func TestRoute_DepositWithInvalidTermsIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(150))

	outcome, err := f.router.Route(ctx, depositEnvelope(t, "evt_bad_terms", estimate, 30000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	assert.Nil(t, invoice)

	stored, err := f.store.Estimates().FindByID(ctx, estimate.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstimateStatusSent, stored.Status)
	assert.Equal(t, 0, f.notifier.count())
}

func TestRoute_DuplicateDeliveryIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))
	f.links.On("CreateLink", mock.Anything, amountIs(700)).Return(okLink("cs_link_c"), nil).Once()

	env := depositEnvelope(t, "evt_c", estimate, 30000)

	first, err := f.router.Route(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, first)

	second, err := f.router.Route(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeSkipped, second)

	// Same payment redelivered under a new event id.
	third, err := f.router.Route(ctx, depositEnvelope(t, "evt_c_resent", estimate, 30000))
	require.NoError(t, err)
	assert.NotEqual(t, usecase.OutcomeProcessed, third)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, 1, f.notifier.count())
	f.links.AssertNumberOfCalls(t, "CreateLink", 1)
}

func TestRoute_ConcurrentDuplicatesProduceOneInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))
	f.links.On("CreateLink", mock.Anything, amountIs(700)).Return(okLink("cs_link_race"), nil).Once()

	env := depositEnvelope(t, "evt_race", estimate, 30000)

	const deliveries = 5
	outcomes := make([]usecase.Outcome, deliveries)
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.router.Route(ctx, env)
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == usecase.OutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, usecase.OutcomeSkipped, outcomes[i])
		}
	}
	assert.Equal(t, 1, processed)
	f.links.AssertNumberOfCalls(t, "CreateLink", 1)
}

func TestRoute_LinkTimeoutKeepsInvoicePendingAndRetryAttachesLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))

	f.links.On("CreateLink", mock.Anything, mock.MatchedBy(func(req provider.LinkRequest) bool {
		return strings.HasSuffix(req.IdempotencyKey, "-0")
	})).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded).Once()

	outcome, err := f.router.Route(ctx, depositEnvelope(t, "evt_e", estimate, 30000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, model.InvoiceStatusPending, invoice.Status)
	assert.Nil(t, invoice.PaymentLinkURL)
	assert.Equal(t, 1, invoice.LinkAttempts)
	require.NotNil(t, invoice.LinkLastError)
	require.Equal(t, 1, f.notifier.count())
	assert.Empty(t, f.notifier.sent[0].PaymentLink)

	f.links.On("CreateLink", mock.Anything, mock.MatchedBy(func(req provider.LinkRequest) bool {
		return strings.HasSuffix(req.IdempotencyKey, "-1")
	})).Return(okLink("cs_retry"), nil).Once()

	retried, err := f.issuer.Issue(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, retried.ID)
	require.True(t, retried.HasPaymentLink())

	again, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, again.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_retry", *again.PaymentLinkURL)
	assert.Nil(t, again.LinkLastError)
	f.links.AssertExpectations(t)
}

func TestRoute_BalancePaymentsSettleInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))
	f.links.On("CreateLink", mock.Anything, amountIs(700)).Return(okLink("cs_link_bal"), nil).Once()

	_, err := f.router.Route(ctx, depositEnvelope(t, "evt_dep", estimate, 30000))
	require.NoError(t, err)
	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)

	outcome, err := f.router.Route(ctx, balanceEnvelope(t, "evt_bal_1", invoice.ID, 20000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	partial, err := f.store.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPending, partial.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(partial.Outstanding()))

	outcome, err = f.router.Route(ctx, balanceEnvelope(t, "evt_bal_2", invoice.ID, 50000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	paid, err := f.store.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	payments, err := f.store.Payments().ListByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	// A payment against a paid invoice is acknowledged without effect.
	outcome, err = f.router.Route(ctx, balanceEnvelope(t, "evt_bal_3", invoice.ID, 100))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome)
}

func TestRoute_DepositForDeclinedEstimateIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := f.seedEstimate(t, decimal.NewFromInt(1000), deposit.KindPercent, decimal.NewFromInt(30))

	declined := *estimate
	declined.Status = model.EstimateStatusDeclined
	require.NoError(t, f.store.Estimates().SaveTransition(ctx, &declined, model.EstimateStatusSent))

	outcome, err := f.router.Route(ctx, depositEnvelope(t, "evt_declined", estimate, 30000))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeIgnored, outcome)

	invoice, err := f.store.Invoices().FindByEstimateID(ctx, estimate.ID)
	require.NoError(t, err)
	assert.Nil(t, invoice)

	payment, err := f.store.Payments().FindByExternalReference(ctx, "pi_"+estimate.ID.String())
	require.NoError(t, err)
	assert.Nil(t, payment)

	exists, err := f.store.ProcessedEvents().Exists(ctx, "evt_declined")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRoute_AcknowledgesWithoutEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := &model.Estimate{ID: uuid.New()}
	tests := []struct {
		name string
		env  event.Envelope
	}{
		{"unknown type", event.Envelope{ID: "evt_u", Type: "charge.dispute.created", Payload: []byte(`{}`)}},
		{"undecodable payload", event.Envelope{ID: "evt_bad", Type: event.TypeCheckoutSessionCompleted, Payload: []byte(`{"mode":"payment"}`)}},
		{"estimate not found", depositEnvelope(t, "evt_missing", missing, 100)},
		{"unbound price", subscriptionEnvelope(t, "evt_price", event.TypeSubscriptionUpdated, testNow, uuid.New(), "active", "price_unknown")},
		{"non renewal invoice", renewalEnvelope(t, "evt_manual", "manual", "price_pro_monthly")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := f.router.Route(ctx, tt.env)
			require.NoError(t, err)
			assert.Equal(t, usecase.OutcomeIgnored, outcome)
		})
	}
}

func TestRoute_RenewalGrantsMonthlyCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	outcome, err := f.router.Route(ctx, subscriptionEnvelope(t, "evt_sub_created", event.TypeSubscriptionCreated, testNow, userID, "active", "price_pro_monthly"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	renewal := renewalEnvelope(t, "evt_renewal", "subscription_cycle", "price_pro_monthly")
	outcome, err = f.router.Route(ctx, renewal)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	outcome, err = f.router.Route(ctx, renewal)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeSkipped, outcome)

	page, err := f.ledger.History(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, int64(6), page.Entries[0].Delta)
	assert.Equal(t, model.LedgerReasonMonthlyGrant, page.Entries[0].Reason)
	assert.Equal(t, "evt_renewal", page.Entries[0].EventID)

	balance, err := f.ledger.CurrentBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)
}

func TestRoute_AnnualRenewalGrantsFirstMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.router.Route(ctx, subscriptionEnvelope(t, "evt_sub_annual", event.TypeSubscriptionCreated, testNow, userID, "active", "price_pro_annual"))
	require.NoError(t, err)

	outcome, err := f.router.Route(ctx, renewalEnvelope(t, "evt_annual_invoice", "subscription_create", "price_pro_annual"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	page, err := f.ledger.History(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, model.LedgerReasonAnnualFirstGrant, page.Entries[0].Reason)
	assert.Equal(t, int64(6), page.Entries[0].Delta)
}

func TestRoute_SubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	later := testNow.Add(time.Hour)

	outcome, err := f.router.Route(ctx, subscriptionEnvelope(t, "evt_upd_new", event.TypeSubscriptionUpdated, later, userID, "active", "price_pro_monthly"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	// Older update delivered late.
	outcome, err = f.router.Route(ctx, subscriptionEnvelope(t, "evt_upd_old", event.TypeSubscriptionUpdated, testNow, userID, "active", "price_lite_monthly"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeSkipped, outcome)

	sub, err := f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.TierPro, sub.Tier)
	assert.True(t, sub.RemoveWatermark)
	assert.Equal(t, int64(6), sub.MonthlyCredits)

	failed := event.Envelope{
		ID: "evt_failed", Type: event.TypeInvoicePaymentFailed, Created: later.Add(time.Minute),
		Payload: mustJSON(t, map[string]interface{}{"id": "in_failed", "customer": "cus_1", "subscription": "sub_1", "attempt_count": 1}),
	}
	outcome, err = f.router.Route(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	sub, err = f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)

	_, err = f.ledger.GrantCredits(ctx, userID, 6, model.LedgerReasonMonthlyGrant, "evt_seed")
	require.NoError(t, err)

	deleted := event.Envelope{
		ID: "evt_deleted", Type: event.TypeSubscriptionDeleted, Created: later.Add(2 * time.Minute),
		Payload: mustJSON(t, map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "canceled"}),
	}
	outcome, err = f.router.Route(ctx, deleted)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	sub, err = f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, model.TierNone, sub.Tier)
	assert.Zero(t, sub.MonthlyCredits)
	require.NotNil(t, sub.CanceledAt)

	balance, err := f.ledger.CurrentBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)
}

func TestRoute_LateRenewalDoesNotReviveCanceledSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.router.Route(ctx, subscriptionEnvelope(t, "evt_sub", event.TypeSubscriptionCreated, testNow, userID, "active", "price_pro_monthly"))
	require.NoError(t, err)

	deleted := event.Envelope{
		ID: "evt_deleted", Type: event.TypeSubscriptionDeleted, Created: testNow.Add(time.Hour),
		Payload: mustJSON(t, map[string]interface{}{"id": "sub_1", "customer": "cus_1", "status": "canceled"}),
	}
	outcome, err := f.router.Route(ctx, deleted)
	require.NoError(t, err)
	require.Equal(t, usecase.OutcomeProcessed, outcome)

	// Paid at testNow, delivered after the cancellation.
	outcome, err = f.router.Route(ctx, renewalEnvelope(t, "evt_late_renewal", "subscription_cycle", "price_pro_monthly"))
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	sub, err := f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, model.TierNone, sub.Tier)
	assert.False(t, sub.RemoveWatermark)
	require.NotNil(t, sub.LastEventAt)
	assert.True(t, sub.LastEventAt.Equal(testNow.Add(time.Hour)))

	// The paid period's credits are still granted.
	page, err := f.ledger.History(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, int64(6), page.Entries[0].Delta)
	assert.Equal(t, "evt_late_renewal", page.Entries[0].EventID)
}

func TestRoute_LatePaymentFailureIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.router.Route(ctx, subscriptionEnvelope(t, "evt_sub", event.TypeSubscriptionCreated, testNow, userID, "active", "price_pro_monthly"))
	require.NoError(t, err)

	renewal := renewalEnvelope(t, "evt_renewal", "subscription_cycle", "price_pro_monthly")
	renewal.Created = testNow.Add(2 * time.Hour)
	outcome, err := f.router.Route(ctx, renewal)
	require.NoError(t, err)
	require.Equal(t, usecase.OutcomeProcessed, outcome)

	failed := event.Envelope{
		ID: "evt_failed_old", Type: event.TypeInvoicePaymentFailed, Created: testNow.Add(time.Hour),
		Payload: mustJSON(t, map[string]interface{}{"id": "in_failed", "customer": "cus_1", "subscription": "sub_1", "attempt_count": 1}),
	}
	outcome, err = f.router.Route(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeSkipped, outcome)

	sub, err := f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, model.TierPro, sub.Tier)
}

func TestRoute_SubscriptionOwnerFromCustomerDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.customers.On("LookupCustomer", mock.Anything, "cus_1").Return(&provider.Customer{
		ID:       "cus_1",
		Email:    "owner@example.com",
		Metadata: map[string]string{event.MetaUserID: userID.String()},
	}, nil).Once()

	env := subscriptionEnvelope(t, "evt_lookup", event.TypeSubscriptionCreated, testNow, uuid.Nil, "trialing", "price_lite_monthly")
	outcome, err := f.router.Route(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeProcessed, outcome)

	sub, err := f.store.Subscriptions().FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, model.TierLite, sub.Tier)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	f.customers.AssertExpectations(t)
}
