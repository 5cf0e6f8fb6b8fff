package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/adapter/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/deposit"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/repository"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/database/dbtest"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/middleware/auth"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/usecase"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/logger"
	"go.uber.org/zap"
)

const apiSecret = "api-test-secret"

type apiFixture struct {
	e      *echo.Echo
	store  domainRepo.Store
	ledger *usecase.CreditLedger
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := zap.NewNop()
	store := repository.NewStore(dbtest.New(t), log)
	tiers := config.DefaultTierCatalog()

	ledger := usecase.NewCreditLedger(store, tiers, log)
	issuer := usecase.NewPaymentLinkIssuer(store, nil, nil, nil, usecase.LinkIssuerConfig{}, log)

	e := echo.New()
	e.Validator = NewRequestValidator()
	logger.WithEchoLogger(e, log)

	RegisterRoutes(e, Handlers{
		Webhook:      NewWebhookHandler(log, new(MockVerifier), new(MockRouter)),
		Credits:      NewCreditHandler(log, ledger),
		Subscription: NewSubscriptionHandler(log, usecase.NewSubscriptionService(store, tiers, log)),
		Documents:    NewDocumentHandler(log, usecase.NewEstimateService(store, log), issuer),
	}, auth.JWTConfig{
		Secret:    apiSecret,
		Logger:    log,
		SkipPaths: []string{"/health", "/webhook"},
	}, "billing")

	return &apiFixture{e: e, store: store, ledger: ledger}
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "owner@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(apiSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (f *apiFixture) do(t *testing.T, method, path string, userID uuid.UUID, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != uuid.Nil {
		req.Header.Set(echo.HeaderAuthorization, bearer(t, userID))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestAPI_HealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"billing"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/credits/balance", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_CreditConsumption(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()
	_, err := f.ledger.GrantCredits(context.Background(), userID, 3, model.LedgerReasonMonthlyGrant, "evt_grant")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/credits/balance", userID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":3}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/credits/consume", userID, `{"amount":2}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "Idempotency-Key is required")

	rec = f.do(t, http.MethodPost, "/api/v1/credits/consume", userID, `{"amount":0}`,
		map[string]string{"Idempotency-Key": "req-0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	key := map[string]string{"Idempotency-Key": "req-1"}
	rec = f.do(t, http.MethodPost, "/api/v1/credits/consume", userID, `{"amount":2,"reference_id":"export-1"}`, key)
	require.Equal(t, http.StatusOK, rec.Code)
	var first ConsumeCreditsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, int64(1), first.Balance)
	assert.False(t, first.Replay)

	rec = f.do(t, http.MethodPost, "/api/v1/credits/consume", userID, `{"amount":2,"reference_id":"export-1"}`, key)
	require.Equal(t, http.StatusOK, rec.Code)
	var replay ConsumeCreditsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	assert.True(t, replay.Replay)
	assert.Equal(t, first.Entry.ID, replay.Entry.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/credits/consume", userID, `{"amount":2}`,
		map[string]string{"Idempotency-Key": "req-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/credits/entries?limit=10", userID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page usecase.LedgerPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/credits/entries?limit=abc", userID, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SubscriptionDefaultsToFreeTier(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/subscription", uuid.New(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view usecase.SubscriptionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.TierNone, view.Tier)
	assert.Equal(t, int64(0), view.CreditBalance)
}

func TestAPI_EstimateTransitions(t *testing.T) {
	f := newAPIFixture(t)
	owner := uuid.New()
	estimate := &model.Estimate{
		UserID:       owner,
		ClientName:   "Dana Client",
		Number:       "EST-API-1",
		Currency:     "usd",
		Subtotal:     decimal.NewFromInt(1000),
		Total:        decimal.NewFromInt(1000),
		DepositKind:  deposit.KindPercent,
		DepositValue: decimal.NewFromInt(25),
		Status:       model.EstimateStatusDraft,
		Items: []model.EstimateItem{
			{Description: "Framing", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(1000), Amount: decimal.NewFromInt(1000)},
		},
	}
	require.NoError(t, f.store.Estimates().Create(context.Background(), estimate))
	path := "/api/v1/estimates/" + estimate.ID.String()

	rec := f.do(t, http.MethodPost, path+"/send", uuid.New(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the estimate")

	rec = f.do(t, http.MethodPost, path+"/send", owner, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sent model.Estimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, model.EstimateStatusSent, sent.Status)

	rec = f.do(t, http.MethodPost, path+"/send", owner, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/decline", owner, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/estimates/not-a-uuid/send", owner, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PaymentLinkHidesForeignInvoices(t *testing.T) {
	f := newAPIFixture(t)
	invoice := &model.Invoice{
		UserID:     uuid.New(),
		Number:     "INV-API-1",
		ClientName: "Dana Client",
		Currency:   "usd",
		Subtotal:   decimal.NewFromInt(750),
		Total:      decimal.NewFromInt(750),
		AmountPaid: decimal.Zero,
		Status:     model.InvoiceStatusPending,
		DueDate:    time.Now().AddDate(0, 0, 30),
	}
	require.NoError(t, f.store.Invoices().Create(context.Background(), invoice))

	rec := f.do(t, http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/payment-link", uuid.New(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/payment-link", invoice.UserID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
