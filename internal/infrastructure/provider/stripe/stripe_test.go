package stripe_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/config"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/domain/provider"
	"github.com/wekeepgrowing/paper-n-print-billing/internal/infrastructure/provider/stripe"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, ts time.Time, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifier_Verify(t *testing.T) {
	verifier := stripe.NewVerifier(config.StripeConfig{WebhookSecret: testSecret, WebhookTolerance: 5 * time.Minute}, zap.NewNop())
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1773480600,"data":{"object":{"id":"cs_1"}}}`)

	t.Run("valid signature", func(t *testing.T) {
		env, err := verifier.Verify(payload, sign(payload, time.Now(), testSecret))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", env.ID)
		assert.Equal(t, "checkout.session.completed", env.Type)
		assert.Equal(t, int64(1773480600), env.Created.Unix())
		assert.JSONEq(t, `{"id":"cs_1"}`, string(env.Payload))
	})

	rejected := []struct {
		name      string
		payload   []byte
		signature string
	}{
		{"missing header", payload, ""},
		{"wrong secret", payload, sign(payload, time.Now(), "whsec_other")},
		{"tampered body", []byte(`{"id":"evt_2"}`), sign(payload, time.Now(), testSecret)},
		{"stale timestamp", payload, sign(payload, time.Now().Add(-time.Hour), testSecret)},
		{"garbage header", payload, "not-a-signature"},
		{"signed but not json", []byte("hello"), sign([]byte("hello"), time.Now(), testSecret)},
		{"signed without object", []byte(`{"id":"evt_3","type":"x"}`), sign([]byte(`{"id":"evt_3","type":"x"}`), time.Now(), testSecret)},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.payload, tt.signature)
			var authErr *domainErrors.AuthenticationError
			require.ErrorAs(t, err, &authErr)
		})
	}
}

func newTestBackendServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testStripeConfig(apiURL string) config.StripeConfig {
	return config.StripeConfig{SecretKey: "sk_test_123", APIURL: apiURL, MaxNetworkRetries: 0}
}

func TestLinkClient_CreateLink(t *testing.T) {
	var form url.Values
	var idempotencyKey string
	srv := newTestBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","expires_at":1773567000}`)
	})

	cfg := testStripeConfig(srv.URL)
	client := stripe.NewLinkClient(stripe.NewBackend(cfg, srv.Client(), zap.NewNop()), cfg.SecretKey,
		stripe.LinkClientConfig{SuccessURL: "https://app.example.com/paid", CancelURL: "https://app.example.com/cancel"},
		zap.NewNop())

	invoiceID := uuid.New()
	link, err := client.CreateLink(context.Background(), provider.LinkRequest{
		InvoiceID:      invoiceID,
		Description:    "Invoice INV-1",
		Amount:         decimal.RequireFromString("1234.5"),
		Currency:       "USD",
		CustomerEmail:  "dana@example.com",
		IdempotencyKey: "invoice-link-" + invoiceID.String() + "-0",
		Metadata:       map[string]string{"kind": "invoice_balance", "invoice_id": invoiceID.String()},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", link.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", link.URL)
	require.NotNil(t, link.ExpiresAt)

	assert.Equal(t, "invoice-link-"+invoiceID.String()+"-0", idempotencyKey)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "123450", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "invoice_balance", form.Get("metadata[kind]"))
	assert.Equal(t, invoiceID.String(), form.Get("metadata[invoice_id]"))
	assert.Equal(t, invoiceID.String(), form.Get("client_reference_id"))
	assert.Equal(t, "dana@example.com", form.Get("customer_email"))
}

func TestLinkClient_CreateLinkFailure(t *testing.T) {
	srv := newTestBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"parameter_invalid_integer","message":"Invalid integer"}}`)
	})

	cfg := testStripeConfig(srv.URL)
	client := stripe.NewLinkClient(stripe.NewBackend(cfg, srv.Client(), zap.NewNop()), cfg.SecretKey,
		stripe.LinkClientConfig{SuccessURL: "https://app.example.com/paid", CancelURL: "https://app.example.com/cancel"},
		zap.NewNop())

	link, err := client.CreateLink(context.Background(), provider.LinkRequest{
		InvoiceID: uuid.New(), Description: "Invoice", Amount: decimal.NewFromInt(10), Currency: "usd",
	})
	require.Error(t, err)
	assert.Nil(t, link)
	assert.Contains(t, err.Error(), "parameter_invalid_integer")
}

func TestCustomerDirectory_LookupCustomer(t *testing.T) {
	userID := uuid.New()
	srv := newTestBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers/cus_known":
			fmt.Fprintf(w, `{"id":"cus_known","object":"customer","email":"owner@example.com","name":"Owner","metadata":{"user_id":%q}}`, userID)
		case "/v1/customers/cus_deleted":
			_, _ = io.WriteString(w, `{"id":"cus_deleted","object":"customer","deleted":true}`)
		case "/v1/customers/cus_broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"type":"api_error","message":"boom"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such customer"}}`)
		}
	})

	cfg := testStripeConfig(srv.URL)
	directory := stripe.NewCustomerDirectory(stripe.NewBackend(cfg, srv.Client(), zap.NewNop()), cfg.SecretKey, zap.NewNop())
	ctx := context.Background()

	known, err := directory.LookupCustomer(ctx, "cus_known")
	require.NoError(t, err)
	require.NotNil(t, known)
	assert.Equal(t, "owner@example.com", known.Email)
	assert.Equal(t, userID.String(), known.Metadata["user_id"])

	missing, err := directory.LookupCustomer(ctx, "cus_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := directory.LookupCustomer(ctx, "cus_deleted")
	require.NoError(t, err)
	assert.Nil(t, deleted)

	_, err = directory.LookupCustomer(ctx, "cus_broken")
	assert.Error(t, err)
}
