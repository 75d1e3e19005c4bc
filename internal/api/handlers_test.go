package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimalsupps/storefront/internal/api"
	"github.com/optimalsupps/storefront/internal/config"
	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/referral"
	"github.com/optimalsupps/storefront/internal/settlement"
	"github.com/optimalsupps/storefront/internal/store"
)

const (
	testWebhookSecret = "whsec_api_test"
	testJWTSecret     = "jwt_api_test"
)

type env struct {
	srv *httptest.Server
	st  *store.MemoryStore
	cfg *config.Config
}

func setup(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.WebhookSecret = testWebhookSecret
	cfg.AdminJWTSecret = testJWTSecret

	ledger := referral.NewLedger(cfg.Referral, log)
	settler := settlement.New(st, ledger, cfg.WebhookSecret, log)

	router := httpx.NewRouter(log)
	handler := api.NewHandler(st, settler, ledger, cfg, log)
	handler.Routes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	e := &env{srv: srv, st: st, cfg: cfg}
	e.seedVariants(t)
	return e
}

func (e *env) seedVariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.st.CreateVariant(ctx, &store.ProductVariant{
		ID: "var-whey", Name: "Whey Protein", PriceCents: 4999, StockQuantity: 50, Active: true,
	}))
	require.NoError(t, e.st.CreateVariant(ctx, &store.ProductVariant{
		ID: "var-creatine", Name: "Creatine", PriceCents: 2999, StockQuantity: 50, Active: true,
	}))
	require.NoError(t, e.st.CreateVariant(ctx, &store.ProductVariant{
		ID: "var-retired", Name: "Retired", PriceCents: 999, StockQuantity: 0, Active: false,
	}))
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var m map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &m), "body: %s", raw)
	}
	return resp, m
}

func (e *env) adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, err := api.MintAdminToken(testJWTSecret, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func cartBody(userID string) map[string]any {
	return map[string]any{
		"user_id": userID,
		"items": []map[string]any{
			{"variant_id": "var-whey", "quantity": 1},
		},
	}
}

func TestCheckoutQuote(t *testing.T) {
	e := setup(t)

	resp, m := e.do(t, "POST", "/v1/checkout/quote", cartBody("u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	quote := m["quote"].(map[string]any)
	assert.Equal(t, float64(4999), quote["subtotal_cents"])
	assert.Equal(t, float64(595), quote["shipping_cents"])
	assert.Equal(t, e.cfg.Pricing.Version, m["pricing_version"])
}

func TestCheckoutQuoteInvalidDiscount(t *testing.T) {
	e := setup(t)

	body := cartBody("u1")
	body["discount_code"] = "NOSUCHCODE"
	resp, m := e.do(t, "POST", "/v1/checkout/quote", body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, m["error"].(map[string]any)["message"], "NOSUCHCODE")
}

func TestCheckoutQuoteUnknownVariant(t *testing.T) {
	e := setup(t)

	body := map[string]any{
		"user_id": "u1",
		"items":   []map[string]any{{"variant_id": "var-ghost", "quantity": 1}},
	}
	resp, _ := e.do(t, "POST", "/v1/checkout/quote", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body["items"] = []map[string]any{{"variant_id": "var-retired", "quantity": 1}}
	resp, _ = e.do(t, "POST", "/v1/checkout/quote", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutAndSettlement(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	resp, m := e.do(t, "POST", "/v1/checkout", cartBody("u1"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := m["id"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, string(store.PaymentPending), m["payment_status"])

	// Deliver the payment confirmation.
	payload, _ := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "payment.succeeded",
		"data": map[string]string{"order_id": orderID},
	})
	sig := settlement.SignHeader(payload, testWebhookSecret, time.Now().Unix())
	req, err := http.NewRequest("POST", e.srv.URL+"/v1/webhooks/payment", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(settlement.SignatureHeader, sig)
	wresp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	wresp.Body.Close()
	assert.Equal(t, http.StatusOK, wresp.StatusCode)

	order, err := e.st.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentPaid, order.PaymentStatus)

	variant, err := e.st.GetVariant(ctx, "var-whey")
	require.NoError(t, err)
	assert.Equal(t, int64(49), variant.StockQuantity)

	// Same event again: 200, no further decrement.
	req, err = http.NewRequest("POST", e.srv.URL+"/v1/webhooks/payment", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(settlement.SignatureHeader, sig)
	wresp, err = e.srv.Client().Do(req)
	require.NoError(t, err)
	wresp.Body.Close()
	assert.Equal(t, http.StatusOK, wresp.StatusCode)

	variant, err = e.st.GetVariant(ctx, "var-whey")
	require.NoError(t, err)
	assert.Equal(t, int64(49), variant.StockQuantity)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := setup(t)

	payload := []byte(`{"id":"evt_x","type":"payment.succeeded","data":{"order_id":"o1"}}`)
	resp, _ := e.do(t, "POST", "/v1/webhooks/payment", json.RawMessage(payload),
		map[string]string{settlement.SignatureHeader: "t=1,v1=deadbeef"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignupAndLoyalty(t *testing.T) {
	e := setup(t)

	resp, m := e.do(t, "POST", "/v1/signup", map[string]any{"user_id": "u1"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	account := m["account"].(map[string]any)
	assert.Equal(t, float64(50), account["lifetime_points"])
	code := account["referral_code"].(string)
	assert.True(t, referral.ValidCode(code), "referral code %q", code)
	assert.False(t, m["referred"].(bool))

	// Second signup for the same user conflicts.
	resp, _ = e.do(t, "POST", "/v1/signup", map[string]any{"user_id": "u1"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Referred signup records the relationship.
	resp, m = e.do(t, "POST", "/v1/signup",
		map[string]any{"user_id": "u2", "referral_code": code}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, m["referred"].(bool))

	resp, m = e.do(t, "GET", "/v1/loyalty/u1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	progress := m["progress"].(map[string]any)
	assert.Equal(t, "bronze", progress["tier"])
	assert.Equal(t, "silver", progress["next_tier"])
}

func TestLoyaltyNotFound(t *testing.T) {
	e := setup(t)
	resp, _ := e.do(t, "GET", "/v1/loyalty/nobody", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReviewBonus(t *testing.T) {
	e := setup(t)
	e.do(t, "POST", "/v1/signup", map[string]any{"user_id": "u1"}, nil)

	resp, m := e.do(t, "POST", "/v1/loyalty/u1/reviews", map[string]any{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := m["account"].(map[string]any)
	assert.Equal(t, float64(75), account["lifetime_points"]) // 50 signup + 25 review
}
