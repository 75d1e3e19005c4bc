// Package api implements the storefront HTTP API: checkout, payment
// webhooks, loyalty and referral endpoints, and the admin console.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optimalsupps/storefront/internal/config"
	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/metrics"
	"github.com/optimalsupps/storefront/internal/pricing"
	"github.com/optimalsupps/storefront/internal/referral"
	"github.com/optimalsupps/storefront/internal/settlement"
	"github.com/optimalsupps/storefront/internal/store"
)

// Handler holds all API handler state.
type Handler struct {
	store   store.Store
	settler *settlement.Settler
	ledger  *referral.Ledger
	cfg     *config.Config
	log     *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(st store.Store, settler *settlement.Settler, ledger *referral.Ledger, cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{store: st, settler: settler, ledger: ledger, cfg: cfg, log: log}
}

// Routes mounts all endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checkout/quote", h.CheckoutQuote)
		r.Post("/checkout", h.CheckoutCreate)
		r.Post("/webhooks/payment", h.PaymentWebhook)
		r.Post("/signup", h.Signup)
		r.Get("/loyalty/{userID}", h.GetLoyalty)
		r.Post("/loyalty/{userID}/reviews", h.ReviewBonus)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Get("/orders", h.AdminListOrders)
		r.Get("/orders/{id}", h.AdminGetOrder)
		r.Post("/orders/{id}/status", h.AdminUpdateOrderStatus)
		r.Get("/discounts", h.AdminListDiscounts)
		r.Post("/discounts", h.AdminCreateDiscount)
		r.Delete("/discounts/{id}", h.AdminDeleteDiscount)
		r.Get("/audit/inventory", h.AdminInventoryAudit)
	})
}

// writeError maps core errors to HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		invalid *pricing.InvalidDiscountError
		badReq  *badRequestError
	)
	switch {
	case errors.As(err, &badReq):
		httpx.Error(w, http.StatusBadRequest, badReq.Error())
	case errors.As(err, &invalid):
		metrics.InvalidDiscounts.Inc()
		httpx.Error(w, http.StatusUnprocessableEntity, invalid.Error())
	case errors.Is(err, store.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidTransition):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
