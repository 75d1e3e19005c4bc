package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/pricing"
	"github.com/optimalsupps/storefront/internal/store"
)

// checkoutRequest is the payload of both the quote and checkout endpoints.
type checkoutRequest struct {
	UserID string `json:"user_id"`
	Items  []struct {
		VariantID string `json:"variant_id"`
		Quantity  int64  `json:"quantity"`
	} `json:"items"`
	DiscountCode string `json:"discount_code,omitempty"`
	Subscription bool   `json:"subscription"`
	CreditsCents int64  `json:"credits_cents"`
}

// resolvedCart is a priced cart plus everything checkout needs to persist it.
type resolvedCart struct {
	quote    pricing.Quote
	items    []store.OrderItem
	discount *store.DiscountCode
}

// CheckoutQuote handles POST /v1/checkout/quote. Pure pricing, no mutation.
func (h *Handler) CheckoutQuote(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cart, err := h.resolveCart(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"quote":           cart.quote,
		"pricing_version": h.cfg.Pricing.Version,
	})
}

// CheckoutCreate handles POST /v1/checkout. Prices the cart and persists a
// pending order; discount usage and credit balances are only touched at
// settlement, after payment succeeds.
func (h *Handler) CheckoutCreate(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		httpx.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	cart, err := h.resolveCart(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order := &store.Order{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Items:             cart.items,
		SubtotalCents:     cart.quote.SubtotalCents,
		ShippingCents:     cart.quote.ShippingCents,
		TaxCents:          cart.quote.TaxCents,
		DiscountCents:     cart.quote.DiscountCents,
		CreditsCents:      cart.quote.CreditsCents,
		TotalCents:        cart.quote.TotalCents,
		Subscription:      req.Subscription,
		PaymentStatus:     store.PaymentPending,
		FulfillmentStatus: store.FulfillmentPending,
	}
	if cart.discount != nil {
		order.DiscountCodeID = &cart.discount.ID
	}

	if err := h.store.CreateOrder(r.Context(), order); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("order created", "order_id", order.ID, "user_id", order.UserID,
		"total_cents", order.TotalCents)
	httpx.JSON(w, http.StatusCreated, order)
}

// resolveCart loads variants, the discount code, usage counts, and the
// credit balance, then prices the cart.
func (h *Handler) resolveCart(ctx context.Context, req checkoutRequest) (*resolvedCart, error) {
	if len(req.Items) == 0 {
		return nil, badRequestf("cart is empty")
	}

	var (
		lines []pricing.LineItem
		items []store.OrderItem
	)
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, badRequestf("quantity must be positive for variant %s", it.VariantID)
		}
		variant, err := h.store.GetVariant(ctx, it.VariantID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, badRequestf("unknown variant %s", it.VariantID)
		}
		if err != nil {
			return nil, err
		}
		if !variant.Active {
			return nil, badRequestf("variant %s is not available", it.VariantID)
		}
		lines = append(lines, pricing.LineItem{
			VariantID:      variant.ID,
			Quantity:       it.Quantity,
			UnitPriceCents: variant.PriceCents,
		})
		items = append(items, store.OrderItem{
			VariantID:      variant.ID,
			Quantity:       it.Quantity,
			UnitPriceCents: variant.PriceCents,
		})
	}

	var (
		discount *store.DiscountCode
		usage    pricing.DiscountUsage
	)
	if req.DiscountCode != "" {
		d, err := h.store.GetDiscountByCode(ctx, req.DiscountCode)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &pricing.InvalidDiscountError{
				Code:   store.NormalizeCode(req.DiscountCode),
				Reason: "code not found",
			}
		}
		if err != nil {
			return nil, err
		}
		usage.Total = d.TimesRedeemed
		if req.UserID != "" {
			byCustomer, err := h.store.CountCustomerRedemptions(ctx, d.ID, req.UserID)
			if err != nil {
				return nil, err
			}
			usage.ByCustomer = byCustomer
		}
		discount = d
	}

	var creditBalance int64
	if req.CreditsCents > 0 && req.UserID != "" {
		account, err := h.store.GetLoyaltyAccount(ctx, req.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if account != nil {
			creditBalance = account.CreditBalanceCents
		}
	}

	quote, err := pricing.Resolve(h.cfg.Pricing, pricing.Input{
		Items:                 lines,
		Discount:              discount,
		Usage:                 usage,
		Subscription:          req.Subscription,
		CreditsRequestedCents: req.CreditsCents,
		CreditBalanceCents:    creditBalance,
	})
	if err != nil {
		return nil, err
	}

	return &resolvedCart{quote: quote, items: items, discount: discount}, nil
}

// badRequestError carries a user-facing 400 message through writeError.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}
