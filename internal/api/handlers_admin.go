package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/store"
)

// AdminListOrders handles GET /admin/orders.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// AdminGetOrder handles GET /admin/orders/{id}.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// AdminUpdateOrderStatus handles POST /admin/orders/{id}/status. Moves the
// fulfillment status along the transition graph; anything off-graph is
// rejected without mutation.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status store.FulfillmentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := order.Transition(req.Status); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.UpdateOrder(r.Context(), order); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("order status updated", "order_id", order.ID, "status", order.FulfillmentStatus)
	httpx.JSON(w, http.StatusOK, order)
}

// AdminListDiscounts handles GET /admin/discounts.
func (h *Handler) AdminListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.store.ListDiscounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"discounts": discounts})
}

// AdminCreateDiscount handles POST /admin/discounts.
func (h *Handler) AdminCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code             string             `json:"code"`
		Type             store.DiscountType `json:"type"`
		Value            int64              `json:"value"`
		MinSubtotalCents int64              `json:"min_subtotal_cents"`
		MaxRedemptions   int                `json:"max_redemptions"`
		MaxPerCustomer   int                `json:"max_per_customer"`
		StartsAt         *time.Time         `json:"starts_at,omitempty"`
		EndsAt           *time.Time         `json:"ends_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Code == "" {
		httpx.Error(w, http.StatusBadRequest, "code is required")
		return
	}
	if !req.Type.Valid() {
		httpx.Error(w, http.StatusBadRequest, "type must be percentage or fixed")
		return
	}
	if req.Value <= 0 || (req.Type == store.DiscountPercentage && req.Value > 100) {
		httpx.Error(w, http.StatusBadRequest, "value out of range")
		return
	}

	d := &store.DiscountCode{
		Code:             req.Code,
		Type:             req.Type,
		Value:            req.Value,
		MinSubtotalCents: req.MinSubtotalCents,
		MaxRedemptions:   req.MaxRedemptions,
		MaxPerCustomer:   req.MaxPerCustomer,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		Active:           true,
	}
	if err := h.store.CreateDiscount(r.Context(), d); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			httpx.Error(w, http.StatusConflict, "code already exists")
			return
		}
		h.writeError(w, err)
		return
	}

	h.log.Info("discount created", "code", d.Code, "type", d.Type, "value", d.Value)
	httpx.JSON(w, http.StatusCreated, d)
}

// AdminDeleteDiscount handles DELETE /admin/discounts/{id}.
func (h *Handler) AdminDeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid discount id")
		return
	}
	if err := h.store.DeleteDiscount(r.Context(), uint(id)); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// AdminInventoryAudit handles GET /admin/audit/inventory.
func (h *Handler) AdminInventoryAudit(w http.ResponseWriter, r *http.Request) {
	adjustments, err := h.store.ListInventoryAdjustments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"adjustments": adjustments})
}
