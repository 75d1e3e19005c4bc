package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/loyalty"
	"github.com/optimalsupps/storefront/internal/referral"
	"github.com/optimalsupps/storefront/internal/store"
)

// referralCodeAttempts bounds retries when a freshly generated code
// collides with an existing one.
const referralCodeAttempts = 5

// Signup handles POST /v1/signup. Creates a loyalty account with the
// signup bonus and a fresh referral code, and records the referral
// relationship when a valid code accompanies the signup. A bad referral
// code never fails the signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		ReferralCode string `json:"referral_code,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		httpx.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	account := &store.LoyaltyAccount{
		UserID: req.UserID,
		Tier:   loyalty.TierBronze,
	}
	account.AddPoints(loyalty.SignupBonus)

	created := false
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := referral.NewCode()
		if err != nil {
			h.writeError(w, err)
			return
		}
		account.ReferralCode = code

		err = h.store.CreateLoyaltyAccount(r.Context(), account)
		if err == nil {
			created = true
			break
		}
		if errors.Is(err, store.ErrDuplicateKey) {
			// Either the user already has an account or the code
			// collided; disambiguate and retry on a collision.
			if _, lookupErr := h.store.GetLoyaltyAccount(r.Context(), req.UserID); lookupErr == nil {
				httpx.Error(w, http.StatusConflict, "account already exists")
				return
			}
			continue
		}
		h.writeError(w, err)
		return
	}
	if !created {
		httpx.Error(w, http.StatusInternalServerError, "could not allocate referral code")
		return
	}

	referred := false
	if req.ReferralCode != "" {
		ok, err := h.ledger.RecordSignup(r.Context(), h.store, req.UserID, req.ReferralCode)
		if err != nil {
			h.writeError(w, err)
			return
		}
		referred = ok
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"account":  account,
		"referred": referred,
	})
}

// GetLoyalty handles GET /v1/loyalty/{userID}.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	account, err := h.store.GetLoyaltyAccount(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"account":    account,
		"progress":   loyalty.ProgressFor(account.LifetimePoints),
		"multiplier": loyalty.Multiplier(account.Tier),
	})
}

// ReviewBonus handles POST /v1/loyalty/{userID}/reviews. Awards the
// verified-review bonus.
func (h *Handler) ReviewBonus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	account, err := h.store.GetLoyaltyAccount(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	account.AddPoints(loyalty.VerifiedReviewBonus)
	if err := h.store.UpdateLoyaltyAccount(r.Context(), account); err != nil {
		h.writeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"account":  account,
		"progress": loyalty.ProgressFor(account.LifetimePoints),
	})
}
