package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/optimalsupps/storefront/internal/loyalty"
	"github.com/optimalsupps/storefront/internal/store"
)

// Config holds the referral program constants.
type Config struct {
	// CreditCents is the flat credit awarded to the referrer when the
	// referred user's first paid order settles.
	CreditCents int64 `yaml:"credit_cents"`
}

// Ledger tracks referral relationships and referrer credits. Methods take
// the store explicitly so they compose with the caller's transaction.
type Ledger struct {
	cfg Config
	log *slog.Logger
}

// NewLedger creates a referral ledger.
func NewLedger(cfg Config, log *slog.Logger) *Ledger {
	return &Ledger{cfg: cfg, log: log}
}

// RecordSignup records the relationship between a new user and the owner
// of the referral code. Returns false without error when the code does not
// resolve to an account or the user was already referred; a bad code never
// blocks signup.
func (l *Ledger) RecordSignup(ctx context.Context, st store.Store, userID, code string) (bool, error) {
	if !ValidCode(code) {
		l.log.Info("ignoring malformed referral code", "user_id", userID, "code", code)
		return false, nil
	}
	referrer, err := st.GetLoyaltyAccountByReferralCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		l.log.Info("ignoring unknown referral code", "user_id", userID, "code", code)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up referral code: %w", err)
	}
	if referrer.UserID == userID {
		l.log.Info("ignoring self-referral", "user_id", userID)
		return false, nil
	}

	err = st.CreateReferral(ctx, &store.ReferralRelationship{
		ReferrerCode:   code,
		ReferredUserID: userID,
		CreditCents:    l.cfg.CreditCents,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		// Already referred by someone; first code wins.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recording referral: %w", err)
	}
	return true, nil
}

// CreditFirstOrder awards the referrer's credit and point bonus once the
// referred user's first paid order settles. Idempotent through the
// relationship's credited flag; a missing referrer account is logged and
// skipped so settlement never fails on it.
func (l *Ledger) CreditFirstOrder(ctx context.Context, st store.Store, referredUserID string, now time.Time) error {
	rel, err := st.GetReferralByReferred(ctx, referredUserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading referral relationship: %w", err)
	}
	if rel.Credited {
		return nil
	}

	referrer, err := st.GetLoyaltyAccountByReferralCode(ctx, rel.ReferrerCode)
	if errors.Is(err, store.ErrNotFound) {
		l.log.Warn("referrer account no longer exists, skipping credit",
			"referrer_code", rel.ReferrerCode, "referred_user_id", referredUserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading referrer account: %w", err)
	}

	referrer.CreditBalanceCents += rel.CreditCents
	referrer.ReferralCount++
	referrer.AddPoints(loyalty.ReferralBonus)
	if err := st.UpdateLoyaltyAccount(ctx, referrer); err != nil {
		return fmt.Errorf("crediting referrer: %w", err)
	}

	rel.Credited = true
	rel.CreditedAt = &now
	if err := st.UpdateReferral(ctx, rel); err != nil {
		return fmt.Errorf("marking referral credited: %w", err)
	}

	l.log.Info("referral credit awarded",
		"referrer", referrer.UserID,
		"referred", referredUserID,
		"credit_cents", rel.CreditCents)
	return nil
}
