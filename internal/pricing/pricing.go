// Package pricing implements the order pricing resolver: subtotal,
// shipping, tax, discount, and referral credit settlement for a cart.
// Resolution is a pure computation over an injected Config; callers persist
// the result and decrement discount usage and credit balances after payment.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optimalsupps/storefront/internal/store"
)

// Config holds the pricing constants. It is versioned and injected so the
// resolver can be exercised under multiple configurations.
type Config struct {
	Version                     string  `yaml:"version"`
	SubscriptionDiscountPercent int64   `yaml:"subscription_discount_percent"`
	FreeShippingThresholdCents  int64   `yaml:"free_shipping_threshold_cents"`
	FlatShippingCents           int64   `yaml:"flat_shipping_cents"`
	TaxRate                     float64 `yaml:"tax_rate"`
}

// LineItem is one cart line with the variant's list price.
type LineItem struct {
	VariantID      string
	Quantity       int64
	UnitPriceCents int64
}

// DiscountUsage carries the redemption counts the resolver needs to enforce
// usage caps. Counts are read by the caller before resolution.
type DiscountUsage struct {
	Total      int
	ByCustomer int
}

// Input is everything a quote depends on.
type Input struct {
	Items                 []LineItem
	Discount              *store.DiscountCode
	Usage                 DiscountUsage
	Subscription          bool
	CreditsRequestedCents int64
	CreditBalanceCents    int64
	Now                   time.Time
}

// Quote is the priced cart. All amounts are cents.
type Quote struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
	CreditsCents  int64 `json:"credits_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// InvalidDiscountError rejects a discount code at quote time. No mutation
// has occurred when it is returned; the checkout surface shows the reason.
type InvalidDiscountError struct {
	Code   string
	Reason string
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("invalid discount code %q: %s", e.Code, e.Reason)
}

// Resolve prices the cart. It has no side effects.
func Resolve(cfg Config, in Input) (Quote, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var subtotal int64
	for _, item := range in.Items {
		unit := item.UnitPriceCents
		if in.Subscription {
			unit = subscriptionPrice(unit, cfg.SubscriptionDiscountPercent)
		}
		subtotal += unit * item.Quantity
	}

	shipping := cfg.FlatShippingCents
	if subtotal >= cfg.FreeShippingThresholdCents {
		shipping = 0
	}

	var discount int64
	if in.Discount != nil {
		amount, err := discountAmount(in.Discount, in.Usage, subtotal, now)
		if err != nil {
			return Quote{}, err
		}
		discount = amount
	}

	taxable := subtotal + shipping - discount
	if taxable < 0 {
		taxable = 0
	}
	tax := roundCents(decimal.NewFromInt(taxable).Mul(decimal.NewFromFloat(cfg.TaxRate)))

	credits := min3(in.CreditsRequestedCents, in.CreditBalanceCents, subtotal+shipping+tax-discount)
	if credits < 0 {
		credits = 0
	}

	total := subtotal + shipping + tax - discount - credits
	if total < 0 {
		total = 0
	}

	return Quote{
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		DiscountCents: discount,
		CreditsCents:  credits,
		TotalCents:    total,
	}, nil
}

// discountAmount validates the code against the eligible base (the
// merchandise subtotal) and returns the discount in cents.
func discountAmount(d *store.DiscountCode, usage DiscountUsage, eligibleBase int64, now time.Time) (int64, error) {
	reject := func(reason string) (int64, error) {
		return 0, &InvalidDiscountError{Code: d.Code, Reason: reason}
	}

	if !d.Active {
		return reject("code is inactive")
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return reject("code is not active yet")
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return reject("code has expired")
	}
	if eligibleBase < d.MinSubtotalCents {
		return reject(fmt.Sprintf("minimum purchase of %d cents not met", d.MinSubtotalCents))
	}
	if d.MaxRedemptions > 0 && usage.Total >= d.MaxRedemptions {
		return reject("redemption limit reached")
	}
	if d.MaxPerCustomer > 0 && usage.ByCustomer >= d.MaxPerCustomer {
		return reject("per-customer redemption limit reached")
	}

	switch d.Type {
	case store.DiscountPercentage:
		if d.Value <= 0 || d.Value > 100 {
			return reject("percentage out of range")
		}
		amount := roundCents(decimal.NewFromInt(eligibleBase).
			Mul(decimal.NewFromInt(d.Value)).
			Div(decimal.NewFromInt(100)))
		return amount, nil
	case store.DiscountFixed:
		if d.Value <= 0 {
			return reject("fixed amount out of range")
		}
		if d.Value > eligibleBase {
			return eligibleBase, nil
		}
		return d.Value, nil
	default:
		return reject("unknown discount type")
	}
}

// subscriptionPrice applies the subscribe-and-save percentage to a list
// price, rounding the discount half-up to cents.
func subscriptionPrice(listCents, percent int64) int64 {
	if percent <= 0 {
		return listCents
	}
	off := roundCents(decimal.NewFromInt(listCents).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)))
	return listCents - off
}

func roundCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func min3(a, b, c int64) int64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
