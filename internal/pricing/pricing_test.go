package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimalsupps/storefront/internal/pricing"
	"github.com/optimalsupps/storefront/internal/store"
)

var testCfg = pricing.Config{
	Version:                     "test",
	SubscriptionDiscountPercent: 15,
	FreeShippingThresholdCents:  7500,
	FlatShippingCents:           595,
	TaxRate:                     0.08,
}

func items(price, qty int64) []pricing.LineItem {
	return []pricing.LineItem{{VariantID: "v1", Quantity: qty, UnitPriceCents: price}}
}

func TestSubtotalAndShipping(t *testing.T) {
	q, err := pricing.Resolve(testCfg, pricing.Input{Items: items(2500, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), q.SubtotalCents)
	assert.Equal(t, int64(595), q.ShippingCents)

	// At the free-shipping threshold exactly.
	q, err = pricing.Resolve(testCfg, pricing.Input{Items: items(2500, 3)})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), q.SubtotalCents)
	assert.Equal(t, int64(0), q.ShippingCents)
}

func TestSubscriptionPricing(t *testing.T) {
	// 15% off 4999 = 750 (749.85 rounds up), so unit price is 4249.
	q, err := pricing.Resolve(testCfg, pricing.Input{
		Items:        items(4999, 2),
		Subscription: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8498), q.SubtotalCents)
	assert.Equal(t, int64(0), q.ShippingCents) // over threshold
}

func TestTaxAppliedAfterDiscount(t *testing.T) {
	d := &store.DiscountCode{Code: "TEN", Type: store.DiscountPercentage, Value: 10, Active: true}
	q, err := pricing.Resolve(testCfg, pricing.Input{
		Items:    items(5000, 1),
		Discount: d,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), q.DiscountCents)
	// (5000 + 595 - 500) * 0.08 = 407.6 → 408
	assert.Equal(t, int64(408), q.TaxCents)
	assert.Equal(t, int64(5503), q.TotalCents)
}

func TestFixedDiscountClampsToSubtotal(t *testing.T) {
	d := &store.DiscountCode{Code: "BIG", Type: store.DiscountFixed, Value: 9999, Active: true}
	q, err := pricing.Resolve(testCfg, pricing.Input{
		Items:    items(2000, 1),
		Discount: d,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), q.DiscountCents)
}

func TestDiscountIdempotent(t *testing.T) {
	d := &store.DiscountCode{Code: "TEN", Type: store.DiscountPercentage, Value: 10, Active: true}
	in := pricing.Input{Items: items(3333, 3), Discount: d}
	q1, err := pricing.Resolve(testCfg, in)
	require.NoError(t, err)
	q2, err := pricing.Resolve(testCfg, in)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
}

func TestDiscountRejections(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		discount store.DiscountCode
		usage    pricing.DiscountUsage
		reason   string
	}{
		{"inactive", store.DiscountCode{Type: store.DiscountPercentage, Value: 10}, pricing.DiscountUsage{}, "inactive"},
		{"expired", store.DiscountCode{Type: store.DiscountPercentage, Value: 10, Active: true, EndsAt: &past}, pricing.DiscountUsage{}, "expired"},
		{"not started", store.DiscountCode{Type: store.DiscountPercentage, Value: 10, Active: true, StartsAt: &future}, pricing.DiscountUsage{}, "not active yet"},
		{"below minimum", store.DiscountCode{Type: store.DiscountFixed, Value: 500, Active: true, MinSubtotalCents: 99999}, pricing.DiscountUsage{}, "minimum purchase"},
		{"cap exhausted", store.DiscountCode{Type: store.DiscountPercentage, Value: 10, Active: true, MaxRedemptions: 5}, pricing.DiscountUsage{Total: 5}, "redemption limit"},
		{"customer cap exhausted", store.DiscountCode{Type: store.DiscountPercentage, Value: 10, Active: true, MaxPerCustomer: 1}, pricing.DiscountUsage{ByCustomer: 1}, "per-customer"},
		{"unknown type", store.DiscountCode{Type: "bogo", Value: 10, Active: true}, pricing.DiscountUsage{}, "unknown discount type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.discount
			d.Code = "CODE"
			_, err := pricing.Resolve(testCfg, pricing.Input{
				Items:    items(2000, 1),
				Discount: &d,
				Usage:    tt.usage,
				Now:      now,
			})
			var invalid *pricing.InvalidDiscountError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, invalid.Reason, tt.reason)
		})
	}
}

func TestCreditsClampToBalanceAndTotal(t *testing.T) {
	// Balance $10 against a $5.50 order: only $5.50 applies, total 0.
	cfg := testCfg
	cfg.TaxRate = 0
	cfg.FlatShippingCents = 0
	q, err := pricing.Resolve(cfg, pricing.Input{
		Items:                 items(550, 1),
		CreditsRequestedCents: 1000,
		CreditBalanceCents:    1000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(550), q.CreditsCents)
	assert.Equal(t, int64(0), q.TotalCents)

	// Requested more than balance: balance wins.
	q, err = pricing.Resolve(cfg, pricing.Input{
		Items:                 items(5000, 1),
		CreditsRequestedCents: 2000,
		CreditBalanceCents:    750,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750), q.CreditsCents)
	assert.Equal(t, int64(4250), q.TotalCents)
}

func TestTotalNeverNegative(t *testing.T) {
	d := &store.DiscountCode{Code: "ALL", Type: store.DiscountFixed, Value: 100000, Active: true}
	q, err := pricing.Resolve(testCfg, pricing.Input{
		Items:                 items(1000, 1),
		Discount:              d,
		CreditsRequestedCents: 100000,
		CreditBalanceCents:    100000,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.TotalCents, int64(0))
	assert.GreaterOrEqual(t, q.CreditsCents, int64(0))
}

func TestPercentageRounding(t *testing.T) {
	// 10% of 1005 = 100.5 → rounds to 101.
	d := &store.DiscountCode{Code: "TEN", Type: store.DiscountPercentage, Value: 10, Active: true}
	q, err := pricing.Resolve(testCfg, pricing.Input{Items: items(1005, 1), Discount: d})
	require.NoError(t, err)
	assert.Equal(t, int64(101), q.DiscountCents)
}
