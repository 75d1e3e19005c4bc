// Package store defines the storefront's persisted data model and the
// Store interface, with a MySQL (gorm) implementation and an in-memory
// implementation used by tests and the -memory development mode.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/optimalsupps/storefront/internal/loyalty"
)

// PaymentStatus is the payment lifecycle state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// FulfillmentStatus is the fulfillment lifecycle state of an order.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
	FulfillmentRefunded   FulfillmentStatus = "refunded"
)

// fulfillmentTransitions is the directed graph of allowed status moves.
// Delivered, cancelled, and refunded are terminal.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:    {FulfillmentDelivered, FulfillmentCancelled},
}

// ErrInvalidTransition is returned when a fulfillment status move is not an
// edge of the transition graph.
var ErrInvalidTransition = errors.New("invalid fulfillment status transition")

// CanTransition reports whether from → to is an allowed fulfillment move.
func CanTransition(from, to FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a customer order. Created pending at checkout, settled by the
// payment webhook, and moved through fulfillment by the admin console.
// Immutable once delivered or cancelled.
type Order struct {
	ID                string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID            string            `gorm:"type:varchar(36);index" json:"user_id"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID" json:"items"`
	SubtotalCents     int64             `json:"subtotal_cents"`
	ShippingCents     int64             `json:"shipping_cents"`
	TaxCents          int64             `json:"tax_cents"`
	DiscountCents     int64             `json:"discount_cents"`
	CreditsCents      int64             `json:"credits_cents"`
	TotalCents        int64             `json:"total_cents"`
	DiscountCodeID    *uint             `json:"discount_code_id,omitempty"`
	Subscription      bool              `json:"subscription"`
	PaymentStatus     PaymentStatus     `gorm:"type:varchar(16);index" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:varchar(16);index" json:"fulfillment_status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Transition moves the order's fulfillment status along the graph.
func (o *Order) Transition(to FulfillmentStatus) error {
	if !CanTransition(o.FulfillmentStatus, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, o.FulfillmentStatus, to)
	}
	o.FulfillmentStatus = to
	return nil
}

// Terminal reports whether the order is in a terminal fulfillment state.
func (o *Order) Terminal() bool {
	return len(fulfillmentTransitions[o.FulfillmentStatus]) == 0
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrderID        string `gorm:"type:varchar(36);index" json:"order_id"`
	VariantID      string `gorm:"type:varchar(36)" json:"variant_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// ProductVariant is a sellable variant of a product.
type ProductVariant struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name           string    `gorm:"type:varchar(191)" json:"name"`
	PriceCents     int64     `json:"price_cents"`
	CompareAtCents int64     `json:"compare_at_cents"`
	StockQuantity  int64     `json:"stock_quantity"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DiscountType discriminates the two discount variants.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether the type is a known variant.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// DiscountCode is a redeemable discount. Codes are stored uppercase and
// matched case-insensitively. Value is a percent for percentage codes and
// cents for fixed codes.
type DiscountCode struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	Code             string       `gorm:"type:varchar(64);uniqueIndex" json:"code"`
	Type             DiscountType `gorm:"type:varchar(16)" json:"type"`
	Value            int64        `json:"value"`
	MinSubtotalCents int64        `json:"min_subtotal_cents"`
	// MaxRedemptions caps total uses; 0 means unlimited. MaxPerCustomer
	// caps uses per customer; 0 means unlimited.
	MaxRedemptions int        `json:"max_redemptions"`
	MaxPerCustomer int        `json:"max_per_customer"`
	TimesRedeemed  int        `json:"times_redeemed"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NormalizeCode uppercases and trims a customer-entered discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LoyaltyAccount tracks a customer's points, tier, referral code, and
// referral credit balance. Tier is always TierFor(LifetimePoints).
type LoyaltyAccount struct {
	UserID             string       `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	LifetimePoints     int64        `json:"lifetime_points"`
	PointsBalance      int64        `json:"points_balance"`
	Tier               loyalty.Tier `gorm:"type:varchar(16)" json:"tier"`
	ReferralCode       string       `gorm:"type:varchar(16);uniqueIndex" json:"referral_code"`
	CreditBalanceCents int64        `json:"credit_balance_cents"`
	ReferralCount      int          `json:"referral_count"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// AddPoints adds to lifetime points and the spendable balance, then
// recomputes the tier from the new lifetime total.
func (a *LoyaltyAccount) AddPoints(points int64) {
	if points <= 0 {
		return
	}
	a.LifetimePoints += points
	a.PointsBalance += points
	a.Tier = loyalty.TierFor(a.LifetimePoints)
}

// ReferralRelationship links a referred user to the referrer's code.
// Created at signup; credited on the referred user's first paid order.
type ReferralRelationship struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ReferrerCode   string     `gorm:"type:varchar(16);index" json:"referrer_code"`
	ReferredUserID string     `gorm:"type:varchar(36);uniqueIndex" json:"referred_user_id"`
	CreditCents    int64      `json:"credit_cents"`
	Credited       bool       `json:"credited"`
	CreditedAt     *time.Time `json:"credited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ProcessedWebhookEvent is the idempotency marker for settlement. The
// unique index on EventID is the mutual-exclusion gate: the insert either
// succeeds (first delivery) or fails with a duplicate-key error (redelivery).
type ProcessedWebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(191);uniqueIndex" json:"event_id"`
	EventType string    `gorm:"type:varchar(64)" json:"event_type"`
	Synthetic bool      `json:"synthetic"`
	CreatedAt time.Time `json:"created_at"`
}

// InventoryAdjustment is the audit record for a settlement stock change.
type InventoryAdjustment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        string    `gorm:"type:varchar(36);index" json:"order_id"`
	VariantID      string    `gorm:"type:varchar(36);index" json:"variant_id"`
	EventID        string    `gorm:"type:varchar(191)" json:"event_id"`
	Delta          int64     `json:"delta"`
	ResultingStock int64     `json:"resulting_stock"`
	Underflow      bool      `json:"underflow"`
	Reason         string    `gorm:"type:varchar(64)" json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}
