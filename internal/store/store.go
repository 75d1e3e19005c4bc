package store

import (
	"context"
	"errors"
)

// Sentinel errors shared by both store implementations.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrDuplicateEvent = errors.New("webhook event already processed")
)

// Store is the persistence boundary for the storefront core.
type Store interface {
	// Transact runs fn against a transactional view of the store. If fn
	// returns an error every write inside it is rolled back.
	Transact(ctx context.Context, fn func(Store) error) error

	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrder(ctx context.Context, o *Order) error

	GetVariant(ctx context.Context, id string) (*ProductVariant, error)
	CreateVariant(ctx context.Context, v *ProductVariant) error
	UpdateVariant(ctx context.Context, v *ProductVariant) error

	GetDiscountByCode(ctx context.Context, code string) (*DiscountCode, error)
	GetDiscount(ctx context.Context, id uint) (*DiscountCode, error)
	ListDiscounts(ctx context.Context) ([]DiscountCode, error)
	CreateDiscount(ctx context.Context, d *DiscountCode) error
	UpdateDiscount(ctx context.Context, d *DiscountCode) error
	DeleteDiscount(ctx context.Context, id uint) error
	// CountCustomerRedemptions counts this customer's paid orders that
	// redeemed the given discount.
	CountCustomerRedemptions(ctx context.Context, discountID uint, userID string) (int, error)

	GetLoyaltyAccount(ctx context.Context, userID string) (*LoyaltyAccount, error)
	GetLoyaltyAccountByReferralCode(ctx context.Context, code string) (*LoyaltyAccount, error)
	CreateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error
	UpdateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error

	CreateReferral(ctx context.Context, r *ReferralRelationship) error
	GetReferralByReferred(ctx context.Context, referredUserID string) (*ReferralRelationship, error)
	UpdateReferral(ctx context.Context, r *ReferralRelationship) error

	// InsertProcessedEvent records the idempotency marker for a webhook
	// event. Returns ErrDuplicateEvent if the event ID was already
	// recorded, relying on the unique index rather than a prior read.
	InsertProcessedEvent(ctx context.Context, e *ProcessedWebhookEvent) error

	CreateInventoryAdjustment(ctx context.Context, a *InventoryAdjustment) error
	ListInventoryAdjustments(ctx context.Context) ([]InventoryAdjustment, error)
}
