package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// Open connects to MySQL, runs migrations, and returns the store.
// TranslateError is required so unique-index violations surface as
// gorm.ErrDuplicatedKey, which the idempotency gate depends on.
func Open(dsn string, log *slog.Logger) (*SQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}
	if err := db.AutoMigrate(
		&Order{},
		&OrderItem{},
		&ProductVariant{},
		&DiscountCode{},
		&LoyaltyAccount{},
		&ReferralRelationship{},
		&ProcessedWebhookEvent{},
		&InventoryAdjustment{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	log.Info("connected to mysql")
	return &SQLStore{db: db}, nil
}

// NewSQL wraps an existing gorm handle (used by Transact).
func NewSQL(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewSQL(tx))
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}

func (s *SQLStore) CreateOrder(ctx context.Context, o *Order) error {
	return translate(s.db.WithContext(ctx).Create(o).Error)
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *SQLStore) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.db.WithContext(ctx).Preload("Items").Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *SQLStore) UpdateOrder(ctx context.Context, o *Order) error {
	return translate(s.db.WithContext(ctx).Save(o).Error)
}

func (s *SQLStore) GetVariant(ctx context.Context, id string) (*ProductVariant, error) {
	var v ProductVariant
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *SQLStore) CreateVariant(ctx context.Context, v *ProductVariant) error {
	return translate(s.db.WithContext(ctx).Create(v).Error)
}

func (s *SQLStore) UpdateVariant(ctx context.Context, v *ProductVariant) error {
	return translate(s.db.WithContext(ctx).Save(v).Error)
}

func (s *SQLStore) GetDiscountByCode(ctx context.Context, code string) (*DiscountCode, error) {
	var d DiscountCode
	err := s.db.WithContext(ctx).First(&d, "code = ?", NormalizeCode(code)).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *SQLStore) GetDiscount(ctx context.Context, id uint) (*DiscountCode, error) {
	var d DiscountCode
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *SQLStore) ListDiscounts(ctx context.Context) ([]DiscountCode, error) {
	var out []DiscountCode
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, translate(err)
}

func (s *SQLStore) CreateDiscount(ctx context.Context, d *DiscountCode) error {
	d.Code = NormalizeCode(d.Code)
	return translate(s.db.WithContext(ctx).Create(d).Error)
}

func (s *SQLStore) UpdateDiscount(ctx context.Context, d *DiscountCode) error {
	return translate(s.db.WithContext(ctx).Save(d).Error)
}

func (s *SQLStore) DeleteDiscount(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&DiscountCode{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CountCustomerRedemptions(ctx context.Context, discountID uint, userID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Order{}).
		Where("user_id = ? AND discount_code_id = ? AND payment_status = ?",
			userID, discountID, PaymentPaid).
		Count(&n).Error
	return int(n), translate(err)
}

func (s *SQLStore) GetLoyaltyAccount(ctx context.Context, userID string) (*LoyaltyAccount, error) {
	var a LoyaltyAccount
	if err := s.db.WithContext(ctx).First(&a, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *SQLStore) GetLoyaltyAccountByReferralCode(ctx context.Context, code string) (*LoyaltyAccount, error) {
	var a LoyaltyAccount
	if err := s.db.WithContext(ctx).First(&a, "referral_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *SQLStore) CreateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error {
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

func (s *SQLStore) UpdateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error {
	return translate(s.db.WithContext(ctx).Save(a).Error)
}

func (s *SQLStore) CreateReferral(ctx context.Context, r *ReferralRelationship) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *SQLStore) GetReferralByReferred(ctx context.Context, referredUserID string) (*ReferralRelationship, error) {
	var r ReferralRelationship
	err := s.db.WithContext(ctx).First(&r, "referred_user_id = ?", referredUserID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *SQLStore) UpdateReferral(ctx context.Context, r *ReferralRelationship) error {
	return translate(s.db.WithContext(ctx).Save(r).Error)
}

func (s *SQLStore) InsertProcessedEvent(ctx context.Context, e *ProcessedWebhookEvent) error {
	err := s.db.WithContext(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return translate(err)
}

func (s *SQLStore) CreateInventoryAdjustment(ctx context.Context, a *InventoryAdjustment) error {
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

func (s *SQLStore) ListInventoryAdjustments(ctx context.Context) ([]InventoryAdjustment, error) {
	var out []InventoryAdjustment
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, translate(err)
}
