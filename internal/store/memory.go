package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

func idKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// table is a generic, thread-safe in-memory table keeping insertion order
// for deterministic listing.
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]T)}
}

func (t *table[T]) set(id string, item T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[id]; !exists {
		t.order = append(t.order, id)
	}
	t.items[id] = item
}

// setIfAbsent stores the item only when the key is new. Returns false on
// conflict; this is the memory analogue of a unique-index violation.
func (t *table[T]) setIfAbsent(id string, item T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[id]; exists {
		return false
	}
	t.order = append(t.order, id)
	t.items[id] = item
	return true
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[id]
	return item, ok
}

func (t *table[T]) delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[id]; !exists {
		return false
	}
	delete(t.items, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) list() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

func (t *table[T]) find(pred func(T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.order {
		if pred(t.items[id]) {
			return t.items[id], true
		}
	}
	var zero T
	return zero, false
}

// MemoryStore is an in-memory Store used by tests and the -memory
// development mode. Transact serializes callers with a single mutex; there
// is no rollback, so a failed settlement leaves partial state (acceptable
// for a dev mode, the MySQL store is transactional).
type MemoryStore struct {
	txMu sync.Mutex

	orders      *table[Order]
	variants    *table[ProductVariant]
	discounts   *table[DiscountCode]
	accounts    *table[LoyaltyAccount]
	referrals   *table[ReferralRelationship]
	events      *table[ProcessedWebhookEvent]
	adjustments *table[InventoryAdjustment]

	discountCounter   atomic.Uint64
	referralCounter   atomic.Uint64
	eventCounter      atomic.Uint64
	adjustmentCounter atomic.Uint64
	itemCounter       atomic.Uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		orders:      newTable[Order](),
		variants:    newTable[ProductVariant](),
		discounts:   newTable[DiscountCode](),
		accounts:    newTable[LoyaltyAccount](),
		referrals:   newTable[ReferralRelationship](),
		events:      newTable[ProcessedWebhookEvent](),
		adjustments: newTable[InventoryAdjustment](),
	}
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = uint(s.itemCounter.Add(1))
		o.Items[i].OrderID = o.ID
	}
	if !s.orders.setIfAbsent(o.ID, *o) {
		return ErrDuplicateKey
	}
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, ok := s.orders.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]Order, error) {
	return s.orders.list(), nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, o *Order) error {
	if _, ok := s.orders.get(o.ID); !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders.set(o.ID, *o)
	return nil
}

func (s *MemoryStore) GetVariant(ctx context.Context, id string) (*ProductVariant, error) {
	v, ok := s.variants.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) CreateVariant(ctx context.Context, v *ProductVariant) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.UpdatedAt = v.CreatedAt
	if !s.variants.setIfAbsent(v.ID, *v) {
		return ErrDuplicateKey
	}
	return nil
}

func (s *MemoryStore) UpdateVariant(ctx context.Context, v *ProductVariant) error {
	if _, ok := s.variants.get(v.ID); !ok {
		return ErrNotFound
	}
	v.UpdatedAt = time.Now().UTC()
	s.variants.set(v.ID, *v)
	return nil
}

func (s *MemoryStore) GetDiscountByCode(ctx context.Context, code string) (*DiscountCode, error) {
	code = NormalizeCode(code)
	d, ok := s.discounts.find(func(d DiscountCode) bool { return d.Code == code })
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) GetDiscount(ctx context.Context, id uint) (*DiscountCode, error) {
	d, ok := s.discounts.get(idKey(id))
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDiscounts(ctx context.Context) ([]DiscountCode, error) {
	return s.discounts.list(), nil
}

func (s *MemoryStore) CreateDiscount(ctx context.Context, d *DiscountCode) error {
	d.Code = NormalizeCode(d.Code)
	if _, ok := s.discounts.find(func(x DiscountCode) bool { return x.Code == d.Code }); ok {
		return ErrDuplicateKey
	}
	d.ID = uint(s.discountCounter.Add(1))
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.UpdatedAt = d.CreatedAt
	s.discounts.set(idKey(d.ID), *d)
	return nil
}

func (s *MemoryStore) UpdateDiscount(ctx context.Context, d *DiscountCode) error {
	if _, ok := s.discounts.get(idKey(d.ID)); !ok {
		return ErrNotFound
	}
	d.Code = NormalizeCode(d.Code)
	// Mirror the unique index on code: a rename must not collide with
	// another row.
	if _, ok := s.discounts.find(func(x DiscountCode) bool { return x.Code == d.Code && x.ID != d.ID }); ok {
		return ErrDuplicateKey
	}
	d.UpdatedAt = time.Now().UTC()
	s.discounts.set(idKey(d.ID), *d)
	return nil
}

func (s *MemoryStore) DeleteDiscount(ctx context.Context, id uint) error {
	if _, ok := s.discounts.get(idKey(id)); !ok {
		return ErrNotFound
	}
	s.discounts.delete(idKey(id))
	return nil
}

func (s *MemoryStore) CountCustomerRedemptions(ctx context.Context, discountID uint, userID string) (int, error) {
	n := 0
	for _, o := range s.orders.list() {
		if o.UserID == userID && o.PaymentStatus == PaymentPaid &&
			o.DiscountCodeID != nil && *o.DiscountCodeID == discountID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetLoyaltyAccount(ctx context.Context, userID string) (*LoyaltyAccount, error) {
	a, ok := s.accounts.get(userID)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) GetLoyaltyAccountByReferralCode(ctx context.Context, code string) (*LoyaltyAccount, error) {
	a, ok := s.accounts.find(func(a LoyaltyAccount) bool { return a.ReferralCode == code })
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) CreateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error {
	if _, ok := s.accounts.find(func(x LoyaltyAccount) bool { return x.ReferralCode == a.ReferralCode }); ok {
		return ErrDuplicateKey
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	if !s.accounts.setIfAbsent(a.UserID, *a) {
		return ErrDuplicateKey
	}
	return nil
}

func (s *MemoryStore) UpdateLoyaltyAccount(ctx context.Context, a *LoyaltyAccount) error {
	if _, ok := s.accounts.get(a.UserID); !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	s.accounts.set(a.UserID, *a)
	return nil
}

func (s *MemoryStore) CreateReferral(ctx context.Context, r *ReferralRelationship) error {
	r.ID = uint(s.referralCounter.Add(1))
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if !s.referrals.setIfAbsent(r.ReferredUserID, *r) {
		return ErrDuplicateKey
	}
	return nil
}

func (s *MemoryStore) GetReferralByReferred(ctx context.Context, referredUserID string) (*ReferralRelationship, error) {
	r, ok := s.referrals.get(referredUserID)
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) UpdateReferral(ctx context.Context, r *ReferralRelationship) error {
	if _, ok := s.referrals.get(r.ReferredUserID); !ok {
		return ErrNotFound
	}
	s.referrals.set(r.ReferredUserID, *r)
	return nil
}

func (s *MemoryStore) InsertProcessedEvent(ctx context.Context, e *ProcessedWebhookEvent) error {
	e.ID = uint(s.eventCounter.Add(1))
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if !s.events.setIfAbsent(e.EventID, *e) {
		return ErrDuplicateEvent
	}
	return nil
}

func (s *MemoryStore) CreateInventoryAdjustment(ctx context.Context, a *InventoryAdjustment) error {
	a.ID = uint(s.adjustmentCounter.Add(1))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.adjustments.set(idKey(a.ID), *a)
	return nil
}

func (s *MemoryStore) ListInventoryAdjustments(ctx context.Context) ([]InventoryAdjustment, error) {
	return s.adjustments.list(), nil
}
