// Package settlement consumes payment processor webhook events and applies
// the exactly-once mutations of order settlement: payment status, inventory,
// discount usage, referral credits, and loyalty points.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/optimalsupps/storefront/internal/loyalty"
	"github.com/optimalsupps/storefront/internal/metrics"
	"github.com/optimalsupps/storefront/internal/referral"
	"github.com/optimalsupps/storefront/internal/store"
)

// Event types accepted from the payment processor. Anything else is
// acknowledged and ignored.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// TestEventPrefix marks synthetic events. They skip signature verification
// and are recorded as synthetic in the processed-event marker.
const TestEventPrefix = "evt_test_"

var (
	ErrBadEnvelope  = errors.New("malformed webhook envelope")
	ErrUnknownOrder = errors.New("webhook references unknown order")
)

// Envelope is the processor's event wrapper.
type Envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// paymentData is the payload of all payment.* events.
type paymentData struct {
	OrderID string `json:"order_id"`
}

// Result reports what a delivery did.
type Result struct {
	EventID   string `json:"event_id"`
	OrderID   string `json:"order_id,omitempty"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored"`
}

// Settler applies webhook settlement against a store.
type Settler struct {
	store     store.Store
	ledger    *referral.Ledger
	secret    string
	tolerance time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Settler. The secret signs inbound webhooks.
func New(st store.Store, ledger *referral.Ledger, secret string, log *slog.Logger) *Settler {
	return &Settler{
		store:     st,
		ledger:    ledger,
		secret:    secret,
		tolerance: DefaultTolerance,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one webhook delivery. Redelivered events return a
// duplicate result and no error. Persistence failures roll the settlement
// back and propagate so the processor redelivers.
func (s *Settler) Process(ctx context.Context, payload []byte, sigHeader string) (Result, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if env.ID == "" || env.Type == "" {
		return Result{}, fmt.Errorf("%w: missing id or type", ErrBadEnvelope)
	}

	synthetic := strings.HasPrefix(env.ID, TestEventPrefix)
	if !synthetic {
		if err := VerifySignature(payload, sigHeader, s.secret, s.now(), s.tolerance); err != nil {
			return Result{}, err
		}
	}

	res := Result{EventID: env.ID}

	switch env.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentRefunded:
	default:
		s.log.Info("ignoring webhook event", "event_id", env.ID, "type", env.Type)
		res.Ignored = true
		return res, nil
	}

	var data paymentData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.OrderID == "" {
		return Result{}, fmt.Errorf("%w: missing order_id", ErrBadEnvelope)
	}
	res.OrderID = data.OrderID

	err := s.store.Transact(ctx, func(st store.Store) error {
		// The unique index on event_id is the idempotency gate: insert
		// first and treat a duplicate-key violation as the redelivery
		// signal, so concurrent deliveries cannot both settle.
		marker := &store.ProcessedWebhookEvent{
			EventID:   env.ID,
			EventType: env.Type,
			Synthetic: synthetic,
		}
		if err := st.InsertProcessedEvent(ctx, marker); err != nil {
			if errors.Is(err, store.ErrDuplicateEvent) {
				res.Duplicate = true
				return nil
			}
			return fmt.Errorf("recording webhook event: %w", err)
		}

		order, err := st.GetOrder(ctx, data.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownOrder, data.OrderID)
		}
		if err != nil {
			return fmt.Errorf("loading order: %w", err)
		}

		// Orders in a terminal fulfillment state are immutable. A late or
		// racing event (say payment.succeeded after an admin cancellation)
		// is acknowledged so the processor stops redelivering, and flagged
		// for manual reconciliation.
		if order.Terminal() {
			s.log.Warn("webhook for terminal order, skipping",
				"order_id", order.ID, "event_id", env.ID, "type", env.Type,
				"fulfillment_status", order.FulfillmentStatus)
			metrics.OrdersSettled.WithLabelValues("skipped_terminal").Inc()
			res.Ignored = true
			return nil
		}

		switch env.Type {
		case EventPaymentSucceeded:
			if err := s.settlePaid(ctx, st, order, env.ID); err != nil {
				return err
			}
		case EventPaymentFailed:
			// Only a pending payment can fail; a failure delivered after
			// the order settled must not claw anything back here.
			if order.PaymentStatus != store.PaymentPending {
				s.log.Warn("payment.failed for settled order, skipping",
					"order_id", order.ID, "event_id", env.ID,
					"payment_status", order.PaymentStatus)
				res.Ignored = true
				return nil
			}
			order.PaymentStatus = store.PaymentFailed
			if err := st.UpdateOrder(ctx, order); err != nil {
				return fmt.Errorf("marking order failed: %w", err)
			}
			metrics.OrdersSettled.WithLabelValues("failed").Inc()
		case EventPaymentRefunded:
			order.PaymentStatus = store.PaymentRefunded
			// A refund before shipment also closes out fulfillment.
			if order.FulfillmentStatus == store.FulfillmentPending ||
				order.FulfillmentStatus == store.FulfillmentProcessing {
				order.FulfillmentStatus = store.FulfillmentRefunded
			}
			if err := st.UpdateOrder(ctx, order); err != nil {
				return fmt.Errorf("marking order refunded: %w", err)
			}
			metrics.OrdersSettled.WithLabelValues("refunded").Inc()
		}
		res.Processed = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Duplicate {
		metrics.DuplicateWebhooks.Inc()
		s.log.Info("duplicate webhook event, skipping", "event_id", env.ID)
	}
	return res, nil
}

// settlePaid applies the paid-order mutations: payment status, inventory
// decrement with audit records, discount usage, credit debit, loyalty
// points, and the first-order referral credit.
func (s *Settler) settlePaid(ctx context.Context, st store.Store, order *store.Order, eventID string) error {
	if order.PaymentStatus == store.PaymentPaid {
		s.log.Warn("order already paid, skipping settlement",
			"order_id", order.ID, "event_id", eventID)
		return nil
	}

	now := s.now()
	order.PaymentStatus = store.PaymentPaid
	if err := st.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("marking order paid: %w", err)
	}

	for _, item := range order.Items {
		if err := s.decrementStock(ctx, st, order.ID, eventID, item); err != nil {
			return err
		}
	}

	if order.DiscountCodeID != nil {
		if err := s.redeemDiscount(ctx, st, *order.DiscountCodeID); err != nil {
			return err
		}
	}

	account, err := st.GetLoyaltyAccount(ctx, order.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Guest checkout: no points, no credits to debit.
		s.log.Info("no loyalty account for order", "order_id", order.ID, "user_id", order.UserID)
	case err != nil:
		return fmt.Errorf("loading loyalty account: %w", err)
	default:
		if order.CreditsCents > 0 {
			account.CreditBalanceCents -= order.CreditsCents
			if account.CreditBalanceCents < 0 {
				s.log.Warn("credit balance went negative on settlement",
					"user_id", order.UserID, "balance", account.CreditBalanceCents)
				account.CreditBalanceCents = 0
			}
		}
		// Points use the tier in effect before this order's points land.
		account.AddPoints(loyalty.PointsForOrder(order.TotalCents, account.Tier))
		if err := st.UpdateLoyaltyAccount(ctx, account); err != nil {
			return fmt.Errorf("updating loyalty account: %w", err)
		}
	}

	if err := s.ledger.CreditFirstOrder(ctx, st, order.UserID, now); err != nil {
		return err
	}

	metrics.OrdersSettled.WithLabelValues("paid").Inc()
	s.log.Info("order settled", "order_id", order.ID, "event_id", eventID,
		"total_cents", order.TotalCents)
	return nil
}

// decrementStock lowers the variant's stock and writes the audit record.
// Stock may go negative: payment has already been captured, so overselling
// is flagged for reconciliation instead of blocking settlement.
func (s *Settler) decrementStock(ctx context.Context, st store.Store, orderID, eventID string, item store.OrderItem) error {
	variant, err := st.GetVariant(ctx, item.VariantID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Warn("variant missing during settlement",
			"order_id", orderID, "variant_id", item.VariantID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading variant %s: %w", item.VariantID, err)
	}

	variant.StockQuantity -= item.Quantity
	underflow := variant.StockQuantity < 0
	if err := st.UpdateVariant(ctx, variant); err != nil {
		return fmt.Errorf("decrementing stock for %s: %w", item.VariantID, err)
	}

	adj := &store.InventoryAdjustment{
		OrderID:        orderID,
		VariantID:      item.VariantID,
		EventID:        eventID,
		Delta:          -item.Quantity,
		ResultingStock: variant.StockQuantity,
		Underflow:      underflow,
		Reason:         "order_settlement",
	}
	if err := st.CreateInventoryAdjustment(ctx, adj); err != nil {
		return fmt.Errorf("recording inventory adjustment: %w", err)
	}

	if underflow {
		metrics.StockUnderflows.Inc()
		s.log.Warn("stock underflow",
			"variant_id", item.VariantID, "order_id", orderID,
			"resulting_stock", variant.StockQuantity)
	}
	return nil
}

func (s *Settler) redeemDiscount(ctx context.Context, st store.Store, discountID uint) error {
	d, err := st.GetDiscount(ctx, discountID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Warn("discount missing during settlement", "discount_id", discountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading discount: %w", err)
	}
	d.TimesRedeemed++
	if err := st.UpdateDiscount(ctx, d); err != nil {
		return fmt.Errorf("incrementing discount usage: %w", err)
	}
	return nil
}
