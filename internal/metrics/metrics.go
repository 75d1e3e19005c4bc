// Package metrics defines the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSettled counts orders finalized by payment webhooks, by outcome.
	OrdersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_settled_total",
		Help: "Orders settled via payment webhooks.",
	}, []string{"outcome"})

	// DuplicateWebhooks counts redelivered webhook events absorbed by the
	// idempotency gate.
	DuplicateWebhooks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_webhook_duplicates_total",
		Help: "Webhook events skipped as already processed.",
	})

	// StockUnderflows counts settlements that drove a variant's stock
	// negative.
	StockUnderflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_underflows_total",
		Help: "Inventory decrements that drove stock below zero.",
	})

	// InvalidDiscounts counts discount codes rejected at quote time.
	InvalidDiscounts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_invalid_discounts_total",
		Help: "Discount codes rejected during checkout.",
	})
)
