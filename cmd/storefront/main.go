// storefront is the supplement store's backend service: checkout pricing,
// loyalty and referral programs, payment webhook settlement, and the admin
// back-office API.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/optimalsupps/storefront/internal/api"
	"github.com/optimalsupps/storefront/internal/config"
	"github.com/optimalsupps/storefront/internal/httpx"
	"github.com/optimalsupps/storefront/internal/referral"
	"github.com/optimalsupps/storefront/internal/settlement"
	"github.com/optimalsupps/storefront/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		port       = flag.Int("port", 0, "HTTP listen port (overrides config)")
		memory     = flag.Bool("memory", false, "Use the in-memory store with seed data (development)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *port != 0 {
		cfg.ListenPort = *port
	}

	logger := httpx.NewLogger(*verbose)

	var st store.Store
	if *memory {
		mem := store.NewMemory()
		if err := seed(mem); err != nil {
			log.Fatalf("seeding memory store: %v", err)
		}
		logger.Info("using in-memory store with seed data")
		st = mem
	} else {
		if cfg.DatabaseDSN == "" {
			log.Fatal("database_dsn is required (or run with -memory)")
		}
		sql, err := store.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			log.Fatalf("opening store: %v", err)
		}
		st = sql
	}

	ledger := referral.NewLedger(cfg.Referral, logger)
	settler := settlement.New(st, ledger, cfg.WebhookSecret, logger)

	router := httpx.NewRouter(logger)
	handler := api.NewHandler(st, settler, ledger, cfg, logger)
	handler.Routes(router)

	logger.Info("storefront ready",
		"port", cfg.ListenPort,
		"pricing_version", cfg.Pricing.Version,
	)
	if err := httpx.Serve(cfg.ListenPort, router, logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// seed populates the memory store with development fixtures.
func seed(st store.Store) error {
	ctx := context.Background()

	variants := []store.ProductVariant{
		{ID: "var-whey-van", Name: "Whey Protein Vanilla", PriceCents: 4999, CompareAtCents: 5999, StockQuantity: 120, Active: true},
		{ID: "var-whey-choc", Name: "Whey Protein Chocolate", PriceCents: 4999, CompareAtCents: 5999, StockQuantity: 85, Active: true},
		{ID: "var-creatine", Name: "Creatine Monohydrate", PriceCents: 2999, StockQuantity: 200, Active: true},
		{ID: "var-omega3", Name: "Omega-3 Fish Oil", PriceCents: 2499, StockQuantity: 3, Active: true},
		{ID: "var-retired", Name: "Discontinued Pre-Workout", PriceCents: 3499, StockQuantity: 0, Active: false},
	}
	for i := range variants {
		if err := st.CreateVariant(ctx, &variants[i]); err != nil {
			return err
		}
	}

	discounts := []store.DiscountCode{
		{Code: "WELCOME10", Type: store.DiscountPercentage, Value: 10, Active: true},
		{Code: "SAVE5", Type: store.DiscountFixed, Value: 500, MinSubtotalCents: 3000, Active: true},
		{Code: "VIP20", Type: store.DiscountPercentage, Value: 20, MaxRedemptions: 100, MaxPerCustomer: 1, Active: true},
	}
	for i := range discounts {
		if err := st.CreateDiscount(ctx, &discounts[i]); err != nil {
			return err
		}
	}

	return nil
}
