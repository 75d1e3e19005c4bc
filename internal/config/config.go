// Package config loads the storefront service configuration from a YAML
// file, with defaults and environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/optimalsupps/storefront/internal/pricing"
	"github.com/optimalsupps/storefront/internal/referral"
)

// Config is the full service configuration.
type Config struct {
	ListenPort     int    `yaml:"listen_port"`
	DatabaseDSN    string `yaml:"database_dsn"`
	WebhookSecret  string `yaml:"webhook_secret"`
	AdminJWTSecret string `yaml:"admin_jwt_secret"`

	Pricing  pricing.Config  `yaml:"pricing"`
	Referral referral.Config `yaml:"referral"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenPort: 8080,
		Pricing: pricing.Config{
			Version:                     "default",
			SubscriptionDiscountPercent: 15,
			FreeShippingThresholdCents:  7500,
			FlatShippingCents:           595,
			TaxRate:                     0.08,
		},
		Referral: referral.Config{
			CreditCents: 1000,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults. Secrets
// may also come from STOREFRONT_WEBHOOK_SECRET, STOREFRONT_ADMIN_JWT_SECRET,
// and STOREFRONT_DATABASE_DSN.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("STOREFRONT_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("STOREFRONT_ADMIN_JWT_SECRET"); v != "" {
		cfg.AdminJWTSecret = v
	}
	if v := os.Getenv("STOREFRONT_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("pricing.tax_rate %v out of range", c.Pricing.TaxRate)
	}
	if c.Pricing.SubscriptionDiscountPercent < 0 || c.Pricing.SubscriptionDiscountPercent > 100 {
		return fmt.Errorf("pricing.subscription_discount_percent %d out of range",
			c.Pricing.SubscriptionDiscountPercent)
	}
	if c.Referral.CreditCents < 0 {
		return fmt.Errorf("referral.credit_cents must not be negative")
	}
	return nil
}
