package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	pkgconfig "github.com/wekeepgrowing/paper-n-print-billing/pkg/config"
	"github.com/wekeepgrowing/paper-n-print-billing/pkg/logger"
)

// ServiceName is used as the env prefix (BILLING_*) and default config file name.
const ServiceName = "billing"

type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Log          logger.Config      `yaml:"log"`
	JWT          JWTConfig          `yaml:"jwt"`
	Stripe       StripeConfig       `yaml:"stripe"`
	Billing      BillingConfig      `yaml:"billing"`
	Notification NotificationConfig `yaml:"notification"`
	Storage      StorageConfig      `yaml:"storage"`

	// Tiers is loaded from Billing.TiersPath, not from the main file.
	Tiers *TierCatalog `yaml:"-"`
}

// LoadConfig reads .env, the yaml config at CONFIG_PATH and BILLING_* overrides.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/billing.yaml"
	}

	var cfg Config
	if err := pkgconfig.Load(pkgconfig.Source{ServiceName: ServiceName, Path: configPath}, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	tiers, err := LoadTierCatalog(cfg.Billing.TiersPath)
	if err != nil {
		return nil, err
	}
	cfg.Tiers = tiers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints on the loaded config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = ServiceName
	}
	c.Database.applyDefaults()
	c.Server.applyDefaults()
	c.Stripe.applyDefaults()
	c.Billing.applyDefaults()
	if c.Notification.Driver == "" {
		c.Notification.Driver = NotifierNoop
	}
	if c.Notification.Redis.Channel == "" {
		c.Notification.Redis.Channel = "billing.notifications"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageInline
	}
}
