// Package container wires the back office's layers together and owns their
// start-up and shutdown order.
package container

import (
	"errors"
	"time"
)

// Config is what the container needs to build its components. The HTTP
// server is configured separately by the caller.
type Config struct {
	Database DatabaseConfig
	Pricing  PricingConfig
	Storage  StorageConfig
	Lark     LarkConfig
}

// DatabaseConfig locates the SQLite file and sizes its pool
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// PricingConfig fixes the billing currency and seeds the rate table.
// Rates keys are "FROM_TO" pairs.
type PricingConfig struct {
	LocalCurrency string
	Rates         map[string]float64
}

// StorageConfig drives the document store and the workbook layout
type StorageConfig struct {
	OutputDir              string
	CompanyName            string
	RoundingPlaces         int
	ArchiveOnConsolidation bool
}

// LarkConfig enables chat notifications
type LarkConfig struct {
	Enabled        bool
	AppID          string
	AppSecret      string
	BaseURL        string
	NotifyChatID   string
	RequestTimeout time.Duration
}

// DefaultConfig returns a Config for a local single-node run
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/backoffice.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Pricing: PricingConfig{
			LocalCurrency: "MGA",
			Rates:         map[string]float64{},
		},
		Storage: StorageConfig{
			OutputDir:              "data/quotes",
			CompanyName:            "Travel Back Office",
			RoundingPlaces:         2,
			ArchiveOnConsolidation: true,
		},
	}
}

// Validate reports every missing value at once
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Pricing.LocalCurrency == "" {
		errs = append(errs, errors.New("local currency is required"))
	}
	if c.Storage.OutputDir == "" {
		errs = append(errs, errors.New("document output directory is required"))
	}
	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			errs = append(errs, errors.New("lark credentials are required when lark is enabled"))
		}
		if c.Lark.NotifyChatID == "" {
			errs = append(errs, errors.New("lark notify chat id is required when lark is enabled"))
		}
	}
	return errors.Join(errs...)
}
