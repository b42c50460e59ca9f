package config

import (
	"maps"

	"github.com/garyjia/travel-backoffice/internal/container"
)

// ToContainerConfig projects the file configuration onto what the container
// builds. Server, metrics and logger settings stay with the caller.
func (c *Config) ToContainerConfig() *container.Config {
	rates := maps.Clone(c.Pricing.Rates)
	if rates == nil {
		rates = map[string]float64{}
	}

	return &container.Config{
		Database: container.DatabaseConfig(c.Database),
		Pricing: container.PricingConfig{
			LocalCurrency: c.Pricing.LocalCurrency,
			Rates:         rates,
		},
		Storage: container.StorageConfig{
			OutputDir:              c.Export.OutputDir,
			CompanyName:            c.Export.CompanyName,
			RoundingPlaces:         c.Pricing.RoundingPlaces,
			ArchiveOnConsolidation: c.Export.ArchiveOnConsolidation,
		},
		Lark: container.LarkConfig(c.Lark),
	}
}
