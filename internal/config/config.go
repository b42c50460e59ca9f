package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Export   ExportConfig   `mapstructure:"export"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the migrations compiled into the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// PricingConfig holds currency settings for benchmark pricing
type PricingConfig struct {
	LocalCurrency  string             `mapstructure:"local_currency"`
	RoundingPlaces int                `mapstructure:"rounding_places"`
	Rates          map[string]float64 `mapstructure:"rates"` // "EUR_MGA: 4850"
}

// ExportConfig holds quote workbook settings
type ExportConfig struct {
	OutputDir              string `mapstructure:"output_dir"`
	CompanyName            string `mapstructure:"company_name"`
	ArchiveOnConsolidation bool   `mapstructure:"archive_on_consolidation"`
}

// LarkConfig holds Lark messaging configuration
type LarkConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	BaseURL      string `mapstructure:"base_url"`
	NotifyChatID string `mapstructure:"notify_chat_id"`
	// RequestTimeout bounds each call to the open platform
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. An empty
// configPath runs on defaults and environment only. A .env file in the working
// directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Pricing.LocalCurrency = strings.ToUpper(strings.TrimSpace(cfg.Pricing.LocalCurrency))

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of a dotenv file without overriding the
// ones already set in the process environment
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/backoffice.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.migrations_dir", "")

	// Pricing defaults
	v.SetDefault("pricing.local_currency", "MGA")
	v.SetDefault("pricing.rounding_places", 2)

	// Export defaults
	v.SetDefault("export.output_dir", "data/quotes")
	v.SetDefault("export.company_name", "Travel Back Office")
	v.SetDefault("export.archive_on_consolidation", true)

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.base_url", "")
	v.SetDefault("lark.request_timeout", 10*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		// Sensitive credentials from environment
		"lark.app_id":         "LARK_APP_ID",
		"lark.app_secret":     "LARK_APP_SECRET",
		"lark.notify_chat_id": "LARK_NOTIFY_CHAT_ID",

		"database.path":          "DATABASE_PATH",
		"pricing.local_currency": "LOCAL_CURRENCY",
		"export.company_name":    "COMPANY_NAME",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports every invalid setting, not only the first
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		fail("database.path is required")
	}

	if len(c.Pricing.LocalCurrency) != 3 {
		fail("pricing.local_currency must be a 3-letter code, got %q", c.Pricing.LocalCurrency)
	}
	if c.Pricing.RoundingPlaces < 0 || c.Pricing.RoundingPlaces > 6 {
		fail("pricing.rounding_places must be between 0 and 6")
	}
	for pair, rate := range c.Pricing.Rates {
		if rate <= 0 {
			fail("pricing.rates.%s must be positive", pair)
		}
	}

	if c.Export.OutputDir == "" {
		fail("export.output_dir is required")
	}

	// credentials only matter when notifications are on
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			fail("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			fail("lark.app_secret is required")
		}
		if c.Lark.NotifyChatID == "" {
			fail("lark.notify_chat_id is required")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		fail("metrics.path must start with /")
	}

	switch c.Logger.Format {
	case "", "json", "console":
	default:
		fail("logger.format must be json or console, got %q", c.Logger.Format)
	}

	return errors.Join(errs...)
}
