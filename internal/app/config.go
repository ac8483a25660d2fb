package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/order-service/internal/broker"
)

const defaultAddr = "0.0.0.0:8003"

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8003" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Migrate     bool   `default:"true" usage:"Apply pending migrations on startup"`
	Topic       string `default:"orders" usage:"Broker topic for order events"`
	Catalog     CatalogConfig
	Broker      broker.Config
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// CatalogConfig points at the product service.
type CatalogConfig struct {
	URL         string `usage:"Product service base URL (ORDERS_CATALOG_URL or PRODUCT_SERVICE_URL)"`
	SplitErrors bool   `default:"false" usage:"Report unknown products as 422 and catalog outages as 503"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"50" usage:"Sustained requests per second per client, 0 disables"`
	Burst int     `default:"100" usage:"Requests a client may burst above RPS"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}
	if c.Catalog.URL == "" {
		return errors.New("product service URL is required: set ORDERS_CATALOG_URL or PRODUCT_SERVICE_URL")
	}
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	if c.RateLimit.RPS < 0 {
		return errors.New("rate limit rps cannot be negative")
	}
	if err := c.Broker.Validate(); err != nil {
		return errors.Wrap(err, "broker")
	}
	return nil
}

// applyPlatformDefaults maps the unprefixed variables set by hosting
// platforms and docker-compose files onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Catalog.URL == "" {
		c.Catalog.URL = os.Getenv("PRODUCT_SERVICE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
