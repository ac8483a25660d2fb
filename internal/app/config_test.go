package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/order-service/internal/broker"
)

// clearPlatformEnv isolates a test from variables set on the host.
func clearPlatformEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "PRODUCT_SERVICE_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func testLoad(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{
		EnvPrefix: "ORDERS",
		SkipFiles: true,
		SkipFlags: true,
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("ORDERS_DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("ORDERS_CATALOG_URL", "http://catalog:3001")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8003", cfg.Addr)
	assert.Equal(t, "orders", cfg.Topic)
	assert.True(t, cfg.Migrate)
	assert.False(t, cfg.Catalog.SplitErrors)
	assert.Equal(t, broker.DriverKafka, cfg.Broker.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Zero(t, cfg.Broker.PublishTimeout)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
}

func TestLoadConfig_PlatformFallbacks(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db/orders")
	t.Setenv("PRODUCT_SERVICE_URL", "http://product-service:3001")
	t.Setenv("PORT", "9000")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/orders", cfg.DatabaseURL)
	assert.Equal(t, "http://product-service:3001", cfg.Catalog.URL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_PrefixedWins(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DATABASE_URL", "postgres://platform/orders")
	t.Setenv("ORDERS_DATABASE_URL", "postgres://explicit/orders")
	t.Setenv("ORDERS_CATALOG_URL", "http://catalog:3001")
	t.Setenv("ORDERS_BROKER_DRIVER", "nats")
	t.Setenv("ORDERS_CATALOG_SPLIT_ERRORS", "true")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://explicit/orders", cfg.DatabaseURL)
	assert.Equal(t, broker.DriverNATS, cfg.Broker.Driver)
	assert.True(t, cfg.Catalog.SplitErrors)
}

func TestLoadConfig_Required(t *testing.T) {
	clearPlatformEnv(t)
	t.Run("database", func(t *testing.T) {
		t.Setenv("ORDERS_CATALOG_URL", "http://catalog:3001")
		_, err := testLoad(t)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database URL")
	})
	t.Run("catalog", func(t *testing.T) {
		t.Setenv("ORDERS_DATABASE_URL", "postgres://localhost/orders")
		_, err := testLoad(t)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "product service URL")
	})
}

func TestLoadConfig_InvalidBroker(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("ORDERS_DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("ORDERS_CATALOG_URL", "http://catalog:3001")
	t.Setenv("ORDERS_BROKER_DRIVER", "rabbitmq")

	_, err := testLoad(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
}
