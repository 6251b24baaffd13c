package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Sale.StoreTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/retail.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadEnv()

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/retail.db", cfg.Database.SQLite.Path)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Sale.StoreTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestValidate(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := LoadEnv()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad timezone", func(t *testing.T) {
		cfg := LoadEnv()
		cfg.Sale.Timezone = "Mars/Olympus"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := LoadEnv()
		cfg.Sale.CommitTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}
