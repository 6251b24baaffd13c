package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Elastic  ElasticsearchConfig
	Sale     SaleConfig
	Cache    CacheConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type ElasticsearchConfig struct {
	Enabled   bool
	Addresses []string
	Username  string
	Password  string
	Index     string
}

type SaleConfig struct {
	StoreTimeout   time.Duration
	CommitTimeout  time.Duration
	Timezone       string
	IdempotencyTTL time.Duration
}

type CacheConfig struct {
	InventoryTTL time.Duration
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8083"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", DriverPostgres),
			Postgres: PostgresConfig{
				Host:            getEnv("POSTGRES_HOST", "localhost"),
				Port:            getEnv("POSTGRES_PORT", "5433"),
				User:            getEnv("POSTGRES_USER", "omnipos"),
				Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
				DBName:          getEnv("POSTGRES_DB", "omnipos_retail"),
				SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
				MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
				MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
				ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "omnipos_retail.db"),
			},
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_RETAIL", "retail.events"),
			GroupID: getEnv("KAFKA_GROUP_INVENTORY", "retail-inventory"),
		},
		Elastic: ElasticsearchConfig{
			Enabled:   getEnvBool("ELASTICSEARCH_ENABLED", false),
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:     getEnv("ELASTICSEARCH_INVENTORY_INDEX", "inventory"),
		},
		Sale: SaleConfig{
			StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 5*time.Second),
			CommitTimeout:  getEnvDuration("SALE_COMMIT_TIMEOUT", 10*time.Second),
			Timezone:       getEnv("STORE_TIMEZONE", "Africa/Lagos"),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Cache: CacheConfig{
			InventoryTTL: getEnvDuration("INVENTORY_CACHE_TTL", 5*time.Minute),
		},
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid STORE_TIMEZONE %q: %w", c.Sale.Timezone, err)
	}
	if c.Sale.StoreTimeout <= 0 || c.Sale.CommitTimeout <= 0 {
		return fmt.Errorf("store and commit timeouts must be positive")
	}
	return nil
}

// Location is the shop's local time zone; "today" for sales listings and
// reconciliation is computed in it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sale.Timezone)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
