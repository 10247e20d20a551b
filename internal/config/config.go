package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Cleanup  CleanupConfig
	Order    OrderConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	// LockWait bounds how long a transaction waits for row locks.
	LockWait time.Duration
}

type RedisConfig struct {
	Addr string
	// AvailabilityTTL is how long cached per-title availability counts live.
	AvailabilityTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

type CleanupConfig struct {
	// Interval between sweeps of stuck PENDING orders.
	Interval time.Duration
	// ExpireAfter is how old a PENDING order must be before the sweep
	// resolves it.
	ExpireAfter time.Duration
}

type OrderConfig struct {
	// TxTimeout bounds the whole order-creation transaction.
	TxTimeout time.Duration
	// GatewayTimeout bounds individual payment-gateway calls.
	GatewayTimeout time.Duration
	// QRSecret encrypts the payload embedded in generated ticket QR codes.
	QRSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "ticketshop"),
			Password:     getEnv("DB_PASSWORD", "ticketshop"),
			Database:     getEnv("DB_NAME", "ticketshop"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			LockWait:     getEnvDuration("DB_LOCK_WAIT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "localhost:6379"),
			AvailabilityTTL: getEnvDuration("AVAILABILITY_CACHE_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:  getEnv("STRIPE_CURRENCY", "usd"),
		},
		Cleanup: CleanupConfig{
			Interval:    getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute),
			ExpireAfter: getEnvDuration("ORDER_EXPIRE_AFTER", 20*time.Minute),
		},
		Order: OrderConfig{
			TxTimeout:      getEnvDuration("ORDER_TX_TIMEOUT", 10*time.Second),
			GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
			QRSecret:       getEnv("QR_SECRET", "dev-only-secret"),
		},
	}
}

// DSN builds the Postgres connection string, with the lock wait budget applied
// at the connection level so every transaction inherits it.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&lock_timeout=%d",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.LockWait.Milliseconds())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
