package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	DB       DBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Invoice  InvoiceConfig
	Pricing  PricingConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StoreConfig selects the persistence backend. "memory" runs the service
// without PostgreSQL.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"medstore"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig is optional. Addr is unset by default; leaving it empty, or
// pointing it at a server unreachable at startup, disables caching and
// cross-instance real-time events.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// RabbitMQConfig is optional: with no URL, or no reachable broker, email is
// sent inline instead of queued.
type RabbitMQConfig struct {
	URL string `env:"RABBITMQ_URL"`
}

type JWTConfig struct {
	Secret string `env:"JWT_SECRET" envDefault:"super-secret-key"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:""`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME" envDefault:""`
	Password string `env:"SMTP_PASSWORD" envDefault:""`
	From     string `env:"SMTP_FROM" envDefault:"orders@harekrishnamedical.com"`
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" }

type InvoiceConfig struct {
	BaseDomain string `env:"INVOICE_BASE_DOMAIN" envDefault:"https://harekrishnamedical.com"`
	Company    string `env:"INVOICE_COMPANY" envDefault:"Hare Krishna Medical"`
}

type PricingConfig struct {
	ShippingFee           decimal.Decimal `env:"PRICING_SHIPPING_FEE" envDefault:"0"`
	FreeShippingThreshold decimal.Decimal `env:"PRICING_FREE_SHIPPING_THRESHOLD" envDefault:"0"`
	TaxRate               decimal.Decimal `env:"PRICING_TAX_RATE" envDefault:"0"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Driver != "postgres" && cfg.Store.Driver != "memory" {
		return nil, fmt.Errorf("parse config: unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	return cfg, nil
}
