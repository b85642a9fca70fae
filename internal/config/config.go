// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	DatabaseURI  string `env:"DATABASE_URI"`
	RedisAddress string `env:"REDIS_ADDRESS"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"proofs"`
	S3UseSSL    bool   `env:"S3_USE_SSL"`

	RatesAddress         string        `env:"RATES_ADDRESS"`
	RatesRefreshInterval time.Duration `env:"RATES_REFRESH_INTERVAL" envDefault:"1h"`

	ProcessingDelay       time.Duration `env:"PROCESSING_DELAY"`
	EnabledPaymentMethods string        `env:"ENABLED_PAYMENT_METHODS"`
	SessionTTL            time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecret          string        `env:"COOKIE_SECRET"`
	LogLevel              string        `env:"LOG_LEVEL"`

	DefaultCountry  string `env:"DEFAULT_COUNTRY" envDefault:"pk"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"PKR"`

	PaymentMethods []model.PaymentMethod `env:"-"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envS3Endpoint := cfg.S3Endpoint
	envRatesAddress := cfg.RatesAddress
	envProcessingDelay := cfg.ProcessingDelay
	envMethods := cfg.EnabledPaymentMethods
	envLogLevel := cfg.LogLevel

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "k", "", "redis address for the shared key-value store")
	flag.StringVar(&cfg.S3Endpoint, "s", "", "s3 endpoint for payment proofs")
	flag.StringVar(&cfg.RatesAddress, "r", "", "exchange rates service address")
	flag.DurationVar(&cfg.ProcessingDelay, "p", 5*time.Second, "payment processing delay")
	flag.StringVar(&cfg.EnabledPaymentMethods, "m", string(model.PaymentMobileTransfer), "comma-separated enabled payment methods")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envS3Endpoint != "" {
		cfg.S3Endpoint = envS3Endpoint
	}
	if envRatesAddress != "" {
		cfg.RatesAddress = envRatesAddress
	}
	if envProcessingDelay != 0 {
		cfg.ProcessingDelay = envProcessingDelay
	}
	if envMethods != "" {
		cfg.EnabledPaymentMethods = envMethods
	}
	if envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	methods, err := ParsePaymentMethods(cfg.EnabledPaymentMethods)
	if err != nil {
		return nil, err
	}
	cfg.PaymentMethods = methods

	return cfg, nil
}

// ParsePaymentMethods разбирает список способов оплаты через запятую.
func ParsePaymentMethods(s string) ([]model.PaymentMethod, error) {
	var methods []model.PaymentMethod
	seen := make(map[model.PaymentMethod]bool)

	for _, part := range strings.Split(s, ",") {
		m := model.PaymentMethod(strings.ToLower(strings.TrimSpace(part)))
		if m == "" || seen[m] {
			continue
		}
		if !m.Valid() {
			return nil, fmt.Errorf("unknown payment method %q", m)
		}
		seen[m] = true
		methods = append(methods, m)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("at least one payment method must be enabled")
	}
	return methods, nil
}
