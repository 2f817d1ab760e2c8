package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CartStoreRedis = "redis"
	CartStoreMongo = "mongo"
	CartStoreNone  = "none"
)

var ErrInvalidValue = errors.New("invalid configuration value")

type Config struct {
	HTTPPort        string
	Env             string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBody  int64

	CatalogDriver  string
	CatalogDSN     string
	MigrationsPath string
	CatalogTTL     time.Duration

	CartStore     string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string

	KafkaBrokers  []string
	ReceiptsTopic string

	PostalLookupURL string
	PostalTimeout   time.Duration
	QRBaseURL       string

	PixKey              string
	PixSettlementDelay  time.Duration
	CardProcessingDelay time.Duration

	SessionIdleTTL time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	SearchDictionaryPath string
}

// Load reads the environment, after an optional .env file in the working
// directory. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBody:  1 << 20, // 1MB

		CatalogDriver:  getEnv("CATALOG_DRIVER", "sqlite"),
		CatalogDSN:     getEnv("CATALOG_DSN", "file:catalog.db?_pragma=foreign_keys(1)"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/catalog/migrations"),
		CatalogTTL:     p.duration("CATALOG_CACHE_TTL", time.Minute),

		CartStore:     strings.ToLower(getEnv("CART_STORE", CartStoreNone)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),

		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		ReceiptsTopic: getEnv("RECEIPTS_TOPIC", "orders-completed"),

		PostalLookupURL: getEnv("POSTAL_LOOKUP_URL", "https://viacep.com.br/ws"),
		PostalTimeout:   p.duration("POSTAL_TIMEOUT", 5*time.Second),
		QRBaseURL:       getEnv("QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/"),

		PixKey:              getEnv("PIX_KEY", "lanches@exemplo.com"),
		PixSettlementDelay:  p.duration("PIX_SETTLEMENT_DELAY", 5*time.Second),
		CardProcessingDelay: p.duration("CARD_PROCESSING_DELAY", 2*time.Second),

		SessionIdleTTL: p.duration("SESSION_IDLE_TTL", 30*time.Minute),
		RateLimitRPS:   p.float("RATE_LIMIT_RPS", 10),
		RateLimitBurst: p.integer("RATE_LIMIT_BURST", 20),

		SearchDictionaryPath: getEnv("SEARCH_DICTIONARY_PATH", ""),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CartStore {
	case CartStoreRedis, CartStoreMongo, CartStoreNone:
	default:
		return fmt.Errorf("%w: CART_STORE=%q (want redis, mongo or none)", ErrInvalidValue, c.CartStore)
	}
	switch c.CatalogDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: CATALOG_DRIVER=%q (want sqlite or postgres)", ErrInvalidValue, c.CatalogDriver)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidValue)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first conversion error so Load reports it once.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, raw, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err == nil && d < 0 {
		err = errors.New("negative duration")
	}
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return f
}
