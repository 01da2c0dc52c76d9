package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string

	ServerPort string
	CertFile   string
	KeyFile    string

	DBDriver   string
	DBDSN      string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret   string
	CORSOrigins []string
	RateLimit   int

	TokenCatalogPath string
	PriceAPIURL      string
	PriceRPS         float64

	ConfirmDelay      time.Duration
	ConfirmSweepAfter time.Duration
	HeartbeatInterval time.Duration

	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string
	KafkaTopic   string

	OTelEndpoint string
	OTelInsecure bool
}

// Load reads the process environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ServerPort:       getEnv("SERVER_PORT", ":8080"),
		CertFile:         os.Getenv("CERT_FILE"),
		KeyFile:          os.Getenv("KEY_FILE"),
		DBDriver:         getEnv("DB_DRIVER", "mysql"),
		DBDSN:            os.Getenv("DB_DSN"),
		DBUser:           os.Getenv("DB_USER"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBHost:           getEnv("DB_HOST", "127.0.0.1"),
		DBPort:           getEnv("DB_PORT", "3306"),
		DBName:           getEnv("DB_NAME", "chainvault"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		TokenCatalogPath: os.Getenv("TOKEN_CATALOG_PATH"),
		PriceAPIURL:      os.Getenv("PRICE_API_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPass:        os.Getenv("REDIS_PASS"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "settlement-events"),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.RateLimit, err = getInt("RATE_LIMIT_RPM", 120); err != nil {
		return nil, err
	}
	if cfg.PriceRPS, err = getFloat("PRICE_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.ConfirmDelay, err = getDuration("CONFIRM_DELAY", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConfirmSweepAfter, err = getDuration("CONFIRM_SWEEP_AFTER", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OTelInsecure, err = getBool("OTEL_INSECURE", false); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = getDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.ConfirmDelay < 0 {
		return fmt.Errorf("CONFIRM_DELAY must not be negative")
	}
	return nil
}

// DSN returns DB_DSN when set, otherwise builds one for the configured driver.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "sqlite":
		return "file:chainvault.db?_pragma=busy_timeout(5000)"
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
