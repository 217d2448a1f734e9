package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	HTTP      HTTPConfig
	Reconcile ReconcileConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// StripeConfig holds payment provider credentials. ClientDomain is the
// frontend origin used to build checkout success/cancel URLs.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	ClientDomain  string
}

type HTTPConfig struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type ReconcileConfig struct {
	Enabled   bool
	Schedule  string
	MinAge    time.Duration
	BatchSize int
}

// LoadConfig reads configuration from the given .env file (optional) and the
// process environment. Environment variables take precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("APP_NAME", "lms-backend")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("JWT_EXPIRY_HOURS", 24*30)
	v.SetDefault("STRIPE_CURRENCY", "egp")
	v.SetDefault("CLIENT_DOMAIN", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_REQUESTS", 200)
	v.SetDefault("RATE_LIMIT_WINDOW_MINUTES", 10)
	v.SetDefault("RECONCILE_ENABLED", true)
	v.SetDefault("RECONCILE_SCHEDULE", "@every 10m")
	v.SetDefault("RECONCILE_MIN_AGE_MINUTES", 15)
	v.SetDefault("RECONCILE_BATCH", 100)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			Port:    v.GetString("PORT"),
			Debug:   v.GetBool("DEBUG"),
			LogPath: v.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(v.GetString("STRIPE_CURRENCY")),
			ClientDomain:  strings.TrimRight(v.GetString("CLIENT_DOMAIN"), "/"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitWindow:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_MINUTES")) * time.Minute,
		},
		Reconcile: ReconcileConfig{
			Enabled:   v.GetBool("RECONCILE_ENABLED"),
			Schedule:  v.GetString("RECONCILE_SCHEDULE"),
			MinAge:    time.Duration(v.GetInt("RECONCILE_MIN_AGE_MINUTES")) * time.Minute,
			BatchSize: v.GetInt("RECONCILE_BATCH"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
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
