package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	WhatsApp WhatsAppConfig
	Intake   IntakeConfig
	Chat     ChatConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	HandoffTokenTTLHours  int
	BcryptCost            int
}

// DiscordConfig holds the notification channel endpoints.
type DiscordConfig struct {
	WebhookURL       string
	IntegrationToken string
	PortalBaseURL    string
}

// WhatsAppConfig holds the inbound channel gateway endpoints.
type WhatsAppConfig struct {
	GatewayURL   string
	GatewayToken string
}

// IntakeConfig controls the scripted intake dialogue.
type IntakeConfig struct {
	SessionTTLMinutes int
}

// ChatConfig controls conversation routing behavior.
type ChatConfig struct {
	DeliveryConfirmDelayMS int
	UnclaimedListLimit     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "handoff-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			HandoffTokenTTLHours:  getEnvAsInt("AUTH_HANDOFF_TOKEN_TTL_HOURS", 8),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Discord: DiscordConfig{
			WebhookURL:       getEnv("DISCORD_WEBHOOK_URL", ""),
			IntegrationToken: getEnv("DISCORD_INTEGRATION_TOKEN", ""),
			PortalBaseURL:    getEnv("PORTAL_BASE_URL", "http://localhost:3000"),
		},
		WhatsApp: WhatsAppConfig{
			GatewayURL:   getEnv("WHATSAPP_GATEWAY_URL", ""),
			GatewayToken: getEnv("WHATSAPP_GATEWAY_TOKEN", ""),
		},
		Intake: IntakeConfig{
			SessionTTLMinutes: getEnvAsInt("INTAKE_SESSION_TTL_MINUTES", 120),
		},
		Chat: ChatConfig{
			DeliveryConfirmDelayMS: getEnvAsInt("CHAT_DELIVERY_CONFIRM_DELAY_MS", 1500),
			UnclaimedListLimit:     getEnvAsInt("CHAT_UNCLAIMED_LIST_LIMIT", 50),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns the intake dialogue expiry.
func (i IntakeConfig) SessionTTL() time.Duration {
	if i.SessionTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(i.SessionTTLMinutes) * time.Minute
}

// DeliveryConfirmDelay returns the simulated delivery confirmation delay.
func (c ChatConfig) DeliveryConfirmDelay() time.Duration {
	if c.DeliveryConfirmDelayMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.DeliveryConfirmDelayMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
