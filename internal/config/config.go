package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration of healthd.
type Config struct {
	Addr        string `envconfig:"API_ADDR" default:"127.0.0.1:8080" validate:"required"`
	LogDir      string `envconfig:"LOG_DIR" default:"logs" validate:"required"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ChecksFile  string `envconfig:"CHECKS_FILE" default:"checks.yaml" validate:"required"`
	DatabaseURL string `envconfig:"DATABASE_URL"` // empty: SQLite if SQLITE_PATH is set, else in-memory
	SQLitePath  string `envconfig:"SQLITE_PATH"`

	MaxConcurrentChecks int           `envconfig:"MAX_CONCURRENT_CHECKS" default:"8" validate:"gte=1"`
	CheckPollInterval   time.Duration `envconfig:"CHECK_POLL_INTERVAL" default:"30s" validate:"gte=1s"`
	CheckTimeout        time.Duration `envconfig:"CHECK_TIMEOUT" default:"30s" validate:"gt=0"`

	AlertSinks   []string `envconfig:"ALERT_SINKS" default:"log,metrics" validate:"dive,oneof=log metrics notify slack kafka"`
	SlackWebhook string   `envconfig:"SLACK_WEBHOOK"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"healthwatch.alerts"`

	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	RedisRefresh time.Duration `envconfig:"REDIS_REFRESH" default:"30s" validate:"gt=0"`

	AlertOnRecovery   bool          `envconfig:"ALERT_ON_RECOVERY" default:"true"`
	AlertCooldown     time.Duration `envconfig:"ALERT_COOLDOWN" default:"15m"`
	AlertPollInterval time.Duration `envconfig:"ALERT_POLL_INTERVAL" default:"30s" validate:"gt=0"`

	PublicAPIKeys  []string `envconfig:"PUBLIC_API_KEYS"`
	AdminAPIKeys   []string `envconfig:"ADMIN_API_KEYS"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	PublicRPM      int      `envconfig:"PUBLIC_RPM" default:"60" validate:"gte=1"`
	PublicBurst    int      `envconfig:"PUBLIC_BURST" default:"20" validate:"gte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromEnv loads envFile (if it exists) into the environment without
// overriding variables already set, then reads and validates Config.
func FromEnv(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, validationError(err)
	}
	if cfg.hasSink("kafka") && len(cfg.KafkaBrokers) == 0 {
		return Config{}, errors.New("ALERT_SINKS includes kafka but KAFKA_BROKERS is empty")
	}
	return cfg, nil
}

func (c Config) hasSink(name string) bool {
	for _, s := range c.AlertSinks {
		if s == name {
			return true
		}
	}
	return false
}
