package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"savings_circle_bot/internal/domain/community"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken    string // empty runs without the bot; notifications are logged
	DatabaseURL      string
	Storage          string
	LogLevel         string
	Environment      string
	OpsAddr          string
	SweepCronSpec    string
	SweepTimeout     time.Duration
	SweepConcurrency int
	Timezone         *time.Location
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration

	CommunityDefaultsFile string
	CommunityDefaults     community.Settings
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.Storage = strings.ToLower(os.Getenv("STORAGE"))
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", cfg.Storage, StoragePostgres, StorageMemory)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.Storage == StoragePostgres {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.OpsAddr = os.Getenv("OPS_ADDR")
	if cfg.OpsAddr == "" {
		cfg.OpsAddr = ":9090"
	}

	cfg.SweepCronSpec = os.Getenv("SWEEP_CRON")
	if cfg.SweepCronSpec == "" {
		cfg.SweepCronSpec = "@every 1m"
	}
	if cfg.SweepTimeout, err = durationEnv("SWEEP_TIMEOUT", 50*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepConcurrency, err = intEnv("SWEEP_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		cfg.Timezone = time.Local
	} else if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.RetryMaxAttempts, err = intEnv("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryBaseBackoff, err = durationEnv("RETRY_BASE_BACKOFF", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryMaxBackoff, err = durationEnv("RETRY_MAX_BACKOFF", time.Second); err != nil {
		return nil, err
	}

	cfg.CommunityDefaults = DefaultCommunitySettings()
	cfg.CommunityDefaultsFile = os.Getenv("COMMUNITY_DEFAULTS_FILE")
	if cfg.CommunityDefaultsFile != "" {
		cfg.CommunityDefaults, err = LoadCommunityDefaults(cfg.CommunityDefaultsFile)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DefaultCommunitySettings are used for any setting a new community does not choose.
func DefaultCommunitySettings() community.Settings {
	return community.Settings{
		ContributionFrequency: community.FrequencyWeekly,
		MaxMembers:            10,
		BackupFundPercentage:  decimal.NewFromInt(5),
		MinContribution:       decimal.NewFromInt(100),
		PenaltyAmount:         decimal.NewFromInt(10),
		NumMissContribution:   3,
		FirstCycleMin:         5,
	}
}

type defaultsFile struct {
	Community community.Settings `toml:"community"`
}

// LoadCommunityDefaults reads the [community] table of a TOML file over the built-in defaults.
func LoadCommunityDefaults(path string) (community.Settings, error) {
	file := defaultsFile{Community: DefaultCommunitySettings()}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return community.Settings{}, fmt.Errorf("reading community defaults %s: %w", path, err)
	}
	if err := file.Community.Validate(); err != nil {
		return community.Settings{}, fmt.Errorf("community defaults %s: %w", path, err)
	}
	return file.Community, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
