package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/community"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "STORAGE", "LOG_LEVEL", "ENVIRONMENT", "OPS_ADDR",
		"SWEEP_CRON", "SWEEP_TIMEOUT", "SWEEP_CONCURRENCY", "TIMEZONE",
		"RETRY_MAX_ATTEMPTS", "RETRY_BASE_BACKOFF", "RETRY_MAX_BACKOFF", "COMMUNITY_DEFAULTS_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/circles")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "@every 1m", cfg.SweepCronSpec)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryBaseBackoff)
	assert.Equal(t, time.Second, cfg.RetryMaxBackoff)
	assert.Equal(t, DefaultCommunitySettings(), cfg.CommunityDefaults)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{}},
		{"unknown storage", map[string]string{"STORAGE": "redis"}},
		{"bad concurrency", map[string]string{"STORAGE": "memory", "SWEEP_CONCURRENCY": "many"}},
		{"bad backoff", map[string]string{"STORAGE": "memory", "RETRY_BASE_BACKOFF": "soon"}},
		{"bad timezone", map[string]string{"STORAGE": "memory", "TIMEZONE": "Mars/Olympus"}},
		{"missing defaults file", map[string]string{"STORAGE": "memory", "COMMUNITY_DEFAULTS_FILE": "/nonexistent.toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryStorageNeedsNoDatabase(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "Memory")
	t.Setenv("SWEEP_CONCURRENCY", "8")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.Equal(t, time.UTC, cfg.Timezone)
}

func TestLoadCommunityDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[community]
contribution_frequency = "Daily"
min_contribution = "25.50"
backup_fund_percentage = "2.5"
first_cycle_min = 3
`), 0o600))

	s, err := LoadCommunityDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, community.FrequencyDaily, s.ContributionFrequency)
	assert.True(t, s.MinContribution.Equal(decimal.RequireFromString("25.50")))
	assert.True(t, s.BackupFundPercentage.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 3, s.FirstCycleMin)
	assert.Equal(t, 10, s.MaxMembers, "unset keys keep the built-in default")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[community]\ncontribution_frequency = \"Yearly\"\n"), 0o600))
	_, err = LoadCommunityDefaults(bad)
	assert.ErrorIs(t, err, community.ErrInvalidFrequency)
}
