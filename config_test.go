// FILE: config_test.go
package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigProfileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbpusd.yaml")
	body := "symbol: GBPUSD\nrisk_per_trade: 0.005\ncooldown_bars: 8\nsession_filter_enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", cfg.Symbol)
	assert.Equal(t, 0.005, cfg.RiskPerTrade)
	assert.Equal(t, 8, cfg.CooldownBars)
	assert.False(t, cfg.SessionFilterEnabled)
	// Keys the profile omits keep their defaults.
	assert.Equal(t, 1.8, cfg.RewardRatio)
	assert.Equal(t, "15m", cfg.Timeframe)
}

func TestLoadConfigMissingProfileIsError(t *testing.T) {
	_, err := LoadConfig("no_such_profile")
	assert.Error(t, err, "a typoed profile name must not silently run defaults")
}

func TestLoadConfigEnvWinsOverProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk_per_trade: 0.005\n"), 0o644))
	t.Setenv("RISK_PER_TRADE", "0.02")
	t.Setenv("CLASSIFIER_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.RiskPerTrade)
	assert.False(t, cfg.ClassifierEnabled)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	t.Setenv("RISK_PER_TRADE", "0.5") // past the 10% ceiling
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"risk zero", func(c *Config) { c.RiskPerTrade = 0 }},
		{"risk too high", func(c *Config) { c.RiskPerTrade = 0.2 }},
		{"reward ratio", func(c *Config) { c.RewardRatio = 0 }},
		{"max positions", func(c *Config) { c.MaxConcurrentPositions = 0 }},
		{"cooldown negative", func(c *Config) { c.CooldownBars = -1 }},
		{"threshold range", func(c *Config) { c.ClassifierThreshold = 1.5 }},
		{"window floor", func(c *Config) { c.ClassifierWindowSize = minTrainSamples - 1 }},
		{"volatility mult", func(c *Config) { c.VolatilityMultiplierMax = 0 }},
		{"bos age", func(c *Config) { c.BOSMaxAge = 0 }},
		{"fvg distance", func(c *Config) { c.FVGBOSMaxDistance = 0 }},
		{"loss limit", func(c *Config) { c.DailyLossLimit = 1 }},
		{"reduction factor", func(c *Config) { c.RiskReductionFactor = 0 }},
		{"start equity", func(c *Config) { c.StartEquity = 0 }},
		{"pip size", func(c *Config) { c.PipSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSessionLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimezone = "Mars/Olympus_Mons"
	assert.Equal(t, time.UTC, cfg.sessionLocation())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", " hello ")
	t.Setenv("X_FLOAT", "1.25")
	t.Setenv("X_BOOL", "yes")
	t.Setenv("X_INT", "7")
	t.Setenv("X_BAD", "not-a-number")

	assert.Equal(t, "hello", getEnv("X_STR", "def"))
	assert.Equal(t, "def", getEnv("X_MISSING", "def"))
	assert.Equal(t, 1.25, getEnvFloat("X_FLOAT", 0))
	assert.Equal(t, 3.5, getEnvFloat("X_BAD", 3.5))
	assert.True(t, getEnvBool("X_BOOL", false))
	assert.True(t, getEnvBool("X_MISSING", true))
	assert.Equal(t, 7, getEnvInt("X_INT", 0))
	assert.Equal(t, int64(7), getEnvInt64("X_INT", 0))
}

func TestLoadBotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.env")
	body := "# comment\nexport SYMBOL=GBPUSD\nNEW_KEY_FROM_FILE='quoted'\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("BOT_ENV_FILE", path)
	t.Setenv("SYMBOL", "EURUSD")
	t.Setenv("NEW_KEY_FROM_FILE", "")

	loadBotEnv()
	assert.Equal(t, "EURUSD", os.Getenv("SYMBOL"), "process env wins over the file")
	assert.Equal(t, "quoted", os.Getenv("NEW_KEY_FROM_FILE"))
}
