// FILE: env.go
// Package main – Environment helpers and override hydration.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools).
//   2) A safe loader (loadBotEnv) that reads a local bot.env file so
//      operators can tune knobs without exports.
//   3) applyEnvOverrides, the last stage of config loading: any key set in
//      the environment wins over both defaults and the YAML profile.
//
// Notes:
//   • The engine never requires `export $(cat .env ...)`.
//   • Override keys mirror the YAML keys in SCREAMING_SNAKE form.

package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}
func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
func getEnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// --------- .env loader ---------

// loadBotEnv reads BOT_ENV_FILE (default ./bot.env) and hydrates the process
// env. It never overrides variables already set in the environment.
func loadBotEnv() {
	path := getEnv("BOT_ENV_FILE", "bot.env")
	f, err := os.Open(path)
	if err != nil {
		log.Debug().Str("path", path).Msg("env: no env file, relying on process env")
		return
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(line[len("export "):])
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		if idx := strings.Index(val, "#"); idx >= 0 {
			val = strings.TrimSpace(val[:idx])
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	log.Info().Str("path", path).Msg("env: loaded")
}

// applyEnvOverrides layers environment values onto cfg. Unset keys leave the
// current value (default or profile) untouched.
func applyEnvOverrides(cfg *Config) {
	cfg.Symbol = getEnv("SYMBOL", cfg.Symbol)
	cfg.Timeframe = getEnv("TIMEFRAME", cfg.Timeframe)

	cfg.StartEquity = getEnvFloat("START_EQUITY", cfg.StartEquity)
	cfg.PipSize = getEnvFloat("PIP_SIZE", cfg.PipSize)

	cfg.RiskPerTrade = getEnvFloat("RISK_PER_TRADE", cfg.RiskPerTrade)
	cfg.RewardRatio = getEnvFloat("REWARD_RATIO", cfg.RewardRatio)
	cfg.MaxConcurrentPositions = getEnvInt("MAX_CONCURRENT_POSITIONS", cfg.MaxConcurrentPositions)
	cfg.CooldownBars = getEnvInt("COOLDOWN_BARS", cfg.CooldownBars)

	cfg.SessionFilterEnabled = getEnvBool("SESSION_FILTER_ENABLED", cfg.SessionFilterEnabled)
	cfg.SessionTimezone = getEnv("SESSION_TIMEZONE", cfg.SessionTimezone)
	cfg.SessionAdaptiveRR = getEnvBool("SESSION_ADAPTIVE_RR", cfg.SessionAdaptiveRR)

	cfg.ClassifierEnabled = getEnvBool("CLASSIFIER_ENABLED", cfg.ClassifierEnabled)
	cfg.ClassifierThreshold = getEnvFloat("CLASSIFIER_THRESHOLD", cfg.ClassifierThreshold)
	cfg.ClassifierWindowSize = getEnvInt("CLASSIFIER_WINDOW_SIZE", cfg.ClassifierWindowSize)
	cfg.ClassifierSeed = getEnvInt64("CLASSIFIER_SEED", cfg.ClassifierSeed)

	cfg.VolatilityFilterEnabled = getEnvBool("VOLATILITY_FILTER_ENABLED", cfg.VolatilityFilterEnabled)
	cfg.VolatilityMultiplierMax = getEnvFloat("VOLATILITY_MULTIPLIER_MAX", cfg.VolatilityMultiplierMax)

	cfg.ATRFilterEnabled = getEnvBool("ATR_FILTER_ENABLED", cfg.ATRFilterEnabled)
	cfg.ATRFVGMinRatio = getEnvFloat("ATR_FVG_MIN_RATIO", cfg.ATRFVGMinRatio)

	cfg.FVGMitigationFilterEnabled = getEnvBool("FVG_MITIGATION_FILTER_ENABLED", cfg.FVGMitigationFilterEnabled)
	cfg.BOSRecencyFilterEnabled = getEnvBool("BOS_RECENCY_FILTER_ENABLED", cfg.BOSRecencyFilterEnabled)
	cfg.BOSMaxAge = getEnvInt("BOS_MAX_AGE", cfg.BOSMaxAge)
	cfg.MarketStructureFilterEnabled = getEnvBool("MARKET_STRUCTURE_FILTER_ENABLED", cfg.MarketStructureFilterEnabled)
	cfg.FVGBOSMaxDistance = getEnvInt("FVG_BOS_MAX_DISTANCE", cfg.FVGBOSMaxDistance)

	cfg.OrderBlockStopEnabled = getEnvBool("ORDER_BLOCK_STOP_ENABLED", cfg.OrderBlockStopEnabled)

	cfg.CircuitBreakerEnabled = getEnvBool("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerEnabled)
	cfg.DailyLossLimit = getEnvFloat("DAILY_LOSS_LIMIT", cfg.DailyLossLimit)
	cfg.AdaptiveRiskEnabled = getEnvBool("ADAPTIVE_RISK_ENABLED", cfg.AdaptiveRiskEnabled)
	cfg.RiskReductionFactor = getEnvFloat("RISK_REDUCTION_FACTOR", cfg.RiskReductionFactor)

	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.Port = getEnvInt("PORT", cfg.Port)
}
