// FILE: config.go
// Package main – Engine configuration (YAML profiles + env overrides).
//
// Config is a plain value type: traders, backtests and sweep workers each
// hold their own copy, so a sweep combination can mutate its copy freely
// without a lock. Loading order is
//
//   defaults  ->  config/<profile>.yaml (optional)  ->  environment
//
// Unknown YAML keys are ignored and missing keys keep their defaults, so
// old profile files stay loadable as new toggles are added.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Detection constants. These are structural parameters of the pattern
// definitions themselves, not tuning knobs, so they are compiled in.
const (
	swingWing            = 2  // bars on each side of a fractal extremum
	atrPeriod            = 14 // Wilder smoothing period
	fvgMitigationHorizon = 30 // bars a gap stays eligible for mitigation
	obLookback           = 12 // bars scanned back from a BOS for an order block
	structureLookback    = 50 // swing window for the market-structure read
	confluenceLookback   = 30 // how far back the matcher hunts for a BOS
	fvgScanLookback      = 60 // how far back the matcher hunts for a gap
	stopScanLookback     = 60 // swing scan window for stop placement
	warmupBars           = 50 // bars required before the enricher is Ready
	atrMedianWindow      = 50 // trailing ATRs feeding the volatility veto
)

// Classifier constants shared by training and scoring.
const (
	featureDim       = 12
	featureRangeBars = 50
	minTrainSamples  = 40
	refitEveryLabels = 10
)

// Config carries every tunable the engine reads. YAML tags name the keys
// accepted in config/<profile>.yaml; the same keys in SCREAMING_SNAKE form
// are honored from the environment (see env.go).
type Config struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`

	StartEquity float64 `yaml:"start_equity"`
	PipSize     float64 `yaml:"pip_size"`

	RiskPerTrade           float64 `yaml:"risk_per_trade"`
	RewardRatio            float64 `yaml:"reward_ratio"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
	CooldownBars           int     `yaml:"cooldown_bars"`

	SessionFilterEnabled bool    `yaml:"session_filter_enabled"`
	SessionTimezone      string  `yaml:"session_timezone"`
	SessionAdaptiveRR    bool    `yaml:"session_adaptive_rr"`
	RRLondon             float64 `yaml:"rr_london"`
	RRNewYork            float64 `yaml:"rr_newyork"`
	RRDefault            float64 `yaml:"rr_default"`

	ClassifierEnabled    bool    `yaml:"classifier_enabled"`
	ClassifierThreshold  float64 `yaml:"classifier_threshold"`
	ClassifierWindowSize int     `yaml:"classifier_window_size"`
	ClassifierSeed       int64   `yaml:"classifier_seed"`

	VolatilityFilterEnabled bool    `yaml:"volatility_filter_enabled"`
	VolatilityMultiplierMax float64 `yaml:"volatility_multiplier_max"`

	ATRFilterEnabled bool    `yaml:"atr_filter_enabled"`
	ATRFVGMinRatio   float64 `yaml:"atr_fvg_min_ratio"`

	FVGMitigationFilterEnabled   bool `yaml:"fvg_mitigation_filter_enabled"`
	BOSRecencyFilterEnabled      bool `yaml:"bos_recency_filter_enabled"`
	BOSMaxAge                    int  `yaml:"bos_max_age"`
	MarketStructureFilterEnabled bool `yaml:"market_structure_filter_enabled"`
	FVGBOSMaxDistance            int  `yaml:"fvg_bos_max_distance"`

	OrderBlockStopEnabled bool    `yaml:"order_block_stop_enabled"`
	StopBufferPips        float64 `yaml:"stop_buffer_pips"`
	FallbackStopPips      float64 `yaml:"fallback_stop_pips"`
	MinStopPips           float64 `yaml:"min_stop_pips"`

	CircuitBreakerEnabled bool    `yaml:"circuit_breaker_enabled"`
	DailyLossLimit        float64 `yaml:"daily_loss_limit"`
	AdaptiveRiskEnabled   bool    `yaml:"adaptive_risk_enabled"`
	RiskReductionFactor   float64 `yaml:"risk_reduction_factor"`

	ModelPath  string `yaml:"model_path"`
	WebhookURL string `yaml:"webhook_url"`
	Port       int    `yaml:"port"`
}

// DefaultConfig returns the baseline EURUSD 15m profile.
func DefaultConfig() Config {
	return Config{
		Symbol:    "EURUSD",
		Timeframe: "15m",

		StartEquity: 10000,
		PipSize:     0.0001,

		RiskPerTrade:           0.01,
		RewardRatio:            1.8,
		MaxConcurrentPositions: 2,
		CooldownBars:           5,

		SessionFilterEnabled: true,
		SessionTimezone:      "Europe/Paris",
		SessionAdaptiveRR:    true,
		RRLondon:             1.2,
		RRNewYork:            1.5,
		RRDefault:            1.3,

		ClassifierEnabled:    true,
		ClassifierThreshold:  0.40,
		ClassifierWindowSize: 500,
		ClassifierSeed:       161803,

		VolatilityFilterEnabled: true,
		VolatilityMultiplierMax: 3.0,

		ATRFilterEnabled: true,
		ATRFVGMinRatio:   0.2,

		FVGMitigationFilterEnabled:   true,
		BOSRecencyFilterEnabled:      true,
		BOSMaxAge:                    20,
		MarketStructureFilterEnabled: true,
		FVGBOSMaxDistance:            20,

		OrderBlockStopEnabled: true,
		StopBufferPips:        2,
		FallbackStopPips:      8,
		MinStopPips:           2,

		CircuitBreakerEnabled: true,
		DailyLossLimit:        0.03,
		AdaptiveRiskEnabled:   true,
		RiskReductionFactor:   0.5,

		Port: 8080,
	}
}

// LoadConfig resolves a profile name to config/<name>.yaml, overlays it on
// the defaults, then applies environment overrides. An empty name skips the
// file step; a named profile that does not exist is an error (a typo should
// not silently run the defaults).
func LoadConfig(name string) (Config, error) {
	cfg := DefaultConfig()
	if name != "" {
		path := name
		if filepath.Ext(path) == "" {
			path = filepath.Join("config", name+".yaml")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read profile %q: %w", name, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse profile %q: %w", name, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run safely. These are
// fatal at startup, never mid-run.
func (c Config) Validate() error {
	switch {
	case c.RiskPerTrade <= 0 || c.RiskPerTrade > 0.1:
		return fmt.Errorf("config: risk_per_trade %.4f out of (0, 0.1]", c.RiskPerTrade)
	case c.RewardRatio <= 0:
		return fmt.Errorf("config: reward_ratio %.2f must be positive", c.RewardRatio)
	case c.MaxConcurrentPositions < 1:
		return fmt.Errorf("config: max_concurrent_positions %d must be >= 1", c.MaxConcurrentPositions)
	case c.CooldownBars < 0:
		return fmt.Errorf("config: cooldown_bars %d must be >= 0", c.CooldownBars)
	case c.ClassifierThreshold < 0 || c.ClassifierThreshold > 1:
		return fmt.Errorf("config: classifier_threshold %.2f out of [0, 1]", c.ClassifierThreshold)
	case c.ClassifierWindowSize < minTrainSamples:
		return fmt.Errorf("config: classifier_window_size %d below minimum %d", c.ClassifierWindowSize, minTrainSamples)
	case c.VolatilityMultiplierMax <= 0:
		return fmt.Errorf("config: volatility_multiplier_max %.2f must be positive", c.VolatilityMultiplierMax)
	case c.BOSMaxAge < 1:
		return fmt.Errorf("config: bos_max_age %d must be >= 1", c.BOSMaxAge)
	case c.FVGBOSMaxDistance < 1:
		return fmt.Errorf("config: fvg_bos_max_distance %d must be >= 1", c.FVGBOSMaxDistance)
	case c.DailyLossLimit <= 0 || c.DailyLossLimit >= 1:
		return fmt.Errorf("config: daily_loss_limit %.4f out of (0, 1)", c.DailyLossLimit)
	case c.RiskReductionFactor <= 0 || c.RiskReductionFactor > 1:
		return fmt.Errorf("config: risk_reduction_factor %.2f out of (0, 1]", c.RiskReductionFactor)
	case c.StartEquity <= 0:
		return fmt.Errorf("config: start_equity %.2f must be positive", c.StartEquity)
	case c.PipSize <= 0:
		return fmt.Errorf("config: pip_size %g must be positive", c.PipSize)
	}
	return nil
}

// sessionLocation resolves the configured IANA zone for kill-zone checks,
// falling back to UTC when the zone database misses it.
func (c Config) sessionLocation() *time.Location {
	loc, err := time.LoadLocation(c.SessionTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
