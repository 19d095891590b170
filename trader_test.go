// FILE: trader_test.go
package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveRiskMultiplier(t *testing.T) {
	tr := newTestTrader(t, testCfg())

	tr.applyOutcome(false)
	assert.Equal(t, 1.0, tr.risk.RiskMultiplier, "a single loss does not cut risk")

	tr.applyOutcome(false)
	assert.InDelta(t, 0.5, tr.risk.RiskMultiplier, 1e-12, "two trailing losses halve it")

	tr.applyOutcome(false)
	assert.InDelta(t, 0.25, tr.risk.RiskMultiplier, 1e-12)

	tr.applyOutcome(true)
	assert.InDelta(t, 0.5, tr.risk.RiskMultiplier, 1e-12, "a win steps it back up")

	tr.applyOutcome(true)
	assert.Equal(t, 1.0, tr.risk.RiskMultiplier, "recovery caps at full risk")

	tr.applyOutcome(true)
	assert.Equal(t, 1.0, tr.risk.RiskMultiplier)
}

func TestLosingStreakShrinksSize(t *testing.T) {
	tr := newTestTrader(t, testCfg())
	base := tr.positionSize(0.0040)
	for i := 0; i < 4; i++ {
		tr.applyOutcome(false)
	}
	assert.InDelta(t, base/8, tr.positionSize(0.0040), 1e-9,
		"every loss after the first halves risk again")
}

func TestAdaptiveRiskFloor(t *testing.T) {
	tr := newTestTrader(t, testCfg())
	for i := 0; i < 10; i++ {
		tr.applyOutcome(false)
	}
	assert.Equal(t, riskMultiplierFloor, tr.risk.RiskMultiplier,
		"the multiplier never drops below the floor")
}

func TestAdaptiveRiskDisabled(t *testing.T) {
	cfg := testCfg()
	cfg.AdaptiveRiskEnabled = false
	tr := newTestTrader(t, cfg)
	tr.applyOutcome(false)
	tr.applyOutcome(false)
	tr.applyOutcome(false)
	assert.Equal(t, 1.0, tr.risk.RiskMultiplier)
}

func TestPositionSize(t *testing.T) {
	tr := newTestTrader(t, testCfg())
	// 1% of 10k over a 50-pip stop.
	assert.InDelta(t, 100/0.0050, tr.positionSize(0.0050), 1e-9)
	assert.Equal(t, 0.0, tr.positionSize(0))
	assert.Equal(t, 0.0, tr.positionSize(-0.001))

	tr.risk.RiskMultiplier = 0.5
	assert.InDelta(t, 50/0.0050, tr.positionSize(0.0050), 1e-9)
}

func TestRewardRatioSessionAdaptive(t *testing.T) {
	cfg := testCfg()
	cfg.SessionAdaptiveRR = true
	cfg.SessionTimezone = "UTC"
	tr := newTestTrader(t, cfg)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, cfg.RRLondon, tr.rewardRatio(day.Add(9*time.Hour)))
	assert.Equal(t, cfg.RRNewYork, tr.rewardRatio(day.Add(15*time.Hour)))
	assert.Equal(t, cfg.RRDefault, tr.rewardRatio(day.Add(3*time.Hour)))

	tr.cfg.SessionAdaptiveRR = false
	assert.Equal(t, cfg.RewardRatio, tr.rewardRatio(day.Add(9*time.Hour)))
}

func TestBreakerTripAndDailyReset(t *testing.T) {
	tr := newTestTrader(t, testCfg())
	tr.updateDaily(testBase())

	tr.risk.Equity = 9800 // -2%, inside the 3% limit
	tr.applyOutcome(false)
	assert.False(t, tr.risk.BreakerActive)

	tr.risk.Equity = 9600 // -4%
	tr.applyOutcome(false)
	require.True(t, tr.risk.BreakerActive)
	assert.Equal(t, 1, tr.risk.BreakerTrips)

	// Further losses the same day do not re-trip.
	tr.risk.Equity = 9500
	tr.applyOutcome(false)
	assert.Equal(t, 1, tr.risk.BreakerTrips)

	// Same-day bars leave it engaged; a new UTC day clears it and
	// re-anchors the daily equity.
	tr.updateDaily(testBase().Add(10 * time.Hour))
	assert.True(t, tr.risk.BreakerActive)

	tr.updateDaily(testBase().AddDate(0, 0, 1))
	assert.False(t, tr.risk.BreakerActive)
	assert.InDelta(t, 9500, tr.risk.DayStartEquity, 1e-9)
}

func TestBreakerDisabled(t *testing.T) {
	cfg := testCfg()
	cfg.CircuitBreakerEnabled = false
	tr := newTestTrader(t, cfg)
	tr.updateDaily(testBase())
	tr.risk.Equity = 9000
	tr.applyOutcome(false)
	assert.False(t, tr.risk.BreakerActive)
}

func TestResolveStopFallbackPips(t *testing.T) {
	cfg := testCfg()
	cfg.OrderBlockStopEnabled = false
	tr := newTestTrader(t, cfg)

	// A monotonic climb confirms no swing lows, forcing the pip fallback.
	for i := 0; i < warmupBars+5; i++ {
		px := 1.1000 + float64(i)*0.0010
		_, err := tr.step(testCtx(), mkBar(tb(i), px, px+0.0012, px-0.0002, px+0.0010))
		require.NoError(t, err)
	}
	i := tr.series.LastIndex()
	sig := &ConfluenceSignal{Bias: BiasBull, BOSIndex: i}
	want := tr.series.Candle(i).Low - cfg.FallbackStopPips*cfg.PipSize
	assert.InDelta(t, want, tr.resolveStop(sig), 1e-9)
}

func TestResolveStopFindsBlockWhenBOSBarHasNone(t *testing.T) {
	cfg := testCfg()
	tr := newTestTrader(t, cfg)
	_, err := stepAll(tr, entryScenario())
	require.NoError(t, err)

	// BOS index points at a bar with no block of its own; the stop must
	// still come off the nearest bull block in the lookback window.
	sig := &ConfluenceSignal{Bias: BiasBull, BOSIndex: 51}
	want := 1.1000 - cfg.StopBufferPips*cfg.PipSize
	assert.InDelta(t, want, tr.resolveStop(sig), 1e-9)
}

func TestSequentialTradeIDs(t *testing.T) {
	tr := newTestTrader(t, testCfg())
	assert.Equal(t, "T-000001", tr.nextTradeID())
	assert.Equal(t, "T-000002", tr.nextTradeID())
}
