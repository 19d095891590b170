// FILE: testutil_test.go
// Shared fixtures: candle builders and a scripted bullish entry sequence
// used across the matcher, trader and backtest tests.
package main

import (
	"context"
	"math/rand"
	"time"
)

func testCtx() context.Context { return context.Background() }

func testBase() time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
}

func tb(i int) time.Time {
	return testBase().Add(time.Duration(i) * 15 * time.Minute)
}

func mkBar(t time.Time, o, h, l, c float64) Candle {
	return Candle{Time: t, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

// flatBars emits n quiet bars that form no swings (tied highs/lows).
func flatBars(n int, from int) []Candle {
	out := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mkBar(tb(from+i), 1.1000, 1.1005, 1.0995, 1.1000))
	}
	return out
}

// testCfg loosens the ambient filters so a test can focus on one gate.
func testCfg() Config {
	cfg := DefaultConfig()
	cfg.SessionFilterEnabled = false
	cfg.SessionAdaptiveRR = false
	cfg.MarketStructureFilterEnabled = false
	cfg.VolatilityFilterEnabled = false
	cfg.ATRFilterEnabled = false
	return cfg
}

// entryScenario returns 58 candles: 50 quiet warmup bars, a confirmed swing
// high at 52, a BOS up at 55 with an order block at 53, a bullish FVG
// [1.1020, 1.1040] completed at 56, and bar 57 closing at 1.1035 inside the
// gap. With testCfg a trader opens a long on the final bar.
func entryScenario() []Candle {
	out := flatBars(50, 0)
	script := []struct{ o, h, l, c float64 }{
		{1.1000, 1.1010, 1.0995, 1.1005}, // 50
		{1.1005, 1.1030, 1.1000, 1.1025}, // 51
		{1.1025, 1.1050, 1.1020, 1.1030}, // 52: swing high 1.1050
		{1.1030, 1.1040, 1.1000, 1.1005}, // 53: down candle, the order block
		{1.1005, 1.1020, 1.0990, 1.1010}, // 54: confirms the swing high
		{1.1010, 1.1060, 1.1005, 1.1055}, // 55: close > 1.1050, BOS up
		{1.1055, 1.1080, 1.1040, 1.1075}, // 56: low > high[54], bull FVG
		{1.1075, 1.1075, 1.1030, 1.1035}, // 57: pullback into the gap
	}
	for i, s := range script {
		out = append(out, mkBar(tb(50+i), s.o, s.h, s.l, s.c))
	}
	return out
}

// randomWalk emits n bars of a seeded random walk, for determinism checks.
func randomWalk(n int, seed int64) []Candle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Candle, 0, n)
	px := 1.1000
	for i := 0; i < n; i++ {
		o := px
		c := o + (rng.Float64()-0.5)*0.004
		h := o
		if c > h {
			h = c
		}
		h += rng.Float64() * 0.002
		l := o
		if c < l {
			l = c
		}
		l -= rng.Float64() * 0.002
		out = append(out, Candle{Time: tb(i), Open: o, High: h, Low: l, Close: c, Volume: 50 + rng.Float64()*100})
		px = c
	}
	return out
}

func stepAll(t *Trader, candles []Candle) (last string, err error) {
	for _, c := range candles {
		last, err = t.step(testCtx(), c)
		if err != nil {
			return last, err
		}
	}
	return last, nil
}
