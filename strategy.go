// FILE: strategy.go
// Package main – Core trading abstractions and the confluence matcher.
//
// This file declares the market data types used across the engine (Candle),
// the bias enum (Bull/Bear/Neutral), rejection reasons, and the matcher
// that turns enriched series state into a trade candidate.
//
// A candidate requires the confluence of:
//   • A directional bias from the most recent break of structure (BOS)
//   • An unmitigated fair value gap (FVG) on the bias side that current
//     price trades inside
//   • The gap sitting close enough to the BOS bar (fvg_bos_max_distance)
//
// The matcher never mutates series state and never sizes a trade; risk and
// execution live in trader.go / step.go.

package main

import (
	"fmt"
	"math"
	"time"
)

// Candle is the normalized OHLCV row the engine uses everywhere.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bias is the directional read distilled from structure breaks.
type Bias int

const (
	BiasNeutral Bias = iota
	BiasBull
	BiasBear
)

// String implements fmt.Stringer for pretty logging.
func (b Bias) String() string {
	switch b {
	case BiasBull:
		return "BULL"
	case BiasBear:
		return "BEAR"
	default:
		return "NEUTRAL"
	}
}

// RejectReason labels why a bar produced no entry. The same strings feed the
// report counters and the Prometheus rejection metric.
type RejectReason string

const (
	rejectNone         RejectReason = ""
	rejectInvalidBar   RejectReason = "invalid_bar"
	rejectWarmup       RejectReason = "warmup"
	rejectCooldown     RejectReason = "cooldown"
	rejectSession      RejectReason = "session"
	rejectVolatility   RejectReason = "volatility"
	rejectNeutralBias  RejectReason = "neutral_bias"
	rejectStructure    RejectReason = "structure"
	rejectStaleBOS     RejectReason = "bos_stale"
	rejectNoConfluence RejectReason = "no_confluence"
	rejectMitigated    RejectReason = "fvg_mitigated"
	rejectDistance     RejectReason = "fvg_bos_distance"
	rejectSmallGap     RejectReason = "atr_small_gap"
	rejectClassifier   RejectReason = "classifier"
	rejectStopTooClose RejectReason = "sl_too_close"
	rejectMaxPositions RejectReason = "max_positions"
	rejectBreaker      RejectReason = "circuit_breaker"
)

// ConfluenceSignal is a fully resolved trade candidate: direction, the gap
// and BOS bars that justify it, and the feature vector handed to the
// meta-label classifier.
type ConfluenceSignal struct {
	Bias     Bias
	FVGIndex int
	Top      float64
	Bottom   float64
	BOSIndex int
	Features []float64
}

func (s *ConfluenceSignal) String() string {
	return fmt.Sprintf("%s fvg@%d [%.5f..%.5f] bos@%d", s.Bias, s.FVGIndex, s.Bottom, s.Top, s.BOSIndex)
}

// biasAt reads the directional bias at the last bar: the most recent BOS
// inside the confluence window sets the direction. When the structure filter
// is on, the market-structure read must agree or the bias collapses to
// neutral (counted separately so tuning runs can see the veto rate).
func biasAt(s *Series, cfg Config) (Bias, int, RejectReason) {
	i := s.LastIndex()
	lo := i - confluenceLookback
	if lo < 0 {
		lo = 0
	}
	for j := i; j >= lo; j-- {
		var bias Bias
		switch {
		case s.bosUp[j] && !s.bosDown[j]:
			bias = BiasBull
		case s.bosDown[j] && !s.bosUp[j]:
			bias = BiasBear
		default:
			continue
		}
		if cfg.BOSRecencyFilterEnabled && i-j > cfg.BOSMaxAge {
			return BiasNeutral, -1, rejectStaleBOS
		}
		if cfg.MarketStructureFilterEnabled {
			st := s.structure[i]
			if bias == BiasBull && st != StructureBullish {
				return BiasNeutral, -1, rejectStructure
			}
			if bias == BiasBear && st != StructureBearish {
				return BiasNeutral, -1, rejectStructure
			}
		}
		return bias, j, rejectNone
	}
	return BiasNeutral, -1, rejectNeutralBias
}

// findConfluence scans backward from the last bar for the most recent
// side-matching gap that current price trades inside. Filters run inside the
// scan, so a mitigated or too-distant gap lets an older one qualify; when
// nothing qualifies the rejection reason reflects the nearest miss.
func findConfluence(s *Series, cfg Config) (*ConfluenceSignal, RejectReason) {
	bias, bosIdx, why := biasAt(s, cfg)
	if bias == BiasNeutral {
		return nil, why
	}

	i := s.LastIndex()
	px := s.candles[i].Close
	atr := s.atr[i]
	lo := i - fvgScanLookback
	if lo < 2 {
		lo = 2
	}

	var sawMitigated, sawDistance, sawSmall bool
	for j := i - 1; j >= lo; j-- {
		gi := s.fvgIdxAt[j]
		if gi < 0 {
			continue
		}
		g := &s.fvgs[gi]
		if g.Side != bias {
			continue
		}
		if px < g.Bottom || px > g.Top {
			continue
		}
		if cfg.FVGMitigationFilterEnabled && g.Mitigated {
			sawMitigated = true
			continue
		}
		if dist := absInt(j - bosIdx); dist > cfg.FVGBOSMaxDistance {
			sawDistance = true
			continue
		}
		if cfg.ATRFilterEnabled && atr > 0 && g.Top-g.Bottom < cfg.ATRFVGMinRatio*atr {
			sawSmall = true
			continue
		}
		sig := &ConfluenceSignal{
			Bias:     bias,
			FVGIndex: j,
			Top:      g.Top,
			Bottom:   g.Bottom,
			BOSIndex: bosIdx,
		}
		sig.Features = buildFeatures(s, sig, cfg)
		return sig, rejectNone
	}

	switch {
	case sawMitigated:
		return nil, rejectMitigated
	case sawDistance:
		return nil, rejectDistance
	case sawSmall:
		return nil, rejectSmallGap
	default:
		return nil, rejectNoConfluence
	}
}

// sessionFlags classifies the bar timestamp into the London / New York kill
// zones using the configured zone. Bar time, never wall clock, so a backtest
// and a live replay of the same candles agree.
func sessionFlags(t time.Time, loc *time.Location) (london, newYork bool) {
	h := t.In(loc).Hour()
	return h >= 8 && h < 11, h >= 14 && h < 17
}

// buildFeatures assembles the fixed 12-dim vector scored by the classifier.
// Order is part of the persisted model contract; append, never reorder.
func buildFeatures(s *Series, sig *ConfluenceSignal, cfg Config) []float64 {
	i := s.LastIndex()
	c := s.candles[i]
	px := c.Close
	atr := s.atr[i]

	gapSize := sig.Top - sig.Bottom
	rangeNorm := rangeSpan(s.candles, i, featureRangeBars) / px

	volNorm := 0.0
	if mv := meanVolume(s.candles, i, 20); mv > 0 {
		volNorm = c.Volume / mv
	}

	biasF := 0.0
	switch sig.Bias {
	case BiasBull:
		biasF = 1
	case BiasBear:
		biasF = -1
	}

	london, newYork := sessionFlags(c.Time, s.loc)
	killzone := 0.0
	if london || newYork {
		killzone = 1
	}

	atrNorm := atr / px
	fvgATR := 0.0
	bosStrengthNorm := 0.0
	if atr > 0 {
		fvgATR = gapSize / atr
		bosStrengthNorm = s.bosStrength[sig.BOSIndex] / atr
	}

	bosProximity := 1.0 / float64(1+absInt(sig.FVGIndex-sig.BOSIndex))

	// Alignment, not the raw regime: +1 when structure agrees with the
	// signal bias, -1 when it opposes, 0 when neutral or mixed.
	structureScore := 0.0
	switch {
	case sig.Bias == BiasBull && s.structure[i] == StructureBullish,
		sig.Bias == BiasBear && s.structure[i] == StructureBearish:
		structureScore = 1
	case sig.Bias == BiasBull && s.structure[i] == StructureBearish,
		sig.Bias == BiasBear && s.structure[i] == StructureBullish:
		structureScore = -1
	}

	midDist := 0.0
	if gapSize > 0 {
		mid := (sig.Top + sig.Bottom) / 2
		midDist = clamp01(math.Abs(px-mid) / gapSize)
	}

	mom5 := momentum(s.candles, i, 5)

	return []float64{
		gapSize / px,
		rangeNorm,
		volNorm,
		biasF,
		killzone,
		atrNorm,
		fvgATR,
		bosProximity,
		structureScore,
		bosStrengthNorm,
		midDist,
		mom5,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
