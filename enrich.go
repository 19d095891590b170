// FILE: enrich.go
// Package main – Derived-state enricher: swings, BOS, FVGs, order blocks,
// market structure and ATR, maintained incrementally per appended bar.
//
// Series is the single source of truth for pattern state. All detection is
// append-only: Append(candle) extends aligned per-bar slices and pattern
// arenas, and nothing ever rewrites history. The only mutable pattern field
// is FVG.Mitigated, which flips false -> true exactly once.
//
// Detection summary:
//   • Swing: strict unique extremum over a 2+1+2 window, confirmed two bars
//     late (an unconfirmed swing does not exist yet).
//   • BOS: close breaking the most recent unbroken swing. One-shot per
//     swing. The recency filter drops swings older than bos_max_age.
//   • FVG: 3-bar imbalance; bull when low[i] > high[i-2], bear mirrored.
//     Mitigated when a later close crosses the gap midpoint within
//     fvgMitigationHorizon bars.
//   • Order block: last opposite-colored candle within obLookback bars
//     before a BOS.
//   • Structure: HH+HL => bullish, LL+LH => bearish, from the last two
//     swing highs and lows inside structureLookback.

package main

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar marks a malformed candle. The caller skips the bar; the
// series does not advance.
var ErrInvalidBar = errors.New("invalid bar")

// SwingKind tags a confirmed fractal.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

// SwingPoint is a confirmed fractal extremum.
type SwingPoint struct {
	Index int
	Price float64
	Kind  SwingKind
}

// FVG is a three-bar imbalance. Top/Bottom bound the untraded range;
// Index is the bar completing the pattern.
type FVG struct {
	Index     int
	Top       float64
	Bottom    float64
	Side      Bias
	Mitigated bool

	deadline int // last bar index eligible for mitigation
}

// Mid returns the gap midpoint, the mitigation trigger level.
func (g *FVG) Mid() float64 { return (g.Top + g.Bottom) / 2 }

// OrderBlock is the origin candle of a displacement move, recorded when a
// BOS fires.
type OrderBlock struct {
	Index int
	High  float64
	Low   float64
	Side  Bias
}

// Structure is the swing-relationship regime.
type Structure int

const (
	StructureNeutral Structure = iota
	StructureBullish
	StructureBearish
)

func (s Structure) String() string {
	switch s {
	case StructureBullish:
		return "BULLISH"
	case StructureBearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// Series holds the candle history plus every derived overlay, index-aligned
// with candles. A Series is owned by exactly one goroutine; the sweep gives
// each worker its own.
type Series struct {
	cfg Config
	loc *time.Location

	candles []Candle

	// Per-bar overlays, same length as candles.
	atr         []float64
	bosUp       []bool
	bosDown     []bool
	bosStrength []float64 // price distance beyond the broken swing
	fvgIdxAt    []int     // arena index of the FVG completed at this bar, or -1
	obIdxAt     []int     // arena index of the order block tied to a BOS here, or -1
	structure   []Structure

	// Append-only arenas.
	swings []SwingPoint
	fvgs   []FVG
	obs    []OrderBlock

	swingHighs []int // indices into swings, chronological
	swingLows  []int

	pendingHigh int // swings index of the most recent unbroken swing high, -1 if none
	pendingLow  int

	activeFVGs []int // arena indices still eligible for mitigation

	trSum float64 // true-range accumulator used to seed the ATR
}

// NewSeries builds an empty enriched series for one symbol/timeframe.
func NewSeries(cfg Config) *Series {
	return &Series{
		cfg:         cfg,
		loc:         cfg.sessionLocation(),
		pendingHigh: -1,
		pendingLow:  -1,
	}
}

// LastIndex returns the index of the most recent bar, -1 when empty.
func (s *Series) LastIndex() int { return len(s.candles) - 1 }

// Ready reports whether enough history exists for signals to be meaningful.
func (s *Series) Ready() bool { return len(s.candles) >= warmupBars }

// Len returns the number of accepted bars.
func (s *Series) Len() int { return len(s.candles) }

// Candle returns the bar at index i.
func (s *Series) Candle(i int) Candle { return s.candles[i] }

// ATR returns the Wilder ATR at index i (0 until atrPeriod bars exist).
func (s *Series) ATR(i int) float64 { return s.atr[i] }

// validateBar rejects rows a data vendor can realistically emit broken.
func (s *Series) validateBar(c Candle) error {
	vals := [5]float64{c.Open, c.High, c.Low, c.Close, c.Volume}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite field at %s", ErrInvalidBar, c.Time)
		}
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("%w: non-positive price at %s", ErrInvalidBar, c.Time)
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high %.5f below low %.5f at %s", ErrInvalidBar, c.High, c.Low, c.Time)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume at %s", ErrInvalidBar, c.Time)
	}
	if n := len(s.candles); n > 0 && !c.Time.After(s.candles[n-1].Time) {
		return fmt.Errorf("%w: non-increasing timestamp %s", ErrInvalidBar, c.Time)
	}
	return nil
}

// Append folds one candle into the series and updates every overlay.
// On ErrInvalidBar the series is unchanged.
func (s *Series) Append(c Candle) error {
	if err := s.validateBar(c); err != nil {
		return err
	}
	i := len(s.candles)
	s.candles = append(s.candles, c)
	s.atr = append(s.atr, 0)
	s.bosUp = append(s.bosUp, false)
	s.bosDown = append(s.bosDown, false)
	s.bosStrength = append(s.bosStrength, 0)
	s.fvgIdxAt = append(s.fvgIdxAt, -1)
	s.obIdxAt = append(s.obIdxAt, -1)
	s.structure = append(s.structure, StructureNeutral)

	s.updateATR(i)
	s.confirmSwing(i)
	s.detectBOS(i)
	s.detectFVG(i)
	s.sweepMitigations(i)
	s.updateStructure(i)
	return nil
}

func (s *Series) updateATR(i int) {
	if i == 0 {
		return
	}
	tr := trueRange(s.candles[i], s.candles[i-1])
	switch {
	case i < atrPeriod:
		s.trSum += tr
	case i == atrPeriod:
		s.trSum += tr
		s.atr[i] = s.trSum / atrPeriod
	default:
		s.atr[i] = wilderNext(s.atr[i-1], tr, atrPeriod)
	}
}

// confirmSwing checks whether the bar swingWing bars back is a strict unique
// extremum of its 2*swingWing+1 window. Confirmation lags by swingWing bars.
func (s *Series) confirmSwing(i int) {
	j := i - swingWing
	if j < swingWing {
		return
	}
	hi, lo := true, true
	for k := j - swingWing; k <= j+swingWing; k++ {
		if k == j {
			continue
		}
		if s.candles[k].High >= s.candles[j].High {
			hi = false
		}
		if s.candles[k].Low <= s.candles[j].Low {
			lo = false
		}
		if !hi && !lo {
			return
		}
	}
	if hi {
		s.swings = append(s.swings, SwingPoint{Index: j, Price: s.candles[j].High, Kind: SwingHigh})
		s.swingHighs = append(s.swingHighs, len(s.swings)-1)
		s.pendingHigh = len(s.swings) - 1
	}
	if lo {
		s.swings = append(s.swings, SwingPoint{Index: j, Price: s.candles[j].Low, Kind: SwingLow})
		s.swingLows = append(s.swingLows, len(s.swings)-1)
		s.pendingLow = len(s.swings) - 1
	}
}

// detectBOS fires when the close breaks the most recent unbroken swing.
// Each swing breaks at most once; a stale swing (recency filter) is dropped
// without firing.
func (s *Series) detectBOS(i int) {
	px := s.candles[i].Close
	if s.pendingHigh >= 0 {
		sw := s.swings[s.pendingHigh]
		if s.cfg.BOSRecencyFilterEnabled && i-sw.Index > s.cfg.BOSMaxAge {
			s.pendingHigh = -1
		} else if px > sw.Price {
			s.bosUp[i] = true
			s.bosStrength[i] = px - sw.Price
			s.pendingHigh = -1
			s.recordOrderBlock(i, BiasBull)
		}
	}
	if s.pendingLow >= 0 {
		sw := s.swings[s.pendingLow]
		if s.cfg.BOSRecencyFilterEnabled && i-sw.Index > s.cfg.BOSMaxAge {
			s.pendingLow = -1
		} else if px < sw.Price {
			s.bosDown[i] = true
			if d := sw.Price - px; d > s.bosStrength[i] {
				s.bosStrength[i] = d
			}
			s.pendingLow = -1
			if s.obIdxAt[i] < 0 {
				s.recordOrderBlock(i, BiasBear)
			}
		}
	}
}

// recordOrderBlock scans back from a BOS bar for the last opposite-colored
// candle, the presumed origin of the displacement.
func (s *Series) recordOrderBlock(i int, side Bias) {
	lo := i - obLookback
	if lo < 0 {
		lo = 0
	}
	for k := i - 1; k >= lo; k-- {
		c := s.candles[k]
		if (side == BiasBull && c.Close < c.Open) || (side == BiasBear && c.Close > c.Open) {
			s.obs = append(s.obs, OrderBlock{Index: k, High: c.High, Low: c.Low, Side: side})
			s.obIdxAt[i] = len(s.obs) - 1
			return
		}
	}
}

// detectFVG records a three-bar imbalance completed at bar i.
func (s *Series) detectFVG(i int) {
	if i < 2 {
		return
	}
	cur, old := s.candles[i], s.candles[i-2]
	switch {
	case cur.Low > old.High:
		s.fvgs = append(s.fvgs, FVG{Index: i, Top: cur.Low, Bottom: old.High, Side: BiasBull, deadline: i + fvgMitigationHorizon})
	case cur.High < old.Low:
		s.fvgs = append(s.fvgs, FVG{Index: i, Top: old.Low, Bottom: cur.High, Side: BiasBear, deadline: i + fvgMitigationHorizon})
	default:
		return
	}
	s.fvgIdxAt[i] = len(s.fvgs) - 1
	s.activeFVGs = append(s.activeFVGs, len(s.fvgs)-1)
}

// sweepMitigations marks active gaps whose midpoint the current close
// crossed back through, and retires gaps past their horizon. The transition
// is one-way.
func (s *Series) sweepMitigations(i int) {
	px := s.candles[i].Close
	keep := s.activeFVGs[:0]
	for _, gi := range s.activeFVGs {
		g := &s.fvgs[gi]
		if i > g.deadline {
			continue
		}
		if i > g.Index {
			mid := g.Mid()
			if (g.Side == BiasBull && px < mid) || (g.Side == BiasBear && px > mid) {
				g.Mitigated = true
				continue
			}
		}
		keep = append(keep, gi)
	}
	s.activeFVGs = keep
}

// updateStructure reads the regime off the last two swing highs and lows
// inside the lookback window. Both comparisons are strict: bearish needs a
// lower low AND a lower high, so a tied pair stays neutral.
func (s *Series) updateStructure(i int) {
	h2, h1, okH := s.lastTwo(s.swingHighs, i)
	l2, l1, okL := s.lastTwo(s.swingLows, i)
	if !okH || !okL {
		return
	}
	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		s.structure[i] = StructureBullish
	case h2.Price < h1.Price && l2.Price < l1.Price:
		s.structure[i] = StructureBearish
	}
}

// lastTwo returns the two most recent swings from list, newest first, as
// long as both fall inside the structure lookback ending at i.
func (s *Series) lastTwo(list []int, i int) (latest, prev SwingPoint, ok bool) {
	if len(list) < 2 {
		return SwingPoint{}, SwingPoint{}, false
	}
	latest = s.swings[list[len(list)-1]]
	prev = s.swings[list[len(list)-2]]
	if prev.Index < i-structureLookback {
		return SwingPoint{}, SwingPoint{}, false
	}
	return latest, prev, true
}

// orderBlockFor returns the order block recorded at a BOS bar, or nil.
func (s *Series) orderBlockFor(bosIdx int) *OrderBlock {
	if bosIdx < 0 || bosIdx >= len(s.obIdxAt) || s.obIdxAt[bosIdx] < 0 {
		return nil
	}
	return &s.obs[s.obIdxAt[bosIdx]]
}

// recentOrderBlock returns the nearest order block on the given side whose
// bar is within stopScanLookback of i, or nil. It scans the arena from the
// newest entry and skips opposite-side blocks rather than stopping at them.
func (s *Series) recentOrderBlock(side Bias, i int) *OrderBlock {
	for k := len(s.obs) - 1; k >= 0; k-- {
		ob := &s.obs[k]
		if ob.Side != side || ob.Index > i || ob.Index < i-stopScanLookback {
			continue
		}
		return ob
	}
	return nil
}

// recentSwing returns the most recent confirmed swing of the given kind
// whose bar is within stopScanLookback of i, or nil.
func (s *Series) recentSwing(kind SwingKind, i int) *SwingPoint {
	list := s.swingLows
	if kind == SwingHigh {
		list = s.swingHighs
	}
	for k := len(list) - 1; k >= 0; k-- {
		sw := s.swings[list[k]]
		if sw.Index < i-stopScanLookback {
			return nil
		}
		if sw.Index <= i {
			return &SwingPoint{Index: sw.Index, Price: sw.Price, Kind: sw.Kind}
		}
	}
	return nil
}

// medianATR returns the median of the trailing positive ATR values ending
// at i, feeding the extreme-volatility veto.
func (s *Series) medianATR(i int) float64 {
	lo := i - atrMedianWindow + 1
	if lo < 0 {
		lo = 0
	}
	return medianPositive(s.atr[lo : i+1])
}
