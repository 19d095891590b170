// FILE: indicators.go
// Package main – Technical helpers shared by the enricher and the matcher.
//
// This file implements lightweight primitives:
//   • trueRange / wilderNext – incremental ATR building blocks
//   • medianPositive         – rolling median for the volatility veto
//   • momentum / meanVolume  – feature-vector helpers
//
// Notes
//   - The enricher updates ATR incrementally per appended bar, so there is
//     no whole-slice ATR function here; keep these fast and allocation-light.
package main

import (
	"math"
	"sort"
)

// trueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(c, prev Candle) float64 {
	tr := c.High - c.Low
	if v := math.Abs(c.High - prev.Close); v > tr {
		tr = v
	}
	if v := math.Abs(c.Low - prev.Close); v > tr {
		tr = v
	}
	return tr
}

// wilderNext folds one true range into a Wilder-smoothed average:
// atr' = (atr*(n-1) + tr) / n.
func wilderNext(prevATR, tr float64, n int) float64 {
	return (prevATR*float64(n-1) + tr) / float64(n)
}

// medianPositive returns the median of the positive entries of vals, or 0
// when none are positive. The input is not modified.
func medianPositive(vals []float64) float64 {
	pos := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v > 0 {
			pos = append(pos, v)
		}
	}
	if len(pos) == 0 {
		return 0
	}
	sort.Float64s(pos)
	mid := len(pos) / 2
	if len(pos)%2 == 1 {
		return pos[mid]
	}
	return (pos[mid-1] + pos[mid]) / 2
}

// momentum returns the n-bar close-to-close return ending at i, or 0 when
// the lookback runs off the front of the series.
func momentum(c []Candle, i, n int) float64 {
	if i-n < 0 {
		return 0
	}
	base := c[i-n].Close
	if base == 0 {
		return 0
	}
	return (c[i].Close - base) / base
}

// rangeSpan is the highest high minus the lowest low over the n bars ending
// at i (inclusive), shrinking the window at the front of the series.
func rangeSpan(c []Candle, i, n int) float64 {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	if i < lo {
		return 0
	}
	hi, lw := c[lo].High, c[lo].Low
	for j := lo + 1; j <= i; j++ {
		if c[j].High > hi {
			hi = c[j].High
		}
		if c[j].Low < lw {
			lw = c[j].Low
		}
	}
	return hi - lw
}

// meanVolume averages Volume over the n bars ending at i (inclusive),
// shrinking the window at the front of the series.
func meanVolume(c []Candle, i, n int) float64 {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	if i < lo {
		return 0
	}
	var sum float64
	for j := lo; j <= i; j++ {
		sum += c[j].Volume
	}
	return sum / float64(i-lo+1)
}
