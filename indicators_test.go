// FILE: indicators_test.go
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrueRange(t *testing.T) {
	prev := mkBar(tb(0), 1.10, 1.12, 1.09, 1.11)
	// Plain bar: range dominates.
	c := mkBar(tb(1), 1.11, 1.13, 1.10, 1.12)
	assert.InDelta(t, 0.03, trueRange(c, prev), 1e-12)

	// Gap up: distance from the previous close dominates.
	gap := mkBar(tb(1), 1.15, 1.16, 1.15, 1.155)
	assert.InDelta(t, 0.05, trueRange(gap, prev), 1e-12)

	// Gap down.
	drop := mkBar(tb(1), 1.06, 1.065, 1.06, 1.062)
	assert.InDelta(t, 0.05, trueRange(drop, prev), 1e-12)
}

func TestWilderNext(t *testing.T) {
	assert.InDelta(t, 0.001, wilderNext(0.001, 0.001, 14), 1e-12)
	// (0.0010*13 + 0.0024) / 14
	assert.InDelta(t, 0.0011, wilderNext(0.0010, 0.0024, 14), 1e-12)
}

func TestMedianPositive(t *testing.T) {
	assert.Equal(t, 0.0, medianPositive(nil))
	assert.Equal(t, 0.0, medianPositive([]float64{0, -1, 0}))
	assert.Equal(t, 3.0, medianPositive([]float64{5, 0, 3, -2, 1}))
	assert.Equal(t, 2.5, medianPositive([]float64{4, 1, 2, 3}))

	in := []float64{3, 1, 2}
	_ = medianPositive(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input order untouched")
}

func TestMomentum(t *testing.T) {
	c := []Candle{
		mkBar(tb(0), 1, 1, 1, 1.00),
		mkBar(tb(1), 1, 2, 1, 1.10),
		mkBar(tb(2), 1, 2, 1, 1.21),
	}
	assert.InDelta(t, 0.21, momentum(c, 2, 2), 1e-12)
	assert.InDelta(t, 0.10, momentum(c, 2, 1), 1e-12)
	assert.Equal(t, 0.0, momentum(c, 1, 5), "lookback off the front")
}

func TestRangeSpan(t *testing.T) {
	c := []Candle{
		mkBar(tb(0), 1.00, 1.05, 0.98, 1.01),
		mkBar(tb(1), 1.01, 1.09, 1.00, 1.08),
		mkBar(tb(2), 1.08, 1.10, 1.02, 1.03),
	}
	assert.InDelta(t, 0.12, rangeSpan(c, 2, 3), 1e-12)
	assert.InDelta(t, 0.10, rangeSpan(c, 2, 2), 1e-12)
	assert.InDelta(t, 0.12, rangeSpan(c, 2, 10), 1e-12, "window shrinks at the front")
}

func TestMeanVolume(t *testing.T) {
	c := []Candle{
		{Time: tb(0), Open: 1, High: 1, Low: 1, Close: 1, Volume: 10},
		{Time: tb(1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 20},
		{Time: tb(2), Open: 1, High: 1, Low: 1, Close: 1, Volume: 30},
	}
	assert.InDelta(t, 25, meanVolume(c, 2, 2), 1e-12)
	assert.InDelta(t, 20, meanVolume(c, 2, 10), 1e-12, "window shrinks at the front")
}
