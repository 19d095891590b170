// FILE: backtest.go
// Package main – CSV loader and backtest runner.
//
// What’s here:
//   • loadCSV(path) -> []Candle : reads time,open,high,low,close,volume
//   • runBacktest(ctx, candles, cfg) : single-threaded bar replay
//
// The backtest and the live loop share the same step() code path; the only
// difference is where candles come from. Two backtests over the same CSV
// and config produce byte-identical reports.
//
// Notes:
//   • Time column accepts RFC3339 or UNIX seconds.
//   • Unknown columns are ignored; headers are case-insensitive.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// loadCSV reads a generic candle CSV with headers:
// time|timestamp, open, high, low, close, volume
func loadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Candle
	var headers []string
	rowIdx := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := map[string]string{}
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		ts := first(row, "time", "timestamp", "date")
		op := first(row, "open")
		hp := first(row, "high")
		lp := first(row, "low")
		cp := first(row, "close")
		vp := first(row, "volume", "vol", "tickvol")
		if ts == "" || op == "" || cp == "" {
			continue
		}
		tt, err := parseTimeFlexible(ts)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(op, 64)
		h, _ := strconv.ParseFloat(hp, 64)
		l, _ := strconv.ParseFloat(lp, 64)
		c, _ := strconv.ParseFloat(cp, 64)
		v, _ := strconv.ParseFloat(vp, 64)
		out = append(out, Candle{Time: tt, Open: o, High: h, Low: l, Close: c, Volume: v})
		rowIdx++
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("backtest: no usable rows in %s", path)
	}

	sortCandles(out)
	return out, nil
}

// parseTimeFlexible supports RFC3339 or UNIX seconds.
func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

// sortCandles ensures ascending time.
func sortCandles(c []Candle) {
	sort.Slice(c, func(i, j int) bool { return c[i].Time.Before(c[j].Time) })
}

// first returns the first non-empty value for keys in m.
func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// runBacktest replays candles through a fresh Trader and returns the
// finalized report. quiet suppresses progress logs (the sweep replays the
// same data hundreds of times).
func runBacktest(ctx context.Context, candles []Candle, cfg Config, quiet bool) (*Report, error) {
	if len(candles) < warmupBars {
		return nil, fmt.Errorf("backtest: need >=%d candles, have %d", warmupBars, len(candles))
	}
	trader, err := NewTrader(cfg, NewPaperBroker(), NopNotifier{})
	if err != nil {
		return nil, err
	}

	for i, c := range candles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		msg, err := trader.step(ctx, c)
		if err != nil {
			return nil, err
		}
		if !quiet && i%500 == 0 {
			log.Debug().Int("bar", i).Str("msg", msg).Float64("equity", trader.risk.Equity).Msg("[BT] progress")
		}
	}

	rep := trader.Report()
	rep.finalize(trader.risk.Equity, trader.risk.BreakerTrips, trader.ml.refits)
	if !quiet {
		log.Info().Str("summary", rep.String()).Int("window", trader.ml.WindowSize()).
			Int("pending", trader.ml.PendingCount()).Msg("backtest complete")
	}
	if cfg.ModelPath != "" {
		if err := trader.ml.SaveArtifact(cfg.ModelPath); err != nil {
			return rep, err
		}
		if !quiet {
			log.Info().Str("path", cfg.ModelPath).Msg("model: artifact saved")
		}
	}
	return rep, nil
}
