// FILE: report.go
// Package main – Run report: trade ledger, rejection counters, summary.
//
// Every run (backtest, live session, sweep combination) owns one Report.
// Records append in event order and are never rewritten, so two runs over
// identical candles produce byte-identical marshaled reports.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TradeRecord is one position from open to close. Outcome is "target",
// "stop", or "open" for a position still live when the run ended.
type TradeRecord struct {
	ID        string    `json:"id"`
	Side      OrderSide `json:"side"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time,omitempty"`
	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
	Size      float64   `json:"size"`
	Outcome   string    `json:"outcome"`
	PnL       float64   `json:"pnl"`
	Prob      float64   `json:"prob"`
}

// Rejections counts why bars produced no entry, keyed by filter.
type Rejections map[RejectReason]int

func (r Rejections) bump(reason RejectReason) {
	if reason == rejectNone {
		return
	}
	r[reason]++
	incRejection(string(reason))
}

// Summary is the headline result of a run.
type Summary struct {
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	NetPnL         float64 `json:"net_pnl"`
	NetPnLPct      float64 `json:"net_pnl_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	FinalEquity    float64 `json:"final_equity"`
	BreakerTrips   int     `json:"breaker_trips"`
	ModelRefits    int     `json:"model_refits"`
}

// Report accumulates a full run and marshals to JSON.
type Report struct {
	Symbol     string        `json:"symbol"`
	Timeframe  string        `json:"timeframe"`
	Start      time.Time     `json:"start,omitempty"`
	End        time.Time     `json:"end,omitempty"`
	Records    []TradeRecord `json:"records"`
	Rejections Rejections    `json:"rejections"`
	Summary    Summary       `json:"summary"`

	startEquity float64
	peakEquity  float64
	maxDD       float64 // most negative peak-relative excursion, e.g. -0.042
}

// NewReport opens a ledger for one run.
func NewReport(cfg Config) *Report {
	return &Report{
		Symbol:      cfg.Symbol,
		Timeframe:   cfg.Timeframe,
		Rejections:  make(Rejections),
		startEquity: cfg.StartEquity,
		peakEquity:  cfg.StartEquity,
	}
}

// addTrade appends a finished (or still-open) trade.
func (r *Report) addTrade(rec TradeRecord) {
	r.Records = append(r.Records, rec)
}

// markEquity folds a post-close equity point into the drawdown track.
func (r *Report) markEquity(equity float64) {
	if equity > r.peakEquity {
		r.peakEquity = equity
	}
	if r.peakEquity > 0 {
		if dd := (equity - r.peakEquity) / r.peakEquity; dd < r.maxDD {
			r.maxDD = dd
		}
	}
	setEquityGauge(equity)
}

// finalize computes the summary. Call once, after the last bar.
func (r *Report) finalize(finalEquity float64, breakerTrips, refits int) {
	s := &r.Summary
	for _, rec := range r.Records {
		switch rec.Outcome {
		case "target":
			s.Trades++
			s.Wins++
		case "stop":
			s.Trades++
			s.Losses++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	s.NetPnL = finalEquity - r.startEquity
	if r.startEquity > 0 {
		s.NetPnLPct = s.NetPnL / r.startEquity * 100
	}
	s.MaxDrawdownPct = -r.maxDD * 100
	s.FinalEquity = finalEquity
	s.BreakerTrips = breakerTrips
	s.ModelRefits = refits
	if len(r.Records) > 0 {
		r.Start = r.Records[0].OpenTime
		last := r.Records[len(r.Records)-1]
		if !last.CloseTime.IsZero() {
			r.End = last.CloseTime
		} else {
			r.End = last.OpenTime
		}
	}
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func (r *Report) String() string {
	s := r.Summary
	return fmt.Sprintf("%s %s trades=%d winrate=%.1f%% pnl=%.2f (%.2f%%) maxDD=%.2f%% equity=%.2f",
		r.Symbol, r.Timeframe, s.Trades, s.WinRate*100, s.NetPnL, s.NetPnLPct, s.MaxDrawdownPct, s.FinalEquity)
}
