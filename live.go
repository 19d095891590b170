// FILE: live.go
// Package main – Live loop and the HTTP candle feed client.
//
// runLive drives the trading loop in real time:
//   • Warm up by replaying recent feed history through step(), which also
//     trains the classifier exactly as a backtest over the same bars would.
//   • Every intervalSec seconds, fetch the latest candles and step any bar
//     newer than the last one seen.
//
// Feed fetches run behind a gobreaker circuit breaker: a flapping feed
// trips the breaker and the loop idles until the breaker half-opens,
// instead of hammering a dead endpoint.
//
// Session classification uses bar timestamps, never wall clock, so a live
// session replayed later as a backtest reaches the same decisions.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// httpFeed pulls candles from a JSON endpoint:
//
//	GET {base}/candles?symbol=EURUSD&timeframe=15m&limit=300
//
// responding with an array of {time, open, high, low, close, volume},
// oldest first. Time is RFC3339 or UNIX seconds.
type httpFeed struct {
	base   string
	client *http.Client
}

// NewHTTPFeed builds a feed client for the given base URL.
func NewHTTPFeed(base string) *httpFeed {
	return &httpFeed{base: base, client: &http.Client{Timeout: 10 * time.Second}}
}

func (f *httpFeed) Name() string { return "http:" + f.base }

// feedCandle keeps the timestamp raw: feeds emit it as an RFC3339 string or
// as UNIX seconds, and parseTimeFlexible handles both.
type feedCandle struct {
	Time   json.RawMessage `json:"time"`
	Open   float64         `json:"open"`
	High   float64         `json:"high"`
	Low    float64         `json:"low"`
	Close  float64         `json:"close"`
	Volume float64         `json:"volume"`
}

func (f *httpFeed) RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/candles?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed: status %d: %s", resp.StatusCode, body)
	}
	var rows []feedCandle
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("feed: decode: %w", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		ts, err := parseTimeFlexible(strings.Trim(string(r.Time), `"`))
		if err != nil {
			continue
		}
		out = append(out, Candle{Time: ts, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	sortCandles(out)
	return out, nil
}

// newFeedBreaker wraps feed fetches. Trips after 5 consecutive failures,
// retries after 30s.
func newFeedBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("feed: breaker state change")
		},
	})
}

// fetchCandles runs one guarded feed call.
func fetchCandles(ctx context.Context, cb *gobreaker.CircuitBreaker, feed Feed, symbol, timeframe string, limit int) ([]Candle, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return feed.RecentCandles(ctx, symbol, timeframe, limit)
	})
	if err != nil {
		incFeedErrors()
		return nil, err
	}
	return out.([]Candle), nil
}

// runLive executes the real-time loop with cadence intervalSec (seconds).
func runLive(ctx context.Context, trader *Trader, feed Feed, intervalSec int) error {
	if intervalSec <= 0 {
		intervalSec = 60
	}
	cfg := trader.cfg
	log.Info().Str("feed", feed.Name()).Str("broker", trader.broker.Name()).
		Str("symbol", cfg.Symbol).Str("timeframe", cfg.Timeframe).Msg("live: starting")

	cb := newFeedBreaker("candle-feed")

	// Warmup: replay history through the same step path the backtest uses.
	history, err := fetchCandles(ctx, cb, feed, cfg.Symbol, cfg.Timeframe, warmupBars*6)
	if err != nil {
		return fmt.Errorf("live: warmup fetch: %w", err)
	}
	if len(history) < warmupBars {
		return fmt.Errorf("live: warmup returned %d candles, need >=%d", len(history), warmupBars)
	}
	for _, c := range history {
		if _, err := trader.step(ctx, c); err != nil {
			return fmt.Errorf("live: warmup replay: %w", err)
		}
	}
	lastTime := history[len(history)-1].Time
	log.Info().Int("bars", len(history)).Time("last", lastTime).Msg("live: warmup replay done")

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("live: context done, shutting down")
			if cfg.ModelPath != "" {
				if err := trader.ml.SaveArtifact(cfg.ModelPath); err != nil {
					log.Error().Err(err).Msg("live: artifact save failed")
				}
			}
			return nil
		case <-ticker.C:
		}

		recent, err := fetchCandles(ctx, cb, feed, cfg.Symbol, cfg.Timeframe, 3)
		if err != nil {
			log.Warn().Err(err).Msg("live: candle fetch failed")
			continue
		}
		for _, c := range recent {
			if !c.Time.After(lastTime) {
				continue
			}
			msg, err := trader.step(ctx, c)
			if err != nil {
				log.Error().Err(err).Msg("live: step failed")
				continue
			}
			lastTime = c.Time
			log.Info().Time("bar", c.Time).Str("msg", msg).Float64("equity", trader.risk.Equity).Msg("live: bar processed")
		}
	}
}
