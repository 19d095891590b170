// FILE: sweep.go
// Package main – Concurrent parameter sweep over a shared candle slice.
//
// The sweep replays the same backtest across a grid of risk/filter
// combinations. Workers share one immutable []Candle; every mutable thing
// (Trader, Series, MetaLabeler, Report) is built per job, so the only
// synchronization is the jobs channel and the pruner.
//
// Scoring blends the headline stats into one composite:
//
//	0.40·pnl + 0.30·sharpe + 0.20·winrate + 0.10·(1 − drawdown)
//
// Branch pruning: combinations sharing a (risk, reward) prefix form a
// branch. Once a branch has at least pruneMinSamples finished runs, a
// trailing mean composite below pruneCutoff skips the rest of the branch.
// Pruning never fires earlier, so a slow-starting branch is not killed on
// one bad draw.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	pruneMinSamples = 8
	pruneTrailing   = 8
	pruneCutoff     = 0.05
	sweepTopN       = 20
)

// SweepParams is the tunable subset the grid walks.
type SweepParams struct {
	RiskPerTrade        float64 `json:"risk_per_trade"`
	RewardRatio         float64 `json:"reward_ratio"`
	MaxConcurrent       int     `json:"max_concurrent_positions"`
	CooldownBars        int     `json:"cooldown_bars"`
	ClassifierThreshold float64 `json:"classifier_threshold"`
	ATRFilter           bool    `json:"atr_filter_enabled"`
	CircuitBreaker      bool    `json:"circuit_breaker_enabled"`
}

func (p SweepParams) branch() string {
	return fmt.Sprintf("r%.3f_rr%.1f", p.RiskPerTrade, p.RewardRatio)
}

// SweepResult is one combination's outcome.
type SweepResult struct {
	Params    SweepParams `json:"params"`
	Trades    int         `json:"trades"`
	PnLPct    float64     `json:"pnl_pct"`
	WinRate   float64     `json:"win_rate"`
	Sharpe    float64     `json:"sharpe"`
	MaxDDPct  float64     `json:"max_dd_pct"`
	Composite float64     `json:"composite"`
	Skipped   bool        `json:"skipped,omitempty"`

	order int
}

type sweepJob struct {
	order  int
	params SweepParams
}

// buildSweepGrid enumerates combinations in a fixed order.
func buildSweepGrid() []sweepJob {
	risks := []float64{0.005, 0.01, 0.02}
	ratios := []float64{1.5, 1.8, 2.0, 2.5}
	concs := []int{1, 2, 3}
	cooldowns := []int{3, 5, 8}
	thresholds := []float64{0.3, 0.4, 0.5, 0.6}
	bools := []bool{true, false}

	var jobs []sweepJob
	order := 0
	for _, r := range risks {
		for _, rr := range ratios {
			for _, mc := range concs {
				for _, cd := range cooldowns {
					for _, th := range thresholds {
						for _, af := range bools {
							for _, cb := range bools {
								jobs = append(jobs, sweepJob{
									order: order,
									params: SweepParams{
										RiskPerTrade:        r,
										RewardRatio:         rr,
										MaxConcurrent:       mc,
										CooldownBars:        cd,
										ClassifierThreshold: th,
										ATRFilter:           af,
										CircuitBreaker:      cb,
									},
								})
								order++
							}
						}
					}
				}
			}
		}
	}
	return jobs
}

// applyParams overlays one combination on the base config.
func applyParams(base Config, p SweepParams) Config {
	cfg := base
	cfg.RiskPerTrade = p.RiskPerTrade
	cfg.RewardRatio = p.RewardRatio
	cfg.SessionAdaptiveRR = false // the grid owns the ratio
	cfg.MaxConcurrentPositions = p.MaxConcurrent
	cfg.CooldownBars = p.CooldownBars
	cfg.ClassifierThreshold = p.ClassifierThreshold
	cfg.ATRFilterEnabled = p.ATRFilter
	cfg.CircuitBreakerEnabled = p.CircuitBreaker
	cfg.ModelPath = ""
	cfg.WebhookURL = ""
	return cfg
}

// pruner tracks trailing branch scores under a mutex.
type pruner struct {
	mu      sync.Mutex
	enabled bool
	scores  map[string][]float64
}

func newPruner(enabled bool) *pruner {
	return &pruner{enabled: enabled, scores: make(map[string][]float64)}
}

func (p *pruner) shouldSkip(branch string) bool {
	if !p.enabled {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.scores[branch]
	if len(s) < pruneMinSamples {
		return false
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum/float64(len(s)) < pruneCutoff
}

func (p *pruner) record(branch string, score float64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := append(p.scores[branch], score)
	if len(s) > pruneTrailing {
		s = s[len(s)-pruneTrailing:]
	}
	p.scores[branch] = s
}

// compositeScore folds one report into the blended score on [0, 1].
func compositeScore(rep *Report) (pnlPct, winRate, sharpe, ddPct, score float64) {
	s := rep.Summary
	pnlPct = s.NetPnLPct
	winRate = s.WinRate
	ddPct = s.MaxDrawdownPct
	if s.Trades > 0 {
		sharpe = winRate * math.Sqrt(float64(s.Trades)) / (1 + ddPct/100)
	}
	score = 0.40*clamp01(pnlPct/10) +
		0.30*clamp01(sharpe/2) +
		0.20*winRate +
		0.10*clamp01(1-ddPct/100)
	return
}

// runSweep fans the grid across workers and returns all results sorted by
// composite score, best first, with grid order as the deterministic
// tie-break.
func runSweep(ctx context.Context, candles []Candle, base Config, workers int, prune bool) ([]SweepResult, error) {
	if len(candles) < warmupBars {
		return nil, fmt.Errorf("sweep: need >=%d candles, have %d", warmupBars, len(candles))
	}
	if workers < 1 {
		workers = 1
	}
	grid := buildSweepGrid()
	log.Info().Int("combinations", len(grid)).Int("workers", workers).Bool("prune", prune).
		Msg("sweep: starting")
	start := time.Now()

	jobs := make(chan sweepJob)
	results := make([]SweepResult, len(grid))
	pr := newPruner(prune)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := SweepResult{Params: job.params, order: job.order}
				branch := job.params.branch()
				if pr.shouldSkip(branch) {
					res.Skipped = true
					results[job.order] = res
					continue
				}
				cfg := applyParams(base, job.params)
				rep, err := runBacktest(ctx, candles, cfg, true)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					res.Skipped = true
					results[job.order] = res
					continue
				}
				res.PnLPct, res.WinRate, res.Sharpe, res.MaxDDPct, res.Composite = compositeScore(rep)
				res.Trades = rep.Summary.Trades
				results[job.order] = res
				pr.record(branch, res.Composite)
			}
		}()
	}

	for _, job := range grid {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- job:
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Composite != results[j].Composite {
			return results[i].Composite > results[j].Composite
		}
		return results[i].order < results[j].order
	})
	log.Info().Dur("elapsed", time.Since(start)).Msg("sweep: complete")
	return results, nil
}

// saveTopResults writes the best combinations to <dir>/top_results.json.
func saveTopResults(results []SweepResult, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sweep: mkdir %s: %w", dir, err)
	}
	top := make([]SweepResult, 0, sweepTopN)
	for _, r := range results {
		if r.Skipped {
			continue
		}
		top = append(top, r)
		if len(top) == sweepTopN {
			break
		}
	}
	raw, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return fmt.Errorf("sweep: encode: %w", err)
	}
	path := filepath.Join(dir, "top_results.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("sweep: write %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("count", len(top)).Msg("sweep: top results saved")
	return nil
}
