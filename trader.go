// FILE: trader.go
// Package main – Position/risk state and trade execution.
//
// What’s here:
//   • Position state (entry/stop/target/size, lifecycle)
//   • RiskState: equity, daily anchors, adaptive multiplier, breaker
//   • Trader: owns the enriched series, classifier, broker, open book
//   • Stop resolution (order block → swing → fallback) and sizing
//
// The per-bar tick itself lives in step.go. A Trader is single-goroutine by
// design; the sweep gives each worker its own Trader, so there is no mutex
// here and no global state anywhere in the flow.

package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PositionState is the lifecycle of one trade.
type PositionState string

const (
	PositionPending PositionState = "PENDING"
	PositionOpen    PositionState = "OPEN"
	PositionClosed  PositionState = "CLOSED"
)

// riskMultiplierFloor bounds the adaptive multiplier from below so a long
// losing streak can never shrink sizing to zero.
const riskMultiplierFloor = 0.1

// Position is one open trade. Entry, stop and target are immutable after
// open; only State changes.
type Position struct {
	ID        string
	Side      OrderSide
	Entry     float64
	Stop      float64
	Target    float64
	Size      float64
	OpenTime  time.Time
	OpenIndex int
	State     PositionState
	Prob      float64 // classifier probability at entry, 1.0 in pass-through
}

// RiskState is the risk engine's mutable book.
type RiskState struct {
	Equity         float64
	DayStart       time.Time // UTC midnight anchoring the current trading day
	DayStartEquity float64
	RiskMultiplier float64
	BreakerActive  bool
	BreakerTrips   int

	lastResults []bool // trailing win/loss results, capped at 2
}

// Trader binds the pipeline together for one run.
type Trader struct {
	cfg    Config
	series *Series
	ml     *MetaLabeler
	broker Broker
	notify Notifier
	report *Report

	risk           RiskState
	open           []*Position
	lastEntryIndex int
	nextTradeSeq   int
}

// NewTrader wires a run. A configured model artifact that fails to load
// (including a shape mismatch) aborts here, before any bar is processed.
func NewTrader(cfg Config, broker Broker, notify Notifier) (*Trader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	ml := NewMetaLabeler(cfg)
	if cfg.ModelPath != "" {
		if err := ml.LoadArtifact(cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	return &Trader{
		cfg:    cfg,
		series: NewSeries(cfg),
		ml:     ml,
		broker: broker,
		notify: notify,
		report: NewReport(cfg),
		risk: RiskState{
			Equity:         cfg.StartEquity,
			DayStartEquity: cfg.StartEquity,
			RiskMultiplier: 1,
		},
		lastEntryIndex: -1 << 30,
	}, nil
}

// Report exposes the run ledger (finalized by the caller after the last bar).
func (t *Trader) Report() *Report { return t.report }

// Series exposes the enriched series, mainly for tests and the live loop.
func (t *Trader) Series() *Series { return t.series }

// ML exposes the classifier, mainly for artifact persistence.
func (t *Trader) ML() *MetaLabeler { return t.ml }

// OpenPositions returns the current open count.
func (t *Trader) OpenPositions() int { return len(t.open) }

// midnightUTC floors a timestamp to the UTC day boundary.
func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// updateDaily rolls the daily anchors on a UTC day change. The breaker
// resets here and only here: once tripped it holds to end of day.
func (t *Trader) updateDaily(barTime time.Time) {
	day := midnightUTC(barTime)
	if t.risk.DayStart.IsZero() {
		t.risk.DayStart = day
		t.risk.DayStartEquity = t.risk.Equity
		return
	}
	if day.After(t.risk.DayStart) {
		if t.risk.BreakerActive {
			log.Info().Time("day", day).Msg("risk: new day, circuit breaker reset")
		}
		t.risk.DayStart = day
		t.risk.DayStartEquity = t.risk.Equity
		t.risk.BreakerActive = false
	}
}

// applyOutcome folds one closed trade into the risk book: adaptive
// multiplier, daily drawdown, breaker.
func (t *Trader) applyOutcome(won bool) {
	r := &t.risk
	r.lastResults = append(r.lastResults, won)
	if len(r.lastResults) > 2 {
		r.lastResults = r.lastResults[1:]
	}
	if t.cfg.AdaptiveRiskEnabled {
		if !won && len(r.lastResults) == 2 && !r.lastResults[0] && !r.lastResults[1] {
			r.RiskMultiplier *= t.cfg.RiskReductionFactor
			if r.RiskMultiplier < riskMultiplierFloor {
				r.RiskMultiplier = riskMultiplierFloor
			}
			log.Debug().Float64("mult", r.RiskMultiplier).Msg("risk: consecutive losses, multiplier reduced")
		}
		if won && r.RiskMultiplier < 1 {
			r.RiskMultiplier /= t.cfg.RiskReductionFactor
			if r.RiskMultiplier > 1 {
				r.RiskMultiplier = 1
			}
			log.Debug().Float64("mult", r.RiskMultiplier).Msg("risk: win, multiplier recovering")
		}
	}
	if t.cfg.CircuitBreakerEnabled && !r.BreakerActive && r.DayStartEquity > 0 {
		dd := (r.Equity - r.DayStartEquity) / r.DayStartEquity
		if dd < -t.cfg.DailyLossLimit {
			r.BreakerActive = true
			r.BreakerTrips++
			incBreakerTrips()
			log.Warn().Float64("daily_dd", dd).Msg("risk: daily loss limit hit, circuit breaker engaged")
		}
	}
}

// positionSize converts account risk into units at the given stop distance.
func (t *Trader) positionSize(stopDistance float64) float64 {
	if stopDistance <= 0 {
		return 0
	}
	riskAmount := t.risk.Equity * t.cfg.RiskPerTrade * t.risk.RiskMultiplier
	return riskAmount / stopDistance
}

// rewardRatio picks the session-adaptive RR for the bar, or the flat
// configured ratio when adaptation is off.
func (t *Trader) rewardRatio(barTime time.Time) float64 {
	if !t.cfg.SessionAdaptiveRR {
		return t.cfg.RewardRatio
	}
	london, newYork := sessionFlags(barTime, t.series.loc)
	switch {
	case london:
		return t.cfg.RRLondon
	case newYork:
		return t.cfg.RRNewYork
	default:
		return t.cfg.RRDefault
	}
}

// resolveStop places the protective stop: order-block far edge first, then
// the most recent confirmed swing, then a fixed pip fallback off the bar
// extreme. Priority order is deliberate; the order block is structural, the
// fallback is a guess.
func (t *Trader) resolveStop(sig *ConfluenceSignal) float64 {
	i := t.series.LastIndex()
	buf := t.cfg.StopBufferPips * t.cfg.PipSize
	if t.cfg.OrderBlockStopEnabled {
		if ob := t.series.recentOrderBlock(sig.Bias, i); ob != nil {
			if sig.Bias == BiasBull {
				return ob.Low - buf
			}
			return ob.High + buf
		}
	}
	if sig.Bias == BiasBull {
		if sw := t.series.recentSwing(SwingLow, i); sw != nil {
			return sw.Price - buf
		}
		return t.series.candles[i].Low - t.cfg.FallbackStopPips*t.cfg.PipSize
	}
	if sw := t.series.recentSwing(SwingHigh, i); sw != nil {
		return sw.Price + buf
	}
	return t.series.candles[i].High + t.cfg.FallbackStopPips*t.cfg.PipSize
}

// closePosition books an exit fill and updates risk, labels and the ledger.
func (t *Trader) closePosition(pos *Position, price float64, outcome string, barTime time.Time) {
	var pnl float64
	if pos.Side == SideBuy {
		pnl = (price - pos.Entry) * pos.Size
	} else {
		pnl = (pos.Entry - price) * pos.Size
	}
	pos.State = PositionClosed
	t.risk.Equity += pnl
	won := outcome == "target"
	t.ml.Resolve(pos.ID, won)
	t.applyOutcome(won)

	t.report.addTrade(TradeRecord{
		ID:        pos.ID,
		Side:      pos.Side,
		OpenTime:  pos.OpenTime,
		CloseTime: barTime,
		Entry:     pos.Entry,
		Stop:      pos.Stop,
		Target:    pos.Target,
		Size:      pos.Size,
		Outcome:   outcome,
		PnL:       pnl,
		Prob:      pos.Prob,
	})
	t.report.markEquity(t.risk.Equity)
	result := "loss"
	if won {
		result = "win"
	}
	incTrade(result)
	log.Info().Str("id", pos.ID).Str("side", string(pos.Side)).Str("outcome", outcome).
		Float64("pnl", pnl).Float64("equity", t.risk.Equity).Msg("trade closed")
	t.notify.Notify(fmt.Sprintf("EXIT %s %s %s pnl=%.2f equity=%.2f", pos.ID, pos.Side, outcome, pnl, t.risk.Equity))
}

// nextTradeID issues sequential trade IDs so two runs over the same candles
// produce identical ledgers.
func (t *Trader) nextTradeID() string {
	t.nextTradeSeq++
	return fmt.Sprintf("T-%06d", t.nextTradeSeq)
}
