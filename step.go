// FILE: step.go — Synchronized per-bar tick (EXIT → OPEN).
//
// Overview
//   step(ctx, candle) folds one closed bar into the engine: enrich the
//   series, settle exits, then evaluate one new entry — in that strict
//   order. It returns a short, human-readable status for logs and an error
//   only when a broker call fails.
//
// Deterministic Flow
//   1) Append + validate the bar (a bad bar is skipped, state untouched)
//   2) Daily roll (UTC): resets daily anchors and the circuit breaker
//   3) EXIT scan, oldest position first; at most ONE close per bar, and a
//      bar touching both stop and target settles as a stop
//   4) OPEN evaluation behind the gate chain:
//      breaker → cooldown → volatility veto → session → confluence →
//      classifier → stop distance → concurrency
//   5) At most ONE open per bar
//
// Exits always run: cooldown, session windows and an engaged breaker gate
// new risk, never the settlement of risk already on.
package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// step processes one closed candle end to end.
func (t *Trader) step(ctx context.Context, c Candle) (string, error) {
	if err := t.series.Append(c); err != nil {
		t.report.Rejections.bump(rejectInvalidBar)
		log.Warn().Err(err).Msg("[DEBUG] bar rejected")
		return "SKIP invalid_bar", nil
	}
	i := t.series.LastIndex()
	t.updateDaily(c.Time)

	exitMsg := t.settleExits(c)

	msg, err := t.evaluateEntry(ctx, c, i)
	if err != nil {
		return exitMsg, err
	}
	if exitMsg != "" {
		if msg == "" {
			return exitMsg, nil
		}
		return exitMsg + "; " + msg, nil
	}
	return msg, nil
}

// evaluateEntry walks the gate chain and opens at most one position.
func (t *Trader) evaluateEntry(ctx context.Context, c Candle, i int) (string, error) {
	if !t.series.Ready() {
		t.report.Rejections.bump(rejectWarmup)
		return "WARMUP", nil
	}

	if t.risk.BreakerActive {
		t.report.Rejections.bump(rejectBreaker)
		return "HOLD circuit_breaker", nil
	}
	if i-t.lastEntryIndex < t.cfg.CooldownBars {
		t.report.Rejections.bump(rejectCooldown)
		return "HOLD cooldown", nil
	}
	if t.cfg.VolatilityFilterEnabled {
		atr := t.series.ATR(i)
		if med := t.series.medianATR(i); med > 0 && atr > t.cfg.VolatilityMultiplierMax*med {
			t.report.Rejections.bump(rejectVolatility)
			log.Debug().Float64("atr", atr).Float64("median", med).Msg("TRACE volatility veto")
			return "SKIP volatility", nil
		}
	}
	if t.cfg.SessionFilterEnabled {
		london, newYork := sessionFlags(c.Time, t.series.loc)
		if !london && !newYork {
			t.report.Rejections.bump(rejectSession)
			return "FLAT session", nil
		}
	}

	sig, why := findConfluence(t.series, t.cfg)
	if sig == nil {
		t.report.Rejections.bump(why)
		return "FLAT " + string(why), nil
	}

	prob := 1.0
	if t.cfg.ClassifierEnabled {
		p, passthrough := t.ml.Score(sig.Features)
		prob = p
		if !passthrough && p < t.cfg.ClassifierThreshold {
			t.report.Rejections.bump(rejectClassifier)
			log.Debug().Float64("p", p).Float64("threshold", t.cfg.ClassifierThreshold).Msg("TRACE classifier veto")
			return "FLAT classifier", nil
		}
	}

	entry := c.Close
	stop := t.resolveStop(sig)
	dist := entry - stop
	if sig.Bias == BiasBear {
		dist = stop - entry
	}
	if dist <= t.cfg.MinStopPips*t.cfg.PipSize {
		t.report.Rejections.bump(rejectStopTooClose)
		return "FLAT sl_too_close", nil
	}

	if len(t.open) >= t.cfg.MaxConcurrentPositions {
		t.report.Rejections.bump(rejectMaxPositions)
		return "HOLD max_positions", nil
	}

	size := t.positionSize(dist)
	if size <= 0 {
		t.report.Rejections.bump(rejectStopTooClose)
		return "FLAT sl_too_close", nil
	}

	side := SideBuy
	target := entry + dist*t.rewardRatio(c.Time)
	if sig.Bias == BiasBear {
		side = SideSell
		target = entry - dist*t.rewardRatio(c.Time)
	}

	if _, err := t.broker.PlaceMarket(ctx, t.cfg.Symbol, side, size, entry); err != nil {
		return "", fmt.Errorf("step: place entry: %w", err)
	}

	pos := &Position{
		ID:        t.nextTradeID(),
		Side:      side,
		Entry:     entry,
		Stop:      stop,
		Target:    target,
		Size:      size,
		OpenTime:  c.Time,
		OpenIndex: i,
		State:     PositionOpen,
		Prob:      prob,
	}
	t.open = append(t.open, pos)
	t.lastEntryIndex = i
	t.ml.Track(pos.ID, sig.Features)
	setOpenPositions(len(t.open))
	log.Info().Str("id", pos.ID).Str("side", string(side)).Float64("entry", entry).
		Float64("stop", stop).Float64("target", target).Float64("size", size).
		Float64("p", prob).Msg("trade opened")
	t.notify.Notify(fmt.Sprintf("OPEN %s %s @ %.5f sl=%.5f tp=%.5f p=%.2f", pos.ID, side, entry, stop, target, prob))
	return fmt.Sprintf("OPEN %s %s", pos.ID, side), nil
}

// settleExits checks open positions oldest-first against the bar extremes
// and closes at most one. Returns a non-empty message when a close fired.
func (t *Trader) settleExits(c Candle) string {
	for idx, pos := range t.open {
		price, outcome := exitLevel(pos, c)
		if outcome == "" {
			continue
		}
		t.open = append(t.open[:idx], t.open[idx+1:]...)
		t.closePosition(pos, price, outcome, c.Time)
		setOpenPositions(len(t.open))
		return fmt.Sprintf("EXIT %s %s", pos.ID, outcome)
	}
	return ""
}

// exitLevel resolves whether the bar touched the position's stop or target.
// A bar spanning both settles as a stop.
func exitLevel(pos *Position, c Candle) (price float64, outcome string) {
	if pos.Side == SideBuy {
		if c.Low <= pos.Stop {
			return pos.Stop, "stop"
		}
		if c.High >= pos.Target {
			return pos.Target, "target"
		}
		return 0, ""
	}
	if c.High >= pos.Stop {
		return pos.Stop, "stop"
	}
	if c.Low <= pos.Target {
		return pos.Target, "target"
	}
	return 0, ""
}
