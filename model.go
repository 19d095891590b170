// FILE: model.go
// Package main – Meta-label classifier for signal quality.
//
// An L2-regularized logistic head scores each confluence signal with the
// probability that the trade reaches its target before its stop. Labels are
// two-phase: features are parked when a position opens (pending) and become
// a training sample only when the position closes (resolved). The model
// retrains from a rolling window of recent samples, so it tracks regime
// drift instead of averaging over all history.
//
// Everything random flows through one seeded source, so two runs over the
// same candles produce identical weights.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrModelShape marks a persisted artifact whose feature dimensionality does
// not match this binary. Fatal at load: scoring would be silently garbage.
var ErrModelShape = errors.New("model artifact feature dimension mismatch")

// LogitModel is the regularized logistic core.
type LogitModel struct {
	W       []float64 `json:"w"`
	B       float64   `json:"b"`
	L2      float64   `json:"l2"`
	FeatDim int       `json:"feat_dim"`
}

func newLogitModel(dim int, rng *rand.Rand) *LogitModel {
	w := make([]float64, dim)
	for i := range w {
		w[i] = rng.NormFloat64() * 0.01
	}
	return &LogitModel{W: w, L2: 1e-3, FeatDim: dim}
}

// sigmoid returns 1/(1+e^-x) with clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// Predict scores one feature vector. The dimension guard is a contract
// check; callers build vectors with buildFeatures so it cannot fire in
// normal operation.
func (m *LogitModel) Predict(x []float64) (float64, error) {
	if len(x) != m.FeatDim {
		return 0, fmt.Errorf("%w: got %d want %d", ErrModelShape, len(x), m.FeatDim)
	}
	z := m.B
	for i := range x {
		z += m.W[i] * x[i]
	}
	return sigmoid(z), nil
}

// fitMiniBatch runs mini-batch SGD on cross-entropy + L2, keeping the best
// epoch's weights and stopping early when loss stalls.
func (m *LogitModel) fitMiniBatch(feats [][]float64, labels []float64, lr float64, epochs, batch int, rng *rand.Rand) {
	if len(feats) == 0 || len(feats) != len(labels) {
		return
	}
	bestW := append([]float64(nil), m.W...)
	bestB := m.B
	bestLoss := math.MaxFloat64
	patience := 3
	wait := 0

	for e := 0; e < epochs; e++ {
		perm := rng.Perm(len(feats))
		for off := 0; off < len(feats); off += batch {
			end := off + batch
			if end > len(feats) {
				end = len(feats)
			}
			gW := make([]float64, m.FeatDim)
			var gB float64
			for k := off; k < end; k++ {
				i := perm[k]
				p, _ := m.Predict(feats[i])
				grad := p - labels[i]
				for j := 0; j < m.FeatDim; j++ {
					gW[j] += grad * feats[i][j]
				}
				gB += grad
			}
			for j := 0; j < m.FeatDim; j++ {
				gW[j] += m.L2 * m.W[j]
			}
			eta := lr / float64(end-off)
			for j := 0; j < m.FeatDim; j++ {
				m.W[j] -= eta * gW[j]
			}
			m.B -= eta * gB
		}

		loss := 0.0
		for i := range feats {
			p, _ := m.Predict(feats[i])
			if p < 1e-8 {
				p = 1e-8
			}
			if p > 1-1e-8 {
				p = 1 - 1e-8
			}
			y := labels[i]
			loss += -(y*math.Log(p) + (1-y)*math.Log(1-p))
		}
		for j := 0; j < m.FeatDim; j++ {
			loss += 0.5 * m.L2 * m.W[j] * m.W[j]
		}

		if loss < bestLoss-1e-3 {
			bestLoss = loss
			copy(bestW, m.W)
			bestB = m.B
			wait = 0
		} else {
			wait++
			if wait >= patience {
				break
			}
		}
	}
	m.W, m.B = bestW, bestB
}

// labeledSample is one resolved trade outcome.
type labeledSample struct {
	X []float64 `json:"x"`
	Y float64   `json:"y"`
}

// modelArtifact is the JSON layout persisted to disk. The rolling window
// travels with the weights so a restarted live session keeps learning from
// where it left off.
type modelArtifact struct {
	FeatDim int             `json:"feat_dim"`
	W       []float64       `json:"w"`
	B       float64         `json:"b"`
	L2      float64         `json:"l2"`
	Window  []labeledSample `json:"window"`
	SavedAt time.Time       `json:"saved_at"`
}

// MetaLabeler owns the model, the rolling sample window and the pending
// label book. Single-goroutine by design; each backtest or sweep worker
// builds its own.
type MetaLabeler struct {
	cfg     Config
	rng     *rand.Rand
	model   *LogitModel
	window  []labeledSample
	pending map[string][]float64
	unfit   int // resolved labels since the last refit
	trained bool
	refits  int
}

// NewMetaLabeler builds an untrained labeler seeded from the config.
func NewMetaLabeler(cfg Config) *MetaLabeler {
	rng := rand.New(rand.NewSource(cfg.ClassifierSeed))
	return &MetaLabeler{
		cfg:     cfg,
		rng:     rng,
		model:   newLogitModel(featureDim, rng),
		pending: make(map[string][]float64),
	}
}

// LoadArtifact restores weights and the rolling window from disk. A missing
// file is not an error (fresh start); a shape mismatch is fatal.
func (ml *MetaLabeler) LoadArtifact(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("model: no artifact, starting untrained")
		return nil
	}
	if err != nil {
		return fmt.Errorf("model: read artifact: %w", err)
	}
	var art modelArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return fmt.Errorf("model: parse artifact: %w", err)
	}
	if art.FeatDim != featureDim {
		return fmt.Errorf("%w: artifact has %d, binary expects %d", ErrModelShape, art.FeatDim, featureDim)
	}
	ml.model = &LogitModel{W: art.W, B: art.B, L2: art.L2, FeatDim: art.FeatDim}
	if ml.model.L2 == 0 {
		ml.model.L2 = 1e-3
	}
	ml.window = art.Window
	if over := len(ml.window) - ml.cfg.ClassifierWindowSize; over > 0 {
		ml.window = ml.window[over:]
	}
	ml.trained = len(ml.window) >= minTrainSamples
	log.Info().Str("path", path).Int("window", len(ml.window)).Bool("trained", ml.trained).
		Msg("model: artifact loaded")
	return nil
}

// SaveArtifact persists weights plus the rolling window.
func (ml *MetaLabeler) SaveArtifact(path string) error {
	art := modelArtifact{
		FeatDim: ml.model.FeatDim,
		W:       ml.model.W,
		B:       ml.model.B,
		L2:      ml.model.L2,
		Window:  ml.window,
		SavedAt: time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("model: encode artifact: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("model: write artifact: %w", err)
	}
	return nil
}

// Track parks the feature vector of a just-opened position until its
// outcome is known.
func (ml *MetaLabeler) Track(tradeID string, x []float64) {
	ml.pending[tradeID] = append([]float64(nil), x...)
}

// Resolve converts a pending entry into a labeled sample (1 = target hit)
// and refits once enough new labels accumulate. Unknown IDs are ignored so
// replayed fills cannot double-count.
func (ml *MetaLabeler) Resolve(tradeID string, won bool) {
	x, ok := ml.pending[tradeID]
	if !ok {
		return
	}
	delete(ml.pending, tradeID)
	y := 0.0
	if won {
		y = 1
	}
	ml.window = append(ml.window, labeledSample{X: x, Y: y})
	if over := len(ml.window) - ml.cfg.ClassifierWindowSize; over > 0 {
		ml.window = ml.window[over:]
	}
	ml.unfit++
	if ml.unfit >= refitEveryLabels && len(ml.window) >= minTrainSamples {
		ml.refit()
	}
}

// refit retrains on the current window. A single-class window leaves the
// model untrained: a classifier that has only ever seen one outcome has
// nothing to separate, so scoring falls back to pass-through.
func (ml *MetaLabeler) refit() {
	ml.unfit = 0
	var wins int
	feats := make([][]float64, len(ml.window))
	labels := make([]float64, len(ml.window))
	for i, s := range ml.window {
		feats[i] = s.X
		labels[i] = s.Y
		if s.Y > 0.5 {
			wins++
		}
	}
	if wins == 0 || wins == len(ml.window) {
		ml.trained = false
		log.Debug().Int("window", len(ml.window)).Int("wins", wins).
			Msg("model: degenerate window, staying in pass-through")
		return
	}
	ml.model.fitMiniBatch(feats, labels, 0.05, 6, 64, ml.rng)
	ml.trained = true
	ml.refits++
	incModelRefits()
	log.Debug().Int("window", len(ml.window)).Int("refits", ml.refits).
		Msg("model: refit complete")
}

// Score returns the model probability for a candidate. passthrough=true
// means the model is not yet usable and the caller must not filter on p.
func (ml *MetaLabeler) Score(x []float64) (p float64, passthrough bool) {
	if !ml.trained || len(ml.window) < minTrainSamples {
		return 1, true
	}
	p, err := ml.model.Predict(x)
	if err != nil {
		// Contract violation between buildFeatures and the model; surface
		// loudly rather than trade on a half-scored vector.
		log.Error().Err(err).Msg("model: feature dimension mismatch at score time")
		return 1, true
	}
	return p, false
}

// WindowSize reports the current number of resolved samples.
func (ml *MetaLabeler) WindowSize() int { return len(ml.window) }

// PendingCount reports open, unlabeled trades.
func (ml *MetaLabeler) PendingCount() int { return len(ml.pending) }
