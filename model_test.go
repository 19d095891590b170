// FILE: model_test.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainable fills a labeler past the training threshold with a separable
// pattern: x[0] = +1 wins, x[0] = -1 loses.
func trainable(ml *MetaLabeler, n int) {
	for k := 0; k < n; k++ {
		x := make([]float64, featureDim)
		won := k%2 == 0
		if won {
			x[0] = 1
		} else {
			x[0] = -1
		}
		id := fmt.Sprintf("S-%04d", k)
		ml.Track(id, x)
		ml.Resolve(id, won)
	}
}

func TestScorePassthroughUntilTrained(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	x := make([]float64, featureDim)
	p, passthrough := ml.Score(x)
	assert.True(t, passthrough)
	assert.Equal(t, 1.0, p)

	trainable(ml, minTrainSamples-2)
	_, passthrough = ml.Score(x)
	assert.True(t, passthrough, "below the sample floor the model must not gate")
}

func TestScoreAfterTraining(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	trainable(ml, 60)
	require.True(t, ml.trained)
	assert.GreaterOrEqual(t, ml.refits, 1)

	win := make([]float64, featureDim)
	win[0] = 1
	loss := make([]float64, featureDim)
	loss[0] = -1

	pWin, passthrough := ml.Score(win)
	require.False(t, passthrough)
	pLoss, _ := ml.Score(loss)
	assert.Greater(t, pWin, pLoss, "the separable direction must order the scores")
}

func TestTrainingIsDeterministic(t *testing.T) {
	a := NewMetaLabeler(testCfg())
	b := NewMetaLabeler(testCfg())
	trainable(a, 60)
	trainable(b, 60)

	x := make([]float64, featureDim)
	x[0] = 1
	pa, _ := a.Score(x)
	pb, _ := b.Score(x)
	assert.Equal(t, pa, pb, "same seed, same samples, same weights")
}

func TestDegenerateWindowStaysPassthrough(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	for k := 0; k < 60; k++ {
		x := make([]float64, featureDim)
		id := fmt.Sprintf("W-%04d", k)
		ml.Track(id, x)
		ml.Resolve(id, true) // all wins
	}
	assert.False(t, ml.trained)
	_, passthrough := ml.Score(make([]float64, featureDim))
	assert.True(t, passthrough)
}

func TestResolveIgnoresUnknownAndDoubleFills(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	ml.Resolve("T-999999", true)
	assert.Equal(t, 0, ml.WindowSize())

	x := make([]float64, featureDim)
	ml.Track("T-000001", x)
	ml.Resolve("T-000001", true)
	ml.Resolve("T-000001", true)
	assert.Equal(t, 1, ml.WindowSize())
	assert.Equal(t, 0, ml.PendingCount())
}

func TestWindowCapped(t *testing.T) {
	cfg := testCfg()
	cfg.ClassifierWindowSize = 25
	ml := NewMetaLabeler(cfg)
	trainable(ml, 100)
	assert.Equal(t, 25, ml.WindowSize())
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	ml := NewMetaLabeler(testCfg())
	trainable(ml, 60)
	require.NoError(t, ml.SaveArtifact(path))

	restored := NewMetaLabeler(testCfg())
	require.NoError(t, restored.LoadArtifact(path))
	assert.True(t, restored.trained)
	assert.Equal(t, ml.WindowSize(), restored.WindowSize())

	x := make([]float64, featureDim)
	x[0] = 1
	p1, _ := ml.Score(x)
	p2, _ := restored.Score(x)
	assert.InDelta(t, p1, p2, 1e-12)
}

func TestLoadArtifactMissingFileIsFreshStart(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	require.NoError(t, ml.LoadArtifact(filepath.Join(t.TempDir(), "nope.json")))
	assert.False(t, ml.trained)
}

func TestLoadArtifactShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	raw := []byte(`{"feat_dim": 8, "w": [0,0,0,0,0,0,0,0], "b": 0, "l2": 0.001, "window": []}`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	ml := NewMetaLabeler(testCfg())
	err := ml.LoadArtifact(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelShape)
}

func TestPredictShapeGuard(t *testing.T) {
	ml := NewMetaLabeler(testCfg())
	_, err := ml.model.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrModelShape)
}
