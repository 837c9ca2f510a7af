package churn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmoidStable(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 1.0, Sigmoid(1000), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-1000), 1e-12)
	assert.False(t, math.IsNaN(Sigmoid(-1e308)))
	assert.InDelta(t, 1-Sigmoid(2.5), Sigmoid(-2.5), 1e-15)
}

func TestLabelThreshold(t *testing.T) {
	assert.Equal(t, 1, Label(0.5))
	assert.Equal(t, 0, Label(0.4999999))
	assert.Equal(t, 1, Label(1))
	assert.Equal(t, 0, Label(0))
}

func TestLogisticRegressionScore(t *testing.T) {
	m, err := NewLogisticRegression([]float64{1, -2}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumFeatures())
	assert.InDelta(t, 1*3-2*1+0.5, m.Decision([]float64{3, 1}), 1e-12)
	assert.InDelta(t, Sigmoid(1.5), m.Score([]float64{3, 1}), 1e-12)
}

func TestLogisticRegressionCopiesWeights(t *testing.T) {
	w := []float64{1, 2}
	m, err := NewLogisticRegression(w, 0)
	require.NoError(t, err)
	w[0] = 100
	assert.Equal(t, []float64{1, 2}, m.Weights())

	got := m.Weights()
	got[1] = 100
	assert.Equal(t, []float64{1, 2}, m.Weights())
}

func TestLogisticRegressionRejectsNonFinite(t *testing.T) {
	_, err := NewLogisticRegression(nil, 0)
	assert.Error(t, err)
	_, err = NewLogisticRegression([]float64{math.NaN()}, 0)
	assert.Error(t, err)
	_, err = NewLogisticRegression([]float64{1}, math.Inf(1))
	assert.Error(t, err)
}
