package churn

import (
	"fmt"
	"math"
)

// Threshold is the fixed decision boundary: churn iff P(churn) >= Threshold.
const Threshold = 0.5

// LogisticRegression is a fitted binary classifier, P(y=1|x) = sigmoid(w·x + b).
type LogisticRegression struct {
	weights []float64
	bias    float64
}

// NewLogisticRegression copies the parameters so the model cannot be mutated
// through the caller's slices.
func NewLogisticRegression(weights []float64, bias float64) (*LogisticRegression, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("logistic regression: no weights")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("logistic regression: weight %d is not finite", i)
		}
	}
	if math.IsNaN(bias) || math.IsInf(bias, 0) {
		return nil, fmt.Errorf("logistic regression: bias is not finite")
	}
	return &LogisticRegression{weights: append([]float64(nil), weights...), bias: bias}, nil
}

func (m *LogisticRegression) NumFeatures() int { return len(m.weights) }

// Weights returns a copy of the coefficient vector.
func (m *LogisticRegression) Weights() []float64 { return append([]float64(nil), m.weights...) }

func (m *LogisticRegression) Bias() float64 { return m.bias }

// Decision returns w·x + b. x must have NumFeatures() entries.
func (m *LogisticRegression) Decision(x []float64) float64 {
	z := m.bias
	for j, w := range m.weights {
		z += w * x[j]
	}
	return z
}

// Score returns P(churn) in [0,1].
func (m *LogisticRegression) Score(x []float64) float64 {
	return Sigmoid(m.Decision(x))
}

// Label applies the fixed threshold to a probability.
func Label(p float64) int {
	if p >= Threshold {
		return 1
	}
	return 0
}

// Sigmoid is the logistic function, evaluated without overflow for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
