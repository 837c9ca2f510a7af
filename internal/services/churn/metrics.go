package churn

import "math"

// Evaluate computes binary classification metrics for probabilities p against
// labels y using the fixed threshold.
func Evaluate(y []int, p []float64) EvalReport {
	r := EvalReport{N: len(y)}
	if len(y) == 0 {
		return r
	}
	var tp, fp, fn, correct int
	var loss float64
	for i := range y {
		pred := Label(p[i])
		if pred == y[i] {
			correct++
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 1:
			fn++
		}
		q := math.Min(math.Max(p[i], 1e-12), 1-1e-12)
		if y[i] == 1 {
			loss -= math.Log(q)
		} else {
			loss -= math.Log(1 - q)
		}
	}
	r.Accuracy = float64(correct) / float64(len(y))
	if tp+fp > 0 {
		r.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		r.Recall = float64(tp) / float64(tp+fn)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	r.LogLoss = loss / float64(len(y))
	return r
}
