package churn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"ChurnScope/internal/domain/models"
)

// TrainConfig holds the fitting hyperparameters.
type TrainConfig struct {
	TestRatio    float64
	Seed         int64
	MaxIter      int
	LearningRate float64
	L2           float64
	Tolerance    float64
	Version      string
	Dataset      string
}

// DefaultTrainConfig mirrors the reference training run: 80/20 split with
// seed 42 and up to 1000 iterations.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestRatio:    0.2,
		Seed:         42,
		MaxIter:      1000,
		LearningRate: 0.5,
		L2:           1e-4,
		Tolerance:    1e-6,
	}
}

var ErrSingleClass = errors.New("training data contains a single class")

// fitOrder fixes the artifact column order: categoricals first, then the
// numeric passthrough columns.
var (
	fitCategorical = []string{models.FieldContract, models.FieldPaymentMethod}
	fitNumeric     = []string{models.FieldTenure, models.FieldMonthlyCharges}
)

// Split partitions samples into train and test sets with a seeded shuffle.
func Split(samples []Sample, testRatio float64, seed int64) (train, test []Sample) {
	n := len(samples)
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	nTest := int(float64(n) * testRatio)
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	test = make([]Sample, 0, nTest)
	train = make([]Sample, 0, n-nTest)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, samples[idx])
		} else {
			train = append(train, samples[idx])
		}
	}
	return train, test
}

// Train fits the encoder vocabulary and the logistic regression and returns a
// checked artifact.
func Train(ds *Dataset, cfg TrainConfig) (*Artifact, error) {
	if ds == nil || len(ds.Samples) < 2 {
		return nil, fmt.Errorf("train: need at least 2 samples")
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultTrainConfig().MaxIter
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultTrainConfig().LearningRate
	}

	train, test := Split(ds.Samples, cfg.TestRatio, cfg.Seed)
	yTrain := labels(train)
	if !hasBothClasses(yTrain) {
		return nil, ErrSingleClass
	}

	encoders := make([]*OneHotEncoder, 0, len(fitCategorical))
	for _, field := range fitCategorical {
		values := make([]string, len(train))
		for i, s := range train {
			values[i], _ = s.Record.Categorical(field)
		}
		enc, err := FitOneHotEncoder(field, values)
		if err != nil {
			return nil, fmt.Errorf("fit encoder: %w", err)
		}
		encoders = append(encoders, enc)
	}
	t := NewColumnTransformer(encoders, fitNumeric)

	xTrain := encodeAll(t, train)
	weights, bias := fitLogistic(xTrain, yTrain, cfg)

	a := &Artifact{
		FormatVersion: ArtifactFormatVersion,
		ModelType:     ModelTypeLogistic,
		Version:       cfg.Version,
		CreatedAt:     time.Now().UTC(),
		FeatureNames:  t.FeatureNames(),
		Classifier:    ClassifierSpec{Weights: weights, Bias: bias},
	}
	for _, enc := range encoders {
		a.Columns = append(a.Columns, ColumnSpec{Name: enc.Field(), Kind: KindCategorical, Categories: enc.Categories()})
	}
	for _, f := range fitNumeric {
		a.Columns = append(a.Columns, ColumnSpec{Name: f, Kind: KindNumeric})
	}

	clf, err := NewLogisticRegression(weights, bias)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	a.Training = &TrainingSummary{
		Dataset:      cfg.Dataset,
		Rows:         ds.Rows,
		DroppedRows:  ds.Dropped,
		TrainRows:    len(train),
		TestRows:     len(test),
		Seed:         cfg.Seed,
		MaxIter:      cfg.MaxIter,
		LearningRate: cfg.LearningRate,
		L2:           cfg.L2,
		Train:        Evaluate(yTrain, scoreAll(clf, xTrain)),
		Test:         Evaluate(labels(test), scoreAll(clf, encodeAll(t, test))),
	}
	if err := a.Check(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return a, nil
}

// fitLogistic runs full-batch gradient descent on standardized columns with an
// L2 penalty, then folds the scaling back so the returned weights apply to the
// raw encoded vector.
func fitLogistic(x [][]float64, y []int, cfg TrainConfig) ([]float64, float64) {
	n, d := len(x), len(x[0])
	mean, scale := columnStats(x)

	z := make([][]float64, n)
	for i, row := range x {
		z[i] = make([]float64, d)
		for j, v := range row {
			z[i][j] = (v - mean[j]) / scale[j]
		}
	}

	w := make([]float64, d)
	var b float64
	gw := make([]float64, d)
	for iter := 0; iter < cfg.MaxIter; iter++ {
		for j := range gw {
			gw[j] = 0
		}
		var gb float64
		for i, row := range z {
			dz := Sigmoid(dot(w, row)+b) - float64(y[i])
			for j, v := range row {
				gw[j] += dz * v
			}
			gb += dz
		}
		maxGrad := math.Abs(gb / float64(n))
		for j := range w {
			g := gw[j]/float64(n) + cfg.L2*w[j]
			w[j] -= cfg.LearningRate * g
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		b -= cfg.LearningRate * gb / float64(n)
		if maxGrad < cfg.Tolerance {
			break
		}
	}

	raw := make([]float64, d)
	rawBias := b
	for j := range w {
		raw[j] = w[j] / scale[j]
		rawBias -= w[j] * mean[j] / scale[j]
	}
	return raw, rawBias
}

func columnStats(x [][]float64) (mean, scale []float64) {
	n, d := float64(len(x)), len(x[0])
	mean = make([]float64, d)
	scale = make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			scale[j] += (v - mean[j]) * (v - mean[j])
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] < 1e-12 {
			// constant column: leave it unscaled and uncentered
			scale[j], mean[j] = 1, 0
		}
	}
	return mean, scale
}

func encodeAll(t *ColumnTransformer, samples []Sample) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		out[i], _ = t.Encode(s.Record)
	}
	return out
}

func scoreAll(clf *LogisticRegression, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = clf.Score(row)
	}
	return out
}

func labels(samples []Sample) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = s.Label
	}
	return out
}

func hasBothClasses(y []int) bool {
	var pos, neg bool
	for _, v := range y {
		if v == 1 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
