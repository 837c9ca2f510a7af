package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	probability *prometheus.HistogramVec
	rejections  *prometheus.CounterVec
	unknown     *prometheus.CounterVec
	cache       *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	modelInfo   *prometheus.GaugeVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_predictions_total",
				Help: "Scored records by source and predicted label",
			},
			[]string{"source", "label"},
		),
		probability: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "churn_probability",
				Help:    "Distribution of predicted churn probabilities",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
			},
			[]string{"source"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_rejections_total",
				Help: "Records rejected by validation",
			},
			[]string{"source", "field"},
		),
		unknown: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_unknown_category_total",
				Help: "Categorical values not seen at training time",
			},
			[]string{"field"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_cache_requests_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "churn_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		modelInfo: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "churn_model_info",
				Help: "Loaded model version, always 1",
			},
			[]string{"version", "model_type"},
		),
	}
}

func (r *Recorder) RecordPrediction(source string, label int, probability float64) {
	r.predictions.WithLabelValues(source, strconv.Itoa(label)).Inc()
	r.probability.WithLabelValues(source).Observe(probability)
}

func (r *Recorder) RecordRejection(source, field string) {
	r.rejections.WithLabelValues(source, field).Inc()
}

func (r *Recorder) RecordUnknownCategory(field string) {
	r.unknown.WithLabelValues(field).Inc()
}

// RecordCache counts a lookup; result is "hit", "miss" or "error".
func (r *Recorder) RecordCache(result string) {
	r.cache.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetModel publishes the loaded model identity.
func (r *Recorder) SetModel(version, modelType string) {
	r.modelInfo.Reset()
	r.modelInfo.WithLabelValues(version, modelType).Set(1)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordPrediction(string, int, float64) {}
func (Nop) RecordRejection(string, string)        {}
func (Nop) RecordUnknownCategory(string)          {}
func (Nop) RecordCache(string)                    {}
func (Nop) RecordError(string)                    {}
func (Nop) RecordLatency(string, float64)         {}
