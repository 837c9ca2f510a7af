package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordPrediction("api", 1, 0.87)
	r.RecordPrediction("api", 1, 0.91)
	r.RecordPrediction("web", 0, 0.07)
	r.RecordRejection("kafka", "tenure")
	r.RecordUnknownCategory("contract")
	r.RecordCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions.WithLabelValues("api", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("web", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("kafka", "tenure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unknown.WithLabelValues("contract")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cache.WithLabelValues("hit")))
}

func TestSetModelReplacesPreviousVersion(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.SetModel("1", "logistic_regression")
	r.SetModel("2", "logistic_regression")

	expected := `
# HELP churn_model_info Loaded model version, always 1
# TYPE churn_model_info gauge
churn_model_info{model_type="logistic_regression",version="2"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "churn_model_info"))
}
