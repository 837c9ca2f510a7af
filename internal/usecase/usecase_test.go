package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ChurnScope/internal/domain/models"
	"ChurnScope/internal/services/churn"
	"ChurnScope/pkg/metrics"

	"github.com/stretchr/testify/require"
)

func loadPipeline(t *testing.T) *churn.Pipeline {
	t.Helper()
	a, err := churn.LoadArtifact(filepath.Join("..", "..", "models", "churn_model.json"))
	require.NoError(t, err)
	p, err := churn.NewPipeline(a)
	require.NoError(t, err)
	return p
}

func riskyRaw() map[string]string {
	return map[string]string{
		models.FieldTenure:         "1",
		models.FieldMonthlyCharges: "95.00",
		models.FieldContract:       "Month-to-month",
		models.FieldPaymentMethod:  "Electronic check",
	}
}

type mapCache struct {
	mu     sync.Mutex
	items  map[string]models.PredictionResult
	getErr error
	sets   int
}

func (c *mapCache) Get(_ context.Context, key string) (models.PredictionResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return models.PredictionResult{}, false, c.getErr
	}
	r, ok := c.items[key]
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, r models.PredictionResult, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]models.PredictionResult)
	}
	c.items[key] = r
	c.sets++
	return nil
}

func (c *mapCache) Close() error { return nil }

type recordingPublisher struct {
	mu          sync.Mutex
	err         error
	predictions []*models.PredictionEvent
	rejections  []*models.RejectionEvent
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, e *models.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictions = append(p.predictions, e)
	return p.err
}

func (p *recordingPublisher) PublishRejection(_ context.Context, e *models.RejectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejections = append(p.rejections, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type sliceAuditor struct {
	mu     sync.Mutex
	full   bool
	events []*models.PredictionEvent
}

func (a *sliceAuditor) Enqueue(e *models.PredictionEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.full {
		return false
	}
	a.events = append(a.events, e)
	return true
}

type recordingMetrics struct {
	metrics.Nop
	mu          sync.Mutex
	predictions map[string]int
	rejections  map[string]int
	unknown     map[string]int
	cache       map[string]int
	errors      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		predictions: map[string]int{},
		rejections:  map[string]int{},
		unknown:     map[string]int{},
		cache:       map[string]int{},
		errors:      map[string]int{},
	}
}

func (m *recordingMetrics) RecordPrediction(source string, _ int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[source]++
}

func (m *recordingMetrics) RecordRejection(_, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[field]++
}

func (m *recordingMetrics) RecordUnknownCategory(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unknown[field]++
}

func (m *recordingMetrics) RecordCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[result]++
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestService(t *testing.T, m *recordingMetrics, opts ...ServiceOption) *PredictionService {
	t.Helper()
	s := NewPredictionService(loadPipeline(t), m, nil, opts...)
	s.now = fixedClock()
	n := 0
	s.newID = func() string {
		n++
		return "pred-" + string(rune('0'+n))
	}
	return s
}

var errBroker = errors.New("broker unavailable")
