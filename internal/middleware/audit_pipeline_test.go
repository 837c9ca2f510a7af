package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ChurnScope/internal/domain/models"
	"ChurnScope/pkg/logger"
	"ChurnScope/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	failures int
	batches  [][]*models.PredictionEvent
}

func (s *fakeStore) Store(ctx context.Context, e *models.PredictionEvent) error {
	return s.StoreBatch(ctx, []*models.PredictionEvent{e})
}

func (s *fakeStore) StoreBatch(_ context.Context, events []*models.PredictionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("clickhouse unavailable")
	}
	s.batches = append(s.batches, append([]*models.PredictionEvent(nil), events...))
	return nil
}

func (s *fakeStore) Recent(context.Context, int) ([]*models.PredictionEvent, error) { return nil, nil }
func (s *fakeStore) Health(context.Context) error                                   { return nil }
func (s *fakeStore) Close() error                                                   { return nil }

func (s *fakeStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type countingMetrics struct {
	metrics.Nop
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func event(id string) *models.PredictionEvent {
	return &models.PredictionEvent{
		ID:        id,
		Source:    "api",
		Result:    models.PredictionResult{Label: 1, Probability: 0.87},
		CreatedAt: time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestAuditPipelineBatchesBySize(t *testing.T) {
	store := &fakeStore{}
	p := NewAuditPipeline(store, metrics.Nop{}, logger.Nop(), WithBatchSize(3), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, p.Enqueue(event(id)))
	}
	require.Eventually(t, func() bool { return store.stored() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
}

func TestAuditPipelineFlushesOnInterval(t *testing.T) {
	store := &fakeStore{}
	p := NewAuditPipeline(store, metrics.Nop{}, logger.Nop(), WithBatchSize(100), WithFlushInterval(10*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop(context.Background())

	require.True(t, p.Enqueue(event("a")))
	require.Eventually(t, func() bool { return store.stored() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAuditPipelineRetriesFailedBatch(t *testing.T) {
	store := &fakeStore{failures: 2}
	m := &countingMetrics{}
	p := NewAuditPipeline(store, m, logger.Nop(), WithBatchSize(1), WithFlushInterval(10*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop(context.Background())

	require.True(t, p.Enqueue(event("a")))
	require.Eventually(t, func() bool { return store.stored() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, m.count("audit_flush"))
	assert.Equal(t, 0, m.count("audit_drop"))
}

func TestAuditPipelineDropsAfterMaxAttempts(t *testing.T) {
	store := &fakeStore{failures: 100}
	m := &countingMetrics{}
	p := NewAuditPipeline(store, m, logger.Nop(), WithBatchSize(1), WithFlushInterval(5*time.Millisecond), WithMaxAttempts(2))
	p.Start(context.Background())
	defer p.Stop(context.Background())

	require.True(t, p.Enqueue(event("a")))
	require.Eventually(t, func() bool { return m.count("audit_drop") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, store.stored())
}

func TestAuditPipelineRejectsWhenFullOrInvalid(t *testing.T) {
	m := &countingMetrics{}
	p := NewAuditPipeline(&fakeStore{}, m, logger.Nop(), WithBufferSize(1))

	assert.True(t, p.Enqueue(event("a")))
	assert.False(t, p.Enqueue(event("b")))
	assert.Equal(t, 1, m.count("audit_buffer_full"))

	bad := event("c")
	bad.Result.Probability = 1.5
	assert.False(t, p.Enqueue(bad))
	assert.False(t, p.Enqueue(&models.PredictionEvent{}))
	assert.Equal(t, 2, m.count("audit_invalid"))
}

func TestAuditPipelineStopDrains(t *testing.T) {
	store := &fakeStore{}
	p := NewAuditPipeline(store, metrics.Nop{}, logger.Nop(), WithBatchSize(50), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	for i := 0; i < 120; i++ {
		require.True(t, p.Enqueue(event(string(rune('a'+i%26))+"-"+time.Duration(i).String())))
	}
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 120, store.stored())
}
