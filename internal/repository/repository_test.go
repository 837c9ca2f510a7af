package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"ChurnScope/internal/domain/models"
	"ChurnScope/pkg/cache"
	pkgkafka "ChurnScope/pkg/kafka"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, q string, args ...interface{}) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: q, args: args})
	return nil, f.err
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) PingContext(context.Context) error { return nil }

func sampleEvent() *models.PredictionEvent {
	return &models.PredictionEvent{
		ID:        uuid.NewString(),
		Source:    "api",
		RequestID: "req-1",
		Record: models.CustomerRecord{
			Tenure:         1,
			MonthlyCharges: 95,
			Contract:       models.ContractMonthToMonth,
			PaymentMethod:  models.PaymentElectronicCheck,
		},
		Result: models.PredictionResult{
			Label:          1,
			Probability:    0.8716,
			ProbabilityPct: 87.16,
			Message:        "Customer likely to churn",
		},
		ModelVersion: "2026.10.1",
		CreatedAt:    time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestClickHouseStoreBatchInsert(t *testing.T) {
	db := &fakeDB{}
	s := newClickHouseStore(db, "churn.predictions", nil)

	bad := sampleEvent()
	bad.ID = "not-a-uuid"
	require.NoError(t, s.StoreBatch(context.Background(), []*models.PredictionEvent{sampleEvent(), bad, sampleEvent()}))

	require.Len(t, db.calls, 1)
	q := db.calls[0].query
	assert.True(t, strings.HasPrefix(q, "INSERT INTO churn.predictions (id, created_at"), q)
	assert.Equal(t, 2, strings.Count(q, "(?, ?"))
	assert.Len(t, db.calls[0].args, 26)
	assert.Equal(t, int32(1), db.calls[0].args[4])
	assert.Equal(t, uint8(1), db.calls[0].args[8])
	assert.Equal(t, []string{}, db.calls[0].args[11])
}

func TestClickHouseStoreChunksLargeBatches(t *testing.T) {
	db := &fakeDB{}
	s := newClickHouseStore(db, "churn.predictions", nil)

	events := make([]*models.PredictionEvent, insertChunk+5)
	for i := range events {
		events[i] = sampleEvent()
	}
	require.NoError(t, s.StoreBatch(context.Background(), events))
	assert.Len(t, db.calls, 2)
}

func TestClickHouseStorePropagatesErrors(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	s := newClickHouseStore(db, "churn.predictions", nil)
	err := s.Store(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "connection refused")
}

type publishCall struct {
	topic   string
	key     []byte
	value   interface{}
	headers []pkgkafka.Header
}

type fakeProducer struct{ calls []publishCall }

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error {
	f.calls = append(f.calls, publishCall{topic, key, value, headers})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaEventPublisher(t *testing.T) {
	fp := &fakeProducer{}
	p := &KafkaEventPublisher{producer: fp, topic: "churn.predictions"}

	e := sampleEvent()
	require.NoError(t, p.PublishPrediction(context.Background(), e))
	require.NoError(t, p.PublishRejection(context.Background(), &models.RejectionEvent{
		Source:    "kafka",
		Field:     models.FieldTenure,
		Reason:    "not a number",
		CreatedAt: e.CreatedAt,
	}))

	require.Len(t, fp.calls, 2)
	assert.Equal(t, []byte(e.ID), fp.calls[0].key)
	b, err := json.Marshal(fp.calls[0].value)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"prediction"`)
	assert.Contains(t, string(b), `"probability_pct":87.16`)
	assert.Contains(t, string(b), `"created_at":"2026-10-12T09:30:00Z"`)
	assert.Equal(t, "req-1", headerValue(fp.calls[0].headers, pkgkafka.HeaderRequestID))
	assert.Equal(t, EventTypePrediction, headerValue(fp.calls[0].headers, "event_type"))

	assert.Nil(t, fp.calls[1].key)
	b, err = json.Marshal(fp.calls[1].value)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"rejection"`)
	assert.Contains(t, string(b), `"field":"tenure"`)
}

func headerValue(hs []pkgkafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestCachedPredictions(t *testing.T) {
	mem := cache.NewMemoryCache()
	c := NewCachedPredictions(mem)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleEvent().Result
	want.UnknownCategories = []string{models.FieldContract}
	require.NoError(t, c.Set(ctx, "k", want, time.Minute))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	exists, _ := mem.Exists(ctx, cacheKeyPrefix+"k")
	assert.True(t, exists)
}
