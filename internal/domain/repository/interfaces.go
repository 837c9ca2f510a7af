package repository

import (
	"context"
	"time"

	"ChurnScope/internal/domain/models"
)

// PredictionStore persists prediction audit events.
type PredictionStore interface {
	Store(ctx context.Context, e *models.PredictionEvent) error
	StoreBatch(ctx context.Context, events []*models.PredictionEvent) error
	Recent(ctx context.Context, limit int) ([]*models.PredictionEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits prediction and rejection events to downstream consumers.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, e *models.PredictionEvent) error
	PublishRejection(ctx context.Context, e *models.RejectionEvent) error
	Close() error
}

// PredictionCache memoizes results by a deterministic record key.
type PredictionCache interface {
	Get(ctx context.Context, key string) (models.PredictionResult, bool, error)
	Set(ctx context.Context, key string, r models.PredictionResult, ttl time.Duration) error
	Close() error
}

type Metrics interface {
	RecordPrediction(source string, label int, probability float64)
	RecordRejection(source, field string)
	RecordUnknownCategory(field string)
	RecordCache(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
