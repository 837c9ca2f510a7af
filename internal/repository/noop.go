package repository

import (
	"context"
	"time"

	"ChurnScope/internal/domain/models"
)

// NoopStore stands in when ClickHouse is disabled.
type NoopStore struct{}

func (NoopStore) Store(context.Context, *models.PredictionEvent) error        { return nil }
func (NoopStore) StoreBatch(context.Context, []*models.PredictionEvent) error { return nil }
func (NoopStore) Recent(context.Context, int) ([]*models.PredictionEvent, error) {
	return []*models.PredictionEvent{}, nil
}
func (NoopStore) Health(context.Context) error { return nil }
func (NoopStore) Close() error                 { return nil }

// NoopPublisher stands in when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPrediction(context.Context, *models.PredictionEvent) error { return nil }
func (NoopPublisher) PublishRejection(context.Context, *models.RejectionEvent) error   { return nil }
func (NoopPublisher) Close() error                                                     { return nil }

// NoopCache always misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (models.PredictionResult, bool, error) {
	return models.PredictionResult{}, false, nil
}
func (NoopCache) Set(context.Context, string, models.PredictionResult, time.Duration) error {
	return nil
}
func (NoopCache) Close() error { return nil }
