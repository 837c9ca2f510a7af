package repository

import (
	"context"
	"time"

	"ChurnScope/internal/domain/models"
	domrepo "ChurnScope/internal/domain/repository"
	pkgkafka "ChurnScope/pkg/kafka"
)

// Event types carried in the "type" field and the event_type header.
const (
	EventTypePrediction = "prediction"
	EventTypeRejection  = "rejection"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaEventPublisher publishes prediction and rejection events to one topic.
type KafkaEventPublisher struct {
	producer producer
	topic    string
}

func NewKafkaEventPublisher(p *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: p, topic: topic}
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

type predictionMessage struct {
	Type              string   `json:"type"`
	ID                string   `json:"id"`
	Source            string   `json:"source"`
	RequestID         string   `json:"request_id,omitempty"`
	Tenure            int      `json:"tenure"`
	MonthlyCharges    float64  `json:"monthly_charges"`
	Contract          string   `json:"contract"`
	PaymentMethod     string   `json:"payment_method"`
	Churn             bool     `json:"churn"`
	Label             int      `json:"label"`
	Probability       float64  `json:"probability"`
	ProbabilityPct    float64  `json:"probability_pct"`
	Message           string   `json:"message"`
	UnknownCategories []string `json:"unknown_categories,omitempty"`
	ModelVersion      string   `json:"model_version"`
	CreatedAt         string   `json:"created_at"`
}

type rejectionMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Source    string `json:"source"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// PublishPrediction keys the record by event id.
func (p *KafkaEventPublisher) PublishPrediction(ctx context.Context, e *models.PredictionEvent) error {
	msg := predictionMessage{
		Type:              EventTypePrediction,
		ID:                e.ID,
		Source:            e.Source,
		RequestID:         e.RequestID,
		Tenure:            e.Record.Tenure,
		MonthlyCharges:    e.Record.MonthlyCharges,
		Contract:          e.Record.Contract,
		PaymentMethod:     e.Record.PaymentMethod,
		Churn:             e.Result.Churn(),
		Label:             e.Result.Label,
		Probability:       e.Result.Probability,
		ProbabilityPct:    e.Result.ProbabilityPct,
		Message:           e.Result.Message,
		UnknownCategories: e.Result.UnknownCategories,
		ModelVersion:      e.ModelVersion,
		CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return p.producer.Publish(ctx, p.topic, []byte(e.ID), msg, headers(EventTypePrediction, e.RequestID)...)
}

// PublishRejection keys the record by the caller's request id, if any.
func (p *KafkaEventPublisher) PublishRejection(ctx context.Context, e *models.RejectionEvent) error {
	msg := rejectionMessage{
		Type:      EventTypeRejection,
		RequestID: e.RequestID,
		Source:    e.Source,
		Field:     e.Field,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	var key []byte
	if e.RequestID != "" {
		key = []byte(e.RequestID)
	}
	return p.producer.Publish(ctx, p.topic, key, msg, headers(EventTypeRejection, e.RequestID)...)
}

func headers(eventType, requestID string) []pkgkafka.Header {
	h := []pkgkafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	if requestID != "" {
		h = append(h, pkgkafka.Header{Key: pkgkafka.HeaderRequestID, Value: []byte(requestID)})
	}
	return h
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaEventPublisher) Close() error { return nil }
