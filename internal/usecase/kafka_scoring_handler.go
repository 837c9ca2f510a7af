package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ChurnScope/internal/domain/models"
	"ChurnScope/internal/services/churn"
	pkgkafka "ChurnScope/pkg/kafka"
)

// KafkaScoringHandler scores customer records arriving on the requests topic.
// Prediction events are published by the PredictionService.
type KafkaScoringHandler struct {
	topic   string
	service *PredictionService
}

func NewKafkaScoringHandler(topic string, service *PredictionService) *KafkaScoringHandler {
	return &KafkaScoringHandler{topic: topic, service: service}
}

func (h *KafkaScoringHandler) Topic() string { return h.topic }

// incoming message schema: {id, tenure, monthly_charges, contract, payment_method}
// numbers may be sent as JSON numbers or strings
type scoringRequest struct {
	ID             string            `json:"id"`
	Tenure         models.FlexString `json:"tenure"`
	MonthlyCharges models.FlexString `json:"monthly_charges"`
	Contract       string            `json:"contract"`
	PaymentMethod  string            `json:"payment_method"`
}

func (h *KafkaScoringHandler) Handle(ctx context.Context, b []byte) error {
	var m scoringRequest
	if err := json.Unmarshal(b, &m); err != nil {
		h.service.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode scoring request: %w", err))
	}

	requestID := pkgkafka.RequestIDFromContext(ctx)
	if m.ID != "" {
		requestID = m.ID
	}

	raw := map[string]string{
		models.FieldTenure:         string(m.Tenure),
		models.FieldMonthlyCharges: string(m.MonthlyCharges),
		models.FieldContract:       m.Contract,
		models.FieldPaymentMethod:  m.PaymentMethod,
	}
	if _, err := h.service.Predict(ctx, raw, SourceKafka, requestID); err != nil {
		var verr *churn.ValidationError
		if errors.As(err, &verr) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaScoringHandler)(nil)
