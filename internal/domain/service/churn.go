package service

import "ChurnScope/internal/domain/models"

// Predictor is the inference contract shared by every front end.
// Implementations are immutable and safe for concurrent use.
type Predictor interface {
	Predict(raw map[string]string) (models.PredictionResult, error)
	PredictRecord(rec models.CustomerRecord) models.PredictionResult
	Validate(raw map[string]string) (models.CustomerRecord, error)
	Info() models.ModelInfo
}
