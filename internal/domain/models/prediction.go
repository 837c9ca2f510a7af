package models

import "time"

// Churn labels produced by the classifier.
const (
	LabelStay  = 0
	LabelChurn = 1
)

// Risk levels shown on the dashboard.
const (
	RiskHigh = "high"
	RiskLow  = "low"
)

// PredictionResult is the scored outcome for one record.
type PredictionResult struct {
	Label          int     // 1 = churn, 0 = stay
	Probability    float64 // P(churn) in [0,1]
	ProbabilityPct float64 // Probability*100 rounded to two decimals
	Message        string
	Risk           string
	Advice         string
	// UnknownCategories names categorical fields whose value was not seen at
	// training time and was encoded as an all-zero block.
	UnknownCategories []string
}

// Churn reports whether the customer is predicted to churn.
func (p PredictionResult) Churn() bool { return p.Label == LabelChurn }

// PredictionEvent is the audit record emitted after every scored request.
type PredictionEvent struct {
	ID           string
	Source       string // "api", "web", "dashboard", "kafka"
	RequestID    string // caller supplied id, if any
	Record       CustomerRecord
	Result       PredictionResult
	ModelVersion string
	CreatedAt    time.Time
}

// RejectionEvent is emitted for records that failed validation on the async path.
type RejectionEvent struct {
	RequestID string
	Source    string
	Field     string
	Reason    string
	CreatedAt time.Time
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Version      string
	ModelType    string
	CreatedAt    time.Time
	FeatureNames []string
	Categories   map[string][]string
	Threshold    float64
}
