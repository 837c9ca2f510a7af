package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Requests and views for the prediction front ends.

// FlexString accepts a JSON string or number and keeps its textual form, so
// numeric validation stays with the feature schema.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// PredictRequest carries no presence rules: blank numerics are rejected by
// the feature schema as InvalidNumeric and blank categoricals score as
// unknown categories, the same as on the web form.
type PredictRequest struct {
	Tenure         FlexString `json:"tenure" form:"tenure"`
	MonthlyCharges FlexString `json:"monthly_charges" form:"monthly_charges"`
	Contract       string     `json:"contract" form:"contract"`
	PaymentMethod  string     `json:"payment_method" form:"payment_method"`
	RequestID      string     `json:"request_id,omitempty" form:"request_id" validate:"max=128"`
}

// Raw returns the request as the string mapping the pipeline validates.
func (r *PredictRequest) Raw() map[string]string {
	return map[string]string{
		FieldTenure:         string(r.Tenure),
		FieldMonthlyCharges: string(r.MonthlyCharges),
		FieldContract:       r.Contract,
		FieldPaymentMethod:  r.PaymentMethod,
	}
}

type RecentRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

// PredictionView is the transport shape of a PredictionResult.
type PredictionView struct {
	ID                string   `json:"id,omitempty"`
	Churn             bool     `json:"churn"`
	Label             int      `json:"label"`
	Message           string   `json:"message"`
	Probability       float64  `json:"probability"`
	ProbabilityPct    float64  `json:"probability_pct"`
	ProbabilityText   string   `json:"probability_text"`
	Risk              string   `json:"risk"`
	Advice            string   `json:"advice,omitempty"`
	UnknownCategories []string `json:"unknown_categories,omitempty"`
	ModelVersion      string   `json:"model_version,omitempty"`
}

// NewPredictionView builds the transport view for a result.
func NewPredictionView(id, modelVersion string, r PredictionResult) PredictionView {
	return PredictionView{
		ID:                id,
		Churn:             r.Churn(),
		Label:             r.Label,
		Message:           r.Message,
		Probability:       r.Probability,
		ProbabilityPct:    r.ProbabilityPct,
		ProbabilityText:   strconv.FormatFloat(r.ProbabilityPct, 'f', 2, 64) + "%",
		Risk:              r.Risk,
		Advice:            r.Advice,
		UnknownCategories: r.UnknownCategories,
		ModelVersion:      modelVersion,
	}
}

type ModelInfoView struct {
	Version      string              `json:"version"`
	ModelType    string              `json:"model_type"`
	CreatedAt    string              `json:"created_at,omitempty"`
	FeatureNames []string            `json:"feature_names"`
	Categories   map[string][]string `json:"categories"`
	Threshold    float64             `json:"threshold"`
}

type EventView struct {
	ID             string  `json:"id"`
	Source         string  `json:"source"`
	Tenure         int     `json:"tenure"`
	MonthlyCharges float64 `json:"monthly_charges"`
	Contract       string  `json:"contract"`
	PaymentMethod  string  `json:"payment_method"`
	Label          int     `json:"label"`
	ProbabilityPct float64 `json:"probability_pct"`
	ModelVersion   string  `json:"model_version"`
	CreatedAt      string  `json:"created_at"`
}

// NewModelInfoView builds the transport view of the loaded model.
func NewModelInfoView(info ModelInfo) ModelInfoView {
	v := ModelInfoView{
		Version:      info.Version,
		ModelType:    info.ModelType,
		FeatureNames: info.FeatureNames,
		Categories:   info.Categories,
		Threshold:    info.Threshold,
	}
	if !info.CreatedAt.IsZero() {
		v.CreatedAt = info.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func NewEventView(e *PredictionEvent) EventView {
	return EventView{
		ID:             e.ID,
		Source:         e.Source,
		Tenure:         e.Record.Tenure,
		MonthlyCharges: e.Record.MonthlyCharges,
		Contract:       e.Record.Contract,
		PaymentMethod:  e.Record.PaymentMethod,
		Label:          e.Result.Label,
		ProbabilityPct: e.Result.ProbabilityPct,
		ModelVersion:   e.ModelVersion,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
