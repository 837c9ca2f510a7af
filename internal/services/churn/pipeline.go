package churn

import (
	"time"

	"ChurnScope/internal/domain/models"
	domsvc "ChurnScope/internal/domain/service"
	"ChurnScope/pkg/util"
)

// Display texts for the two outcomes.
const (
	MessageChurn = "Customer likely to churn"
	MessageStay  = "Customer likely to stay"

	AdviceHighRisk = "This customer shows patterns commonly associated with churn. Consider proactive retention strategies."
	AdviceLowRisk  = "This customer is likely to remain loyal based on current behavior."
)

// Pipeline is the loaded TrainedModel: validate, encode, score, threshold.
// It holds no mutable state and is safe to share across goroutines.
type Pipeline struct {
	transform *ColumnTransformer
	clf       *LogisticRegression
	info      models.ModelInfo
}

// NewPipeline builds the immutable pipeline from a checked artifact.
func NewPipeline(a *Artifact) (*Pipeline, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	t, clf, err := a.build()
	if err != nil {
		return nil, err
	}
	cats := make(map[string][]string)
	for _, c := range a.Columns {
		if c.Kind == KindCategorical {
			cats[c.Name] = append([]string(nil), c.Categories...)
		}
	}
	return &Pipeline{
		transform: t,
		clf:       clf,
		info: models.ModelInfo{
			Version:      a.ModelVersion(),
			ModelType:    a.ModelType,
			CreatedAt:    a.CreatedAt,
			FeatureNames: t.FeatureNames(),
			Categories:   cats,
			Threshold:    Threshold,
		},
	}, nil
}

// Validate applies the feature schema.
func (p *Pipeline) Validate(raw map[string]string) (models.CustomerRecord, error) {
	return Validate(raw)
}

// Encode returns the feature vector and the fields that hit unknown categories.
func (p *Pipeline) Encode(rec models.CustomerRecord) ([]float64, []string) {
	return p.transform.Encode(rec)
}

// Predict runs the whole contract on raw input. A validation error aborts the
// call; unknown categories do not.
func (p *Pipeline) Predict(raw map[string]string) (models.PredictionResult, error) {
	rec, err := Validate(raw)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return p.PredictRecord(rec), nil
}

// PredictRecord scores an already validated record.
func (p *Pipeline) PredictRecord(rec models.CustomerRecord) models.PredictionResult {
	x, unknown := p.transform.Encode(rec)
	prob := p.clf.Score(x)
	return assemble(prob, unknown)
}

// Info describes the loaded model.
func (p *Pipeline) Info() models.ModelInfo {
	info := p.info
	info.FeatureNames = append([]string(nil), p.info.FeatureNames...)
	info.Categories = make(map[string][]string, len(p.info.Categories))
	for k, v := range p.info.Categories {
		info.Categories[k] = append([]string(nil), v...)
	}
	return info
}

// Version is the model version string used for cache keys and audit events.
func (p *Pipeline) Version() string { return p.info.Version }

// CreatedAt is when the artifact was trained.
func (p *Pipeline) CreatedAt() time.Time { return p.info.CreatedAt }

func assemble(prob float64, unknown []string) models.PredictionResult {
	r := models.PredictionResult{
		Label:             Label(prob),
		Probability:       prob,
		ProbabilityPct:    util.Round(prob*100, 2),
		UnknownCategories: unknown,
	}
	if r.Label == models.LabelChurn {
		r.Message, r.Risk, r.Advice = MessageChurn, models.RiskHigh, AdviceHighRisk
	} else {
		r.Message, r.Risk, r.Advice = MessageStay, models.RiskLow, AdviceLowRisk
	}
	return r
}

var _ domsvc.Predictor = (*Pipeline)(nil)
