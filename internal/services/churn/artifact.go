package churn

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ChurnScope/internal/domain/models"
)

const (
	ArtifactFormatVersion = 1
	ModelTypeLogistic     = "logistic_regression"

	KindCategorical = "categorical"
	KindNumeric     = "numeric"
)

// requiredKinds is the fixed input schema every artifact must carry.
var requiredKinds = map[string]string{
	models.FieldTenure:         KindNumeric,
	models.FieldMonthlyCharges: KindNumeric,
	models.FieldContract:       KindCategorical,
	models.FieldPaymentMethod:  KindCategorical,
}

// ColumnSpec is one input field as it was fit.
type ColumnSpec struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Categories []string `json:"categories,omitempty"`
}

type ClassifierSpec struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// EvalReport holds binary classification metrics on one split.
type EvalReport struct {
	N         int     `json:"n"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"log_loss"`
}

type TrainingSummary struct {
	Dataset      string     `json:"dataset,omitempty"`
	Rows         int        `json:"rows"`
	DroppedRows  int        `json:"dropped_rows"`
	TrainRows    int        `json:"train_rows"`
	TestRows     int        `json:"test_rows"`
	Seed         int64      `json:"seed"`
	MaxIter      int        `json:"max_iter"`
	LearningRate float64    `json:"learning_rate"`
	L2           float64    `json:"l2"`
	Train        EvalReport `json:"train"`
	Test         EvalReport `json:"test"`
}

// Artifact is the persisted TrainedModel: the fitted transform and the
// classifier as one document. FeatureNames pins the exact encoded column order.
type Artifact struct {
	FormatVersion int              `json:"format_version"`
	ModelType     string           `json:"model_type"`
	Version       string           `json:"version,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Columns       []ColumnSpec     `json:"columns"`
	FeatureNames  []string         `json:"feature_names"`
	Classifier    ClassifierSpec   `json:"classifier"`
	Training      *TrainingSummary `json:"training,omitempty"`
}

// ReadArtifact decodes and checks an artifact. Every failure wraps ErrModelLoad.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, modelLoadError("decode artifact: %v", err)
	}
	if err := a.Check(); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadArtifact reads an artifact from a local file.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, modelLoadError("open %s: %v", path, err)
	}
	defer f.Close()
	return ReadArtifact(f)
}

// Write encodes the artifact as indented JSON.
func (a *Artifact) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// Save writes the artifact to path atomically.
func (a *Artifact) Save(path string) error {
	if err := a.Check(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := a.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Check verifies the artifact is complete and matches the fixed schema.
func (a *Artifact) Check() error {
	if a.FormatVersion != ArtifactFormatVersion {
		return modelLoadError("unsupported format_version %d", a.FormatVersion)
	}
	if a.ModelType != ModelTypeLogistic {
		return modelLoadError("unsupported model_type %q", a.ModelType)
	}
	seen := make(map[string]bool, len(a.Columns))
	for _, c := range a.Columns {
		want, ok := requiredKinds[c.Name]
		if !ok {
			return modelLoadError("unexpected column %q", c.Name)
		}
		if seen[c.Name] {
			return modelLoadError("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if c.Kind != want {
			return modelLoadError("column %q has kind %q, want %q", c.Name, c.Kind, want)
		}
		if c.Kind == KindCategorical && len(c.Categories) == 0 {
			return modelLoadError("column %q has no categories", c.Name)
		}
		if c.Kind == KindNumeric && len(c.Categories) > 0 {
			return modelLoadError("numeric column %q carries categories", c.Name)
		}
	}
	for name := range requiredKinds {
		if !seen[name] {
			return modelLoadError("missing column %q", name)
		}
	}
	if _, _, err := a.build(); err != nil {
		return err
	}
	return nil
}

// build materializes the transform and classifier and verifies that the
// encoder's column layout is exactly the serialized feature order.
func (a *Artifact) build() (*ColumnTransformer, *LogisticRegression, error) {
	var (
		encoders []*OneHotEncoder
		numeric  []string
	)
	for _, c := range a.Columns {
		switch c.Kind {
		case KindCategorical:
			enc, err := NewOneHotEncoder(c.Name, c.Categories)
			if err != nil {
				return nil, nil, modelLoadError("%v", err)
			}
			encoders = append(encoders, enc)
		case KindNumeric:
			numeric = append(numeric, c.Name)
		}
	}
	t := NewColumnTransformer(encoders, numeric)

	names := t.FeatureNames()
	if len(names) != len(a.FeatureNames) {
		return nil, nil, modelLoadError("feature_names has %d entries, encoder produces %d", len(a.FeatureNames), len(names))
	}
	for i := range names {
		if names[i] != a.FeatureNames[i] {
			return nil, nil, modelLoadError("feature %d is %q, encoder produces %q", i, a.FeatureNames[i], names[i])
		}
	}
	if len(a.Classifier.Weights) != len(names) {
		return nil, nil, modelLoadError("classifier has %d weights for %d features", len(a.Classifier.Weights), len(names))
	}
	clf, err := NewLogisticRegression(a.Classifier.Weights, a.Classifier.Bias)
	if err != nil {
		return nil, nil, modelLoadError("%v", err)
	}
	return t, clf, nil
}

// Fingerprint is a short content hash of the parts that affect predictions.
func (a *Artifact) Fingerprint() string {
	b, _ := json.Marshal(struct {
		Columns      []ColumnSpec   `json:"columns"`
		FeatureNames []string       `json:"feature_names"`
		Classifier   ClassifierSpec `json:"classifier"`
	}{a.Columns, a.FeatureNames, a.Classifier})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

// ModelVersion is the declared version, or the fingerprint when none is set.
func (a *Artifact) ModelVersion() string {
	if a.Version != "" {
		return a.Version
	}
	return a.Fingerprint()
}
