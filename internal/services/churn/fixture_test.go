package churn

import (
	"strings"
	"testing"
	"time"

	"ChurnScope/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func fixtureArtifact() *Artifact {
	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		ModelType:     ModelTypeLogistic,
		Version:       "test-1",
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Columns: []ColumnSpec{
			{Name: models.FieldContract, Kind: KindCategorical, Categories: []string{"Month-to-month", "One year", "Two year"}},
			{Name: models.FieldPaymentMethod, Kind: KindCategorical, Categories: []string{"Bank transfer", "Credit card", "Electronic check", "Mailed check"}},
			{Name: models.FieldTenure, Kind: KindNumeric},
			{Name: models.FieldMonthlyCharges, Kind: KindNumeric},
		},
		FeatureNames: []string{
			"contract=Month-to-month", "contract=One year", "contract=Two year",
			"payment_method=Bank transfer", "payment_method=Credit card", "payment_method=Electronic check", "payment_method=Mailed check",
			"tenure", "monthly_charges",
		},
		Classifier: ClassifierSpec{
			Weights: []float64{0.7, -0.3, -1.2, -0.2, -0.25, 0.35, -0.1, -0.035, 0.02},
			Bias:    -1.0,
		},
	}
}

func fixturePipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(fixtureArtifact())
	require.NoError(t, err)
	return p
}

func fixtureJSON(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, fixtureArtifact().Write(&sb))
	return sb.String()
}

func raw(tenure, charges, contract, payment string) map[string]string {
	return map[string]string{
		models.FieldTenure:         tenure,
		models.FieldMonthlyCharges: charges,
		models.FieldContract:       contract,
		models.FieldPaymentMethod:  payment,
	}
}
