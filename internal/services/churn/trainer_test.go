package churn

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"ChurnScope/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticDataset draws customers whose churn odds rise with a flexible
// contract, electronic checks, short tenure and high charges.
func syntheticDataset(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{Rows: n}
	for i := 0; i < n; i++ {
		rec := models.CustomerRecord{
			Tenure:         rng.Intn(73),
			MonthlyCharges: 18 + rng.Float64()*100,
			Contract:       models.Contracts[rng.Intn(len(models.Contracts))],
			PaymentMethod:  models.PaymentMethods[rng.Intn(len(models.PaymentMethods))],
		}
		z := -1.0 - 0.06*float64(rec.Tenure) + 0.03*rec.MonthlyCharges
		switch rec.Contract {
		case models.ContractMonthToMonth:
			z += 1.2
		case models.ContractTwoYear:
			z -= 1.5
		}
		if rec.PaymentMethod == models.PaymentElectronicCheck {
			z += 0.6
		}
		label := 0
		if rng.Float64() < Sigmoid(z) {
			label = 1
		}
		ds.Samples = append(ds.Samples, Sample{Record: rec, Label: label})
	}
	return ds
}

func TestSplitIsSeeded(t *testing.T) {
	ds := syntheticDataset(50, 1)
	tr1, te1 := Split(ds.Samples, 0.2, 42)
	tr2, te2 := Split(ds.Samples, 0.2, 42)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)
	assert.Len(t, te1, 10)
	assert.Len(t, tr1, 40)
}

func TestTrainLearnsDirection(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.MaxIter = 400
	cfg.Version = "synthetic"
	a, err := Train(syntheticDataset(1500, 7), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"contract=Month-to-month", "contract=One year", "contract=Two year",
		"payment_method=Bank transfer", "payment_method=Credit card", "payment_method=Electronic check", "payment_method=Mailed check",
		"tenure", "monthly_charges",
	}, a.FeatureNames)
	require.NotNil(t, a.Training)
	assert.Equal(t, 1200, a.Training.TrainRows)
	assert.Equal(t, 300, a.Training.TestRows)
	assert.Greater(t, a.Training.Test.Accuracy, 0.65)

	p, err := NewPipeline(a)
	require.NoError(t, err)
	risky, err := p.Predict(raw("1", "95.00", "Month-to-month", "Electronic check"))
	require.NoError(t, err)
	loyal, err := p.Predict(raw("60", "95.00", "Two year", "Credit card"))
	require.NoError(t, err)
	assert.Greater(t, risky.Probability, loyal.Probability)
	assert.True(t, risky.Churn())
	assert.False(t, loyal.Churn())
}

func TestTrainedArtifactSurvivesSave(t *testing.T) {
	a, err := Train(syntheticDataset(300, 3), DefaultTrainConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, a.Save(path))
	loaded, err := LoadArtifact(path)
	require.NoError(t, err)

	p1, err := NewPipeline(a)
	require.NoError(t, err)
	p2, err := NewPipeline(loaded)
	require.NoError(t, err)
	in := raw("12", "70", "One year", "Mailed check")
	r1, _ := p1.Predict(in)
	r2, _ := p2.Predict(in)
	assert.InDelta(t, r1.Probability, r2.Probability, 1e-12)
}

func TestTrainSingleClass(t *testing.T) {
	ds := syntheticDataset(40, 2)
	for i := range ds.Samples {
		ds.Samples[i].Label = 0
	}
	_, err := Train(ds, DefaultTrainConfig())
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestTrainFromCSV(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("tenure,MonthlyCharges,Contract,PaymentMethod,Churn\n")
	for _, s := range syntheticDataset(200, 11).Samples {
		yes := "No"
		if s.Label == 1 {
			yes = "Yes"
		}
		pay := s.Record.PaymentMethod
		if pay == models.PaymentBankTransfer || pay == models.PaymentCreditCard {
			pay += " (automatic)"
		}
		fmt.Fprintf(&sb, "%d,%.2f,%s,%s,%s\n", s.Record.Tenure, s.Record.MonthlyCharges, s.Record.Contract, pay, yes)
	}
	ds, err := ReadDataset(strings.NewReader(sb.String()))
	require.NoError(t, err)
	a, err := Train(ds, DefaultTrainConfig())
	require.NoError(t, err)
	for _, c := range a.Columns {
		if c.Name == models.FieldPaymentMethod {
			assert.Equal(t, []string{"Bank transfer", "Credit card", "Electronic check", "Mailed check"}, c.Categories)
		}
	}
}
