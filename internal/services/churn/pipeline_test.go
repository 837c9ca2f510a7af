package churn

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"ChurnScope/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictProbabilityAndLabelAgree(t *testing.T) {
	p := fixturePipeline(t)
	for _, contract := range append(models.Contracts, "Lifetime") {
		for _, pay := range append(models.PaymentMethods, "Cash") {
			for _, tenure := range []string{"0", "1", "24", "72", "500"} {
				for _, charges := range []string{"0", "18.25", "95", "118.75", "10000"} {
					r, err := p.Predict(raw(tenure, charges, contract, pay))
					require.NoError(t, err)
					assert.GreaterOrEqual(t, r.Probability, 0.0)
					assert.LessOrEqual(t, r.Probability, 1.0)
					assert.Equal(t, r.Probability >= 0.5, r.Churn())
					assert.GreaterOrEqual(t, r.ProbabilityPct, 0.0)
					assert.LessOrEqual(t, r.ProbabilityPct, 100.0)
				}
			}
		}
	}
}

func TestPredictUnknownCategoryStillScores(t *testing.T) {
	p := fixturePipeline(t)
	r, err := p.Predict(raw("10", "50", "Lifetime", "Electronic check"))
	require.NoError(t, err)
	assert.Equal(t, []string{models.FieldContract}, r.UnknownCategories)
	assert.NotEmpty(t, r.Message)
}

func TestPredictRejectsInvalidNumeric(t *testing.T) {
	p := fixturePipeline(t)

	_, err := p.Predict(raw("-5", "50", "One year", "Credit card"))
	assert.True(t, errors.Is(err, ErrInvalidNumeric))

	_, err = p.Predict(raw("5", "abc", "One year", "Credit card"))
	assert.True(t, errors.Is(err, ErrInvalidNumeric))
}

func TestPredictDirectional(t *testing.T) {
	p := fixturePipeline(t)
	risky, err := p.Predict(raw("1", "95.00", "Month-to-month", "Electronic check"))
	require.NoError(t, err)
	loyal, err := p.Predict(raw("60", "95.00", "Two year", "Credit card"))
	require.NoError(t, err)

	assert.Greater(t, risky.Probability, loyal.Probability)
	assert.Equal(t, MessageChurn, risky.Message)
	assert.Equal(t, models.RiskHigh, risky.Risk)
	assert.Equal(t, AdviceHighRisk, risky.Advice)
	assert.Equal(t, MessageStay, loyal.Message)
	assert.Equal(t, models.RiskLow, loyal.Risk)
}

func TestPredictExactValue(t *testing.T) {
	p := fixturePipeline(t)
	r, err := p.Predict(raw("1", "95", "Month-to-month", "Electronic check"))
	require.NoError(t, err)
	// z = -1 + 0.7 + 0.35 - 0.035 + 1.9
	assert.InDelta(t, Sigmoid(1.915), r.Probability, 1e-12)
	assert.Equal(t, 87.16, r.ProbabilityPct)
}

func TestPredictIdempotent(t *testing.T) {
	p := fixturePipeline(t)
	in := raw("13", "64.2", "One year", "Bank transfer")
	a, err := p.Predict(in)
	require.NoError(t, err)
	b, err := p.Predict(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictConcurrent(t *testing.T) {
	p := fixturePipeline(t)
	want, err := p.Predict(raw("5", "80", "Month-to-month", "Mailed check"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Predict(raw("5", "80", "Month-to-month", "Mailed check"))
			if err != nil {
				errs <- err
				return
			}
			if got.Probability != want.Probability || got.Label != want.Label {
				errs <- fmt.Errorf("got %+v, want %+v", got, want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestInfoReturnsCopies(t *testing.T) {
	p := fixturePipeline(t)
	info := p.Info()
	assert.Equal(t, "test-1", info.Version)
	assert.Equal(t, Threshold, info.Threshold)
	assert.Len(t, info.FeatureNames, 9)

	info.FeatureNames[0] = "mutated"
	info.Categories[models.FieldContract][0] = "mutated"
	again := p.Info()
	assert.Equal(t, "contract=Month-to-month", again.FeatureNames[0])
	assert.Equal(t, "Month-to-month", again.Categories[models.FieldContract][0])
}

func TestNewPipelineRejectsBadArtifact(t *testing.T) {
	a := fixtureArtifact()
	a.Classifier.Weights = a.Classifier.Weights[:2]
	_, err := NewPipeline(a)
	assert.ErrorIs(t, err, ErrModelLoad)
}
