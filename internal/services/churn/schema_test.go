package churn

import (
	"errors"
	"testing"

	"ChurnScope/internal/domain/models"
	"ChurnScope/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedInput(t *testing.T) {
	rec, err := Validate(raw(" 12 ", "70.35", "  One   year ", "Credit card"))
	require.NoError(t, err)
	assert.Equal(t, models.CustomerRecord{Tenure: 12, MonthlyCharges: 70.35, Contract: "One year", PaymentMethod: "Credit card"}, rec)
}

func TestValidateRejectsBadNumerics(t *testing.T) {
	cases := []struct {
		name  string
		in    map[string]string
		field string
		cause error
	}{
		{"negative tenure", raw("-5", "10", "One year", "Credit card"), models.FieldTenure, util.ErrNegative},
		{"fractional tenure", raw("1.5", "10", "One year", "Credit card"), models.FieldTenure, util.ErrFraction},
		{"missing tenure", raw("", "10", "One year", "Credit card"), models.FieldTenure, util.ErrEmpty},
		{"text charges", raw("3", "abc", "One year", "Credit card"), models.FieldMonthlyCharges, util.ErrNotANum},
		{"negative charges", raw("3", "-0.5", "One year", "Credit card"), models.FieldMonthlyCharges, util.ErrNegative},
		{"nan charges", raw("3", "NaN", "One year", "Credit card"), models.FieldMonthlyCharges, util.ErrNotANum},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Validate(c.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidNumeric))
			assert.True(t, errors.Is(err, c.cause))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, KindInvalidNumeric, ve.Kind)
			assert.Equal(t, c.field, ve.Field)
		})
	}
}

func TestValidateKeepsUnknownCategories(t *testing.T) {
	rec, err := Validate(raw("4", "20", "Lifetime", "Bitcoin"))
	require.NoError(t, err)
	assert.Equal(t, "Lifetime", rec.Contract)
	assert.Equal(t, "Bitcoin", rec.PaymentMethod)
}
