package churn

import (
	"ChurnScope/internal/domain/models"
	"ChurnScope/pkg/util"
)

// Validate turns raw string fields into a CustomerRecord.
// Numeric fields must parse and be non-negative; categorical fields are only
// normalized for whitespace and never rejected.
func Validate(raw map[string]string) (models.CustomerRecord, error) {
	var rec models.CustomerRecord

	tenureRaw := raw[models.FieldTenure]
	tenure, err := util.ParseNonNegativeInt(tenureRaw)
	if err != nil {
		return rec, invalidNumeric(models.FieldTenure, tenureRaw, err)
	}

	chargesRaw := raw[models.FieldMonthlyCharges]
	charges, err := util.ParseNonNegativeFloat(chargesRaw)
	if err != nil {
		return rec, invalidNumeric(models.FieldMonthlyCharges, chargesRaw, err)
	}

	rec.Tenure = tenure
	rec.MonthlyCharges = charges
	rec.Contract = util.NormalizeLabel(raw[models.FieldContract])
	rec.PaymentMethod = util.NormalizeLabel(raw[models.FieldPaymentMethod])
	return rec, nil
}
