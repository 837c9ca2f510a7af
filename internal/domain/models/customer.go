package models

// Input field names as they appear in raw requests and in the model artifact.
const (
	FieldTenure         = "tenure"
	FieldMonthlyCharges = "monthly_charges"
	FieldContract       = "contract"
	FieldPaymentMethod  = "payment_method"
)

// Contract labels offered by the front ends.
const (
	ContractMonthToMonth = "Month-to-month"
	ContractOneYear      = "One year"
	ContractTwoYear      = "Two year"
)

// Payment method labels offered by the front ends.
const (
	PaymentElectronicCheck = "Electronic check"
	PaymentMailedCheck     = "Mailed check"
	PaymentBankTransfer    = "Bank transfer"
	PaymentCreditCard      = "Credit card"
)

// Contracts lists the recognized contract labels in display order.
var Contracts = []string{ContractMonthToMonth, ContractOneYear, ContractTwoYear}

// PaymentMethods lists the recognized payment method labels in display order.
var PaymentMethods = []string{PaymentElectronicCheck, PaymentMailedCheck, PaymentBankTransfer, PaymentCreditCard}

// CustomerRecord is one validated customer to score.
// Categorical fields keep whatever label the caller sent; unseen labels are
// tolerated downstream.
type CustomerRecord struct {
	Tenure         int     `json:"tenure"`
	MonthlyCharges float64 `json:"monthly_charges"`
	Contract       string  `json:"contract"`
	PaymentMethod  string  `json:"payment_method"`
}

// Categorical returns the value of a categorical field by name.
func (r CustomerRecord) Categorical(field string) (string, bool) {
	switch field {
	case FieldContract:
		return r.Contract, true
	case FieldPaymentMethod:
		return r.PaymentMethod, true
	}
	return "", false
}

// Numeric returns the value of a numeric field by name.
func (r CustomerRecord) Numeric(field string) (float64, bool) {
	switch field {
	case FieldTenure:
		return float64(r.Tenure), true
	case FieldMonthlyCharges:
		return r.MonthlyCharges, true
	}
	return 0, false
}

// IsKnownContract reports whether s is one of the front-end contract labels.
func IsKnownContract(s string) bool { return contains(Contracts, s) }

// IsKnownPaymentMethod reports whether s is one of the front-end payment labels.
func IsKnownPaymentMethod(s string) bool { return contains(PaymentMethods, s) }

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
