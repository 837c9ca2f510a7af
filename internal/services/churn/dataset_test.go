package churn

import (
	"strings"
	"testing"

	"ChurnScope/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const telcoSample = "\ufeffcustomerID,gender,tenure,Contract,PaymentMethod,MonthlyCharges,TotalCharges,Churn\n" +
	"7590-VHVEG,Female,1,Month-to-month,Electronic check,29.85,29.85,No\n" +
	"5575-GNVDE,Male,34,One year,Mailed check,56.95,1889.5,No\n" +
	"3668-QPYBK,Male,2,Month-to-month,Mailed check,53.85,108.15,Yes\n" +
	"7795-CFOCW,Male,45,One year,Bank transfer (automatic),42.30,1840.75,No\n" +
	"9237-HQITU,Female,2,Month-to-month,Electronic check,70.70,151.65,Yes\n" +
	"9305-CDSKC,Female,,Month-to-month,Electronic check,99.65,820.5,Yes\n" +
	"1452-KIOVK,Male,22,Month-to-month,Credit card (automatic),89.10,1949.4,Maybe\n" +
	"6713-OKOMC,Female,10,Month-to-month,Mailed check,abc,301.9,No\n"

func TestReadDatasetCleansRows(t *testing.T) {
	ds, err := ReadDataset(strings.NewReader(telcoSample))
	require.NoError(t, err)
	assert.Equal(t, 8, ds.Rows)
	assert.Equal(t, 3, ds.Dropped)
	require.Len(t, ds.Samples, 5)

	assert.Equal(t, Sample{
		Record: models.CustomerRecord{Tenure: 45, MonthlyCharges: 42.30, Contract: "One year", PaymentMethod: "Bank transfer"},
		Label:  0,
	}, ds.Samples[3])
	assert.Equal(t, 1, ds.Samples[2].Label)
}

func TestReadDatasetSnakeCaseHeader(t *testing.T) {
	in := "tenure,monthly_charges,contract,payment_method,churn_label\n5,20,Two year,Credit card,yes\n"
	ds, err := ReadDataset(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ds.Samples, 1)
	assert.Equal(t, 1, ds.Samples[0].Label)
}

func TestReadDatasetMissingColumn(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("tenure,Contract,PaymentMethod,Churn\n1,One year,Credit card,No\n"))
	assert.Error(t, err)
}

func TestReadDatasetNoUsableRows(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("tenure,MonthlyCharges,Contract,PaymentMethod,Churn\n-1,2,One year,Credit card,No\n"))
	assert.Error(t, err)
}

func TestCleanCategory(t *testing.T) {
	assert.Equal(t, "Bank transfer", CleanCategory(" Bank  transfer (automatic) "))
	assert.Equal(t, "Electronic check", CleanCategory("Electronic check"))
}
