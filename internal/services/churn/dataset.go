package churn

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ChurnScope/internal/domain/models"
	"ChurnScope/pkg/util"
)

// Sample is one labeled training row.
type Sample struct {
	Record models.CustomerRecord
	Label  int
}

// Dataset is the cleaned training table.
type Dataset struct {
	Samples []Sample
	Rows    int // data rows read, before cleaning
	Dropped int // rows removed for missing or unusable values
}

// headerAliases maps accepted CSV header spellings to schema fields.
var headerAliases = map[string]string{
	"tenure":          models.FieldTenure,
	"monthlycharges":  models.FieldMonthlyCharges,
	"monthly_charges": models.FieldMonthlyCharges,
	"contract":        models.FieldContract,
	"paymentmethod":   models.FieldPaymentMethod,
	"payment_method":  models.FieldPaymentMethod,
	"churn":           "churn",
	"churn_label":     "churn",
}

// LoadDataset reads a CSV training file.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset parses a CSV with a header row. Rows with a missing value in any
// used column, an unparsable or negative number, or a churn label other than
// yes/no are dropped.
func ReadDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, 5)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[key]; ok {
			cols[field] = i
		}
	}
	for _, want := range []string{models.FieldTenure, models.FieldMonthlyCharges, models.FieldContract, models.FieldPaymentMethod, "churn"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("dataset: missing column %q", want)
		}
	}

	ds := &Dataset{}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", ds.Rows+1, err)
		}
		ds.Rows++
		s, ok := parseSample(rec, cols)
		if !ok {
			ds.Dropped++
			continue
		}
		ds.Samples = append(ds.Samples, s)
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("dataset: no usable rows out of %d", ds.Rows)
	}
	return ds, nil
}

func parseSample(rec []string, cols map[string]int) (Sample, bool) {
	get := func(field string) string {
		i := cols[field]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	tenure, err := util.ParseNonNegativeInt(get(models.FieldTenure))
	if err != nil {
		return Sample{}, false
	}
	charges, err := util.ParseNonNegativeFloat(get(models.FieldMonthlyCharges))
	if err != nil {
		return Sample{}, false
	}
	contract := CleanCategory(get(models.FieldContract))
	payment := CleanCategory(get(models.FieldPaymentMethod))
	if contract == "" || payment == "" {
		return Sample{}, false
	}

	var label int
	switch strings.ToLower(get("churn")) {
	case "yes", "1", "true":
		label = 1
	case "no", "0", "false":
		label = 0
	default:
		return Sample{}, false
	}

	return Sample{
		Record: models.CustomerRecord{
			Tenure:         tenure,
			MonthlyCharges: charges,
			Contract:       contract,
			PaymentMethod:  payment,
		},
		Label: label,
	}, true
}

// CleanCategory normalizes a training label so the learned vocabulary matches
// what the front ends send: whitespace is collapsed and the Telco
// " (automatic)" suffix is removed.
func CleanCategory(s string) string {
	s = util.NormalizeLabel(s)
	return strings.TrimSuffix(s, " (automatic)")
}
