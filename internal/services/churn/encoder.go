package churn

import (
	"fmt"
	"sort"

	"ChurnScope/internal/domain/models"
)

// OneHotEncoder expands one categorical field into indicator columns, one per
// category learned at fit time. Values outside the vocabulary encode as an
// all-zero block.
type OneHotEncoder struct {
	field      string
	categories []string
	index      map[string]int
}

// NewOneHotEncoder builds an encoder over a fixed, ordered vocabulary.
func NewOneHotEncoder(field string, categories []string) (*OneHotEncoder, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("encoder %s: empty vocabulary", field)
	}
	e := &OneHotEncoder{
		field:      field,
		categories: append([]string(nil), categories...),
		index:      make(map[string]int, len(categories)),
	}
	for i, c := range e.categories {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("encoder %s: duplicate category %q", field, c)
		}
		e.index[c] = i
	}
	return e, nil
}

// FitOneHotEncoder learns the sorted set of distinct values.
func FitOneHotEncoder(field string, values []string) (*OneHotEncoder, error) {
	seen := make(map[string]struct{}, 8)
	cats := make([]string, 0, 8)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		cats = append(cats, v)
	}
	sort.Strings(cats)
	return NewOneHotEncoder(field, cats)
}

func (e *OneHotEncoder) Field() string { return e.field }

// Categories returns a copy of the vocabulary in column order.
func (e *OneHotEncoder) Categories() []string {
	return append([]string(nil), e.categories...)
}

func (e *OneHotEncoder) Width() int { return len(e.categories) }

// EncodeInto writes the indicator block for v into dst[0:Width()] and reports
// whether v was part of the vocabulary.
func (e *OneHotEncoder) EncodeInto(dst []float64, v string) bool {
	for i := range dst[:len(e.categories)] {
		dst[i] = 0
	}
	i, ok := e.index[v]
	if ok {
		dst[i] = 1
	}
	return ok
}

// FeatureNames returns "<field>=<category>" for every indicator column.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, len(e.categories))
	for i, c := range e.categories {
		out[i] = e.field + "=" + c
	}
	return out
}

// ColumnTransformer lays out the encoded vector: every categorical block in
// order, then the numeric passthrough columns in order.
type ColumnTransformer struct {
	categorical []*OneHotEncoder
	numeric     []string
	width       int
}

// NewColumnTransformer fixes the column layout.
func NewColumnTransformer(categorical []*OneHotEncoder, numeric []string) *ColumnTransformer {
	t := &ColumnTransformer{
		categorical: append([]*OneHotEncoder(nil), categorical...),
		numeric:     append([]string(nil), numeric...),
	}
	for _, enc := range t.categorical {
		t.width += enc.Width()
	}
	t.width += len(t.numeric)
	return t
}

func (t *ColumnTransformer) Width() int { return t.width }

// FeatureNames returns the encoded column names in vector order.
func (t *ColumnTransformer) FeatureNames() []string {
	out := make([]string, 0, t.width)
	for _, enc := range t.categorical {
		out = append(out, enc.FeatureNames()...)
	}
	return append(out, t.numeric...)
}

// Encode maps a record to its feature vector. The second return value lists
// categorical fields whose value was outside the learned vocabulary.
func (t *ColumnTransformer) Encode(rec models.CustomerRecord) ([]float64, []string) {
	x := make([]float64, t.width)
	var unknown []string
	off := 0
	for _, enc := range t.categorical {
		v, _ := rec.Categorical(enc.field)
		if !enc.EncodeInto(x[off:], v) {
			unknown = append(unknown, enc.field)
		}
		off += enc.Width()
	}
	for _, f := range t.numeric {
		v, _ := rec.Numeric(f)
		x[off] = v
		off++
	}
	return x, unknown
}
