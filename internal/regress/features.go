package regress

import (
	"math"
	"slices"

	"github.com/spherical-ai/appraisal/internal/domain"
)

// FeatureColumns is the column order of the feature matrix. The target is not a feature.
var FeatureColumns = []string{
	domain.FieldStatus,
	domain.FieldBed,
	domain.FieldBath,
	domain.FieldAcreLot,
	domain.FieldCity,
	domain.FieldState,
	domain.FieldZipCode,
	domain.FieldHouseSize,
}

// CategoricalColumns holds the indexes into FeatureColumns of the categorical columns.
var CategoricalColumns = func() []int {
	var idx []int
	for i, c := range FeatureColumns {
		if slices.Contains(domain.CategoricalFields, c) {
			idx = append(idx, i)
		}
	}
	return idx
}()

// unseenCode is given to categories absent from the vocabulary; it never equals
// a learned split value.
const unseenCode = -1

// Vocabulary maps each categorical column to its categories in first-seen order.
// A category's code is its position. Vocabularies are only ever extended.
type Vocabulary map[string][]string

// Extend returns a copy of v with every new category in rows appended.
// v itself is not modified.
func (v Vocabulary) Extend(rows []domain.FeatureRow) Vocabulary {
	out := make(Vocabulary, len(v))
	for col, cats := range v {
		out[col] = slices.Clone(cats)
	}
	for _, col := range domain.CategoricalFields {
		seen := make(map[string]bool, len(out[col]))
		for _, c := range out[col] {
			seen[c] = true
		}
		for _, r := range rows {
			c, _ := r.Categorical(col)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out[col] = append(out[col], c)
		}
	}
	return out
}

// Size returns the number of categories known for col.
func (v Vocabulary) Size(col string) int {
	return len(v[col])
}

// encoder turns rows into feature vectors under a fixed vocabulary.
type encoder struct {
	codes map[string]map[string]int
}

func newEncoder(v Vocabulary) *encoder {
	e := &encoder{codes: make(map[string]map[string]int, len(v))}
	for col, cats := range v {
		m := make(map[string]int, len(cats))
		for i, c := range cats {
			m[c] = i
		}
		e.codes[col] = m
	}
	return e
}

// encode builds the feature matrix for rows. Missing values become NaN.
func (e *encoder) encode(rows []domain.FeatureRow) [][]float64 {
	X := make([][]float64, len(rows))
	for i, r := range rows {
		x := make([]float64, len(FeatureColumns))
		for j, col := range FeatureColumns {
			if v, ok := r.Numeric(col); ok {
				x[j] = v
				continue
			}
			c, _ := r.Categorical(col)
			switch code, known := e.codes[col][c]; {
			case c == "":
				x[j] = math.NaN()
			case known:
				x[j] = float64(code)
			default:
				x[j] = unseenCode
			}
		}
		X[i] = x
	}
	return X
}

func targets(rows []domain.FeatureRow) []float64 {
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = r.Price
	}
	return y
}
