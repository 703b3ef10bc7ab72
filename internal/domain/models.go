package domain

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// CharsPerToken is the heuristic used to estimate token counts from text length.
const CharsPerToken = 4

// Mode selects what the pipeline does with the extracted rows.
type Mode string

const (
	ModePredict Mode = "predict"
	ModeTrain   Mode = "train"
)

// ParseMode converts a user-supplied mode string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePredict, "":
		return ModePredict, nil
	case ModeTrain:
		return ModeTrain, nil
	default:
		return "", InvalidArgument("unknown mode "+s, nil)
	}
}

// RawDocument is the text received from an upload or a chat message.
type RawDocument struct {
	ID          uuid.UUID
	SourceLabel string
	Text        string
}

// NewRawDocument assigns a fresh ID to the given text.
func NewRawDocument(sourceLabel, text string) RawDocument {
	return RawDocument{
		ID:          uuid.New(),
		SourceLabel: sourceLabel,
		Text:        text,
	}
}

// TextUnit is a bounded piece of document text ready for feature extraction.
type TextUnit struct {
	Text string
}

// Tokens estimates the token count of the unit.
func (u TextUnit) Tokens() int {
	return EstimateTokens(u.Text)
}

// EstimateTokens applies the len/4 heuristic.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// Canonical field names
const (
	FieldStatus    = "status"
	FieldPrice     = "price"
	FieldBed       = "bed"
	FieldBath      = "bath"
	FieldAcreLot   = "acre_lot"
	FieldCity      = "city"
	FieldState     = "state"
	FieldZipCode   = "zip_code"
	FieldHouseSize = "house_size"
)

// TargetField is the column the regressor learns to predict.
const TargetField = FieldPrice

// FieldAliases maps alternate key spellings (lower-cased) to canonical fields.
var FieldAliases = map[string]string{
	"buildingstatus": FieldStatus,
	"numbedrooms":    FieldBed,
	"numbathrooms":   FieldBath,
}

// NumericFields are coerced to float64; unparseable values become NaN.
var NumericFields = []string{FieldPrice, FieldBed, FieldBath, FieldAcreLot, FieldHouseSize}

// CategoricalFields are normalized strings; empty means missing.
var CategoricalFields = []string{FieldStatus, FieldCity, FieldState, FieldZipCode}

// FeatureRow is one property. Numeric fields hold NaN when missing.
type FeatureRow struct {
	Status    string
	Price     float64
	Bed       float64
	Bath      float64
	AcreLot   float64
	City      string
	State     string
	ZipCode   string
	HouseSize float64

	// Extra holds keys that are neither canonical nor aliased, verbatim.
	Extra map[string]string
}

// NewFeatureRow returns a row with every field missing.
func NewFeatureRow() FeatureRow {
	nan := math.NaN()
	return FeatureRow{
		Price:     nan,
		Bed:       nan,
		Bath:      nan,
		AcreLot:   nan,
		HouseSize: nan,
	}
}

// HasTarget reports whether the row carries a usable price for training.
// Negative prices are the extractor's "unknown" marker.
func (r FeatureRow) HasTarget() bool {
	return !math.IsNaN(r.Price) && !math.IsInf(r.Price, 0) && r.Price >= 0
}

// Numeric returns the numeric field with the given canonical name.
func (r FeatureRow) Numeric(field string) (float64, bool) {
	switch field {
	case FieldPrice:
		return r.Price, true
	case FieldBed:
		return r.Bed, true
	case FieldBath:
		return r.Bath, true
	case FieldAcreLot:
		return r.AcreLot, true
	case FieldHouseSize:
		return r.HouseSize, true
	}
	return 0, false
}

// Categorical returns the categorical field with the given canonical name.
func (r FeatureRow) Categorical(field string) (string, bool) {
	switch field {
	case FieldStatus:
		return r.Status, true
	case FieldCity:
		return r.City, true
	case FieldState:
		return r.State, true
	case FieldZipCode:
		return r.ZipCode, true
	}
	return "", false
}

// RowSet is a batch of typed rows.
type RowSet struct {
	Rows []FeatureRow
}

// Len returns the number of rows.
func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Append adds the rows of other to s.
func (s *RowSet) Append(other *RowSet) {
	if other == nil {
		return
	}
	s.Rows = append(s.Rows, other.Rows...)
}

// WithTarget returns the rows that carry a usable price.
func (s *RowSet) WithTarget() []FeatureRow {
	if s == nil {
		return nil
	}
	out := make([]FeatureRow, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.HasTarget() {
			out = append(out, r)
		}
	}
	return out
}
