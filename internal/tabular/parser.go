// Package tabular parses the extractor's "key: value" lines into typed feature rows.
package tabular

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spherical-ai/appraisal/internal/domain"
)

// Diagnostic describes a line that was skipped or partially understood.
type Diagnostic struct {
	Line     int    `json:"line"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"` // "error" or "warning"
}

// ParsedRows is the outcome of parsing one extraction reply.
type ParsedRows struct {
	domain.RowSet
	Diagnostics []Diagnostic
}

// Parser converts extraction text into typed rows.
type Parser struct {
	aliases map[string]string
	fields  map[string]bool
}

// NewParser creates a parser with the standard field aliases.
func NewParser() *Parser {
	fields := make(map[string]bool)
	for _, f := range domain.NumericFields {
		fields[f] = true
	}
	for _, f := range domain.CategoricalFields {
		fields[f] = true
	}
	return &Parser{
		aliases: domain.FieldAliases,
		fields:  fields,
	}
}

var bulletPattern = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// Parse builds a row per line of raw. It fails with a parse_failure error when raw
// has no non-empty lines, when no line yields a row, or, in train mode, when no row
// carries a usable price. In train mode rows without a usable price are dropped.
// The diagnostics collected so far are returned alongside a failure.
func (p *Parser) Parse(raw string, mode domain.Mode) (*ParsedRows, error) {
	result := &ParsedRows{}
	nonEmpty := 0

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		nonEmpty++

		row, recognized := p.parseLine(line)
		if recognized == 0 {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Line:     i + 1,
				Reason:   "no recognized field",
				Severity: "warning",
			})
			continue
		}

		if mode == domain.ModeTrain && !row.HasTarget() {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Line:     i + 1,
				Reason:   "no usable price",
				Severity: "warning",
			})
			continue
		}

		result.Rows = append(result.Rows, row)
	}

	switch {
	case nonEmpty == 0:
		return nil, domain.ParseFailure("no non-empty lines", nil)
	case result.Len() == 0 && mode == domain.ModeTrain:
		return result, domain.ParseFailure(fmt.Sprintf("no row with a usable price in %d lines", nonEmpty), nil)
	case result.Len() == 0:
		return result, domain.ParseFailure(fmt.Sprintf("no row parsed from %d lines", nonEmpty), nil)
	}

	return result, nil
}

// parseLine reads the comma-separated key: value segments of one line. It returns
// the row and the number of canonical fields it set.
func (p *Parser) parseLine(line string) (domain.FeatureRow, int) {
	row := domain.NewFeatureRow()
	recognized := 0

	for _, seg := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		field := p.canonical(key)
		if field == "" {
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[key] = value
			continue
		}

		setField(&row, field, value)
		recognized++
	}

	return row, recognized
}

// canonical resolves key to a canonical field name, or "" when unknown.
func (p *Parser) canonical(key string) string {
	k := strings.ToLower(key)
	if alias, ok := p.aliases[k]; ok {
		return alias
	}
	if p.fields[k] {
		return k
	}
	return ""
}

func setField(row *domain.FeatureRow, field, value string) {
	switch field {
	case domain.FieldPrice:
		row.Price = ParseNumber(value)
	case domain.FieldBed:
		row.Bed = feature(ParseNumber(value))
	case domain.FieldBath:
		row.Bath = feature(ParseNumber(value))
	case domain.FieldAcreLot:
		row.AcreLot = feature(ParseNumber(value))
	case domain.FieldHouseSize:
		row.HouseSize = feature(ParseNumber(value))
	case domain.FieldStatus:
		row.Status = NormalizeCategory(value)
	case domain.FieldCity:
		row.City = NormalizeCategory(value)
	case domain.FieldState:
		row.State = NormalizeCategory(value)
	case domain.FieldZipCode:
		row.ZipCode = NormalizeCategory(value)
	}
}

// feature maps the negative "unknown" marker to NaN for non-target columns.
func feature(v float64) float64 {
	if v < 0 {
		return math.NaN()
	}
	return v
}

var numericNoise = strings.NewReplacer("$", "", "_", "", " ", "", "\t", "")

// ParseNumber coerces value to float64, returning NaN when it is not a number.
func ParseNumber(value string) float64 {
	cleaned := numericNoise.Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// NormalizeCategory trims, unquotes and lower-cases a categorical value.
func NormalizeCategory(value string) string {
	v := strings.TrimSpace(value)
	v = strings.Trim(v, `"'`)
	return strings.ToLower(strings.TrimSpace(v))
}
