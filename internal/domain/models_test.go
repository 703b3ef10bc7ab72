package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{name: "predict", input: "predict", want: ModePredict},
		{name: "train upper", input: " TRAIN ", want: ModeTrain},
		{name: "empty defaults to predict", input: "", want: ModePredict},
		{name: "unknown", input: "evaluate", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if !IsType(err, ErrorTypeInvalidArgument) {
					t.Fatalf("expected invalid argument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFeatureRow_HasTarget(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  bool
	}{
		{name: "missing", price: math.NaN(), want: false},
		{name: "unknown marker", price: -1, want: false},
		{name: "zero", price: 0, want: true},
		{name: "positive", price: 450000, want: true},
		{name: "infinite", price: math.Inf(1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewFeatureRow()
			row.Price = tt.price
			if got := row.HasTarget(); got != tt.want {
				t.Errorf("HasTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewFeatureRow_AllMissing(t *testing.T) {
	row := NewFeatureRow()
	for _, f := range NumericFields {
		v, ok := row.Numeric(f)
		if !ok || !math.IsNaN(v) {
			t.Errorf("Expected %s to be NaN, got %v", f, v)
		}
	}
	for _, f := range CategoricalFields {
		v, ok := row.Categorical(f)
		if !ok || v != "" {
			t.Errorf("Expected %s to be empty, got %q", f, v)
		}
	}
}

func TestRowSet_WithTarget(t *testing.T) {
	priced := NewFeatureRow()
	priced.Price = 300000
	unpriced := NewFeatureRow()

	set := &RowSet{Rows: []FeatureRow{priced, unpriced}}
	set.Append(&RowSet{Rows: []FeatureRow{priced}})

	if set.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", set.Len())
	}
	if n := len(set.WithTarget()); n != 2 {
		t.Errorf("Expected 2 priced rows, got %d", n)
	}

	var empty *RowSet
	if empty.Len() != 0 {
		t.Error("nil RowSet should have zero length")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := (TextUnit{Text: "abcdefgh"}).Tokens(); got != 2 {
		t.Errorf("Expected 2 tokens, got %d", got)
	}
	if got := EstimateTokens("abc"); got != 0 {
		t.Errorf("Expected 0 tokens, got %d", got)
	}
}

func TestIsType_WalksWrappedChain(t *testing.T) {
	inner := TransportError("dial failed", errors.New("connection refused"))
	outer := ExtractionFailed("unit 2", inner)
	wrapped := fmt.Errorf("pipeline: %w", outer)

	if !IsType(wrapped, ErrorTypeExtractionFailed) {
		t.Error("expected extraction_failed in chain")
	}
	if !IsType(wrapped, ErrorTypeTransport) {
		t.Error("expected transport in chain")
	}
	if IsType(wrapped, ErrorTypeUpstream) {
		t.Error("did not expect upstream in chain")
	}
	if TypeOf(wrapped) != ErrorTypeExtractionFailed {
		t.Errorf("TypeOf = %s", TypeOf(wrapped))
	}
	if TypeOf(errors.New("plain")) != "" {
		t.Error("plain error should have no type")
	}
}

func TestDomainError_Error(t *testing.T) {
	err := UpstreamError(502, "chat completion", nil)
	if err.Error() != "[upstream] chat completion" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if err.StatusCode != 502 {
		t.Errorf("Expected status 502, got %d", err.StatusCode)
	}
}
