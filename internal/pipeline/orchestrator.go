// Package pipeline drives a document through reduction, extraction, parsing and
// the price regressor.
package pipeline

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
	"github.com/spherical-ai/appraisal/internal/tabular"
)

// Status is the outcome of a pipeline run.
type Status string

const (
	StatusOK               Status = "ok"
	StatusTrained          Status = "trained"
	StatusInsufficientData Status = "insufficient_data"
	StatusNoRows           Status = "no_rows"
	StatusUpstreamFailure  Status = "upstream_failure"
	StatusFailed           Status = "failed"
)

// Reducer shrinks document text into extraction-sized units.
type Reducer interface {
	Reduce(ctx context.Context, text string) ([]domain.TextUnit, error)
}

// Extractor turns a unit into "key: value" lines.
type Extractor interface {
	Extract(ctx context.Context, unit domain.TextUnit) (string, error)
}

// Parser turns extractor output into typed rows.
type Parser interface {
	Parse(raw string, mode domain.Mode) (*tabular.ParsedRows, error)
}

// Regressor is the incrementally trained price model.
type Regressor interface {
	Train(ctx context.Context, rows []domain.FeatureRow) error
	Predict(ctx context.Context, rows []domain.FeatureRow) ([]float64, error)
	Persist(ctx context.Context) error
	Load(ctx context.Context) error
}

// ModelNotifier is told after a trained model has been persisted.
type ModelNotifier interface {
	ModelUpdated(ctx context.Context, name string) error
}

// Config holds orchestrator settings.
type Config struct {
	MinTrainRows int
	Persist      bool
	ModelName    string
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MinTrainRows: 2,
		Persist:      true,
		ModelName:    "price-regressor",
	}
}

// ResultError is the failure carried by a Result.
type ResultError struct {
	Kind    domain.ErrorType `json:"kind"`
	Message string           `json:"message"`
}

// Diagnostic is a parser note attributed to the unit it came from.
type Diagnostic struct {
	Unit int `json:"unit"`
	tabular.Diagnostic
}

// Result is the structured reply of a run. Run never returns a raw error.
type Result struct {
	DocumentID      string        `json:"document_id"`
	Mode            domain.Mode   `json:"mode"`
	Status          Status        `json:"status"`
	Units           int           `json:"units"`
	SkippedUnits    int           `json:"skipped_units"`
	// DroppedUnpaired is set when pairwise pooling discarded every summary.
	DroppedUnpaired bool          `json:"dropped_unpaired,omitempty"`
	RowsParsed      int           `json:"rows_parsed"`
	Predictions     []float64     `json:"predictions,omitempty"`
	Shortfall       int           `json:"shortfall,omitempty"`
	Diagnostics     []Diagnostic  `json:"diagnostics,omitempty"`
	Error           *ResultError  `json:"error,omitempty"`
	PersistError    *ResultError  `json:"persist_error,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

func (r *Result) fail(status Status, err error) *Result {
	r.Status = status
	r.Error = toResultError(err)
	return r
}

func toResultError(err error) *ResultError {
	kind := domain.TypeOf(err)
	if kind == "" {
		kind = domain.ErrorTypeIO
	}
	return &ResultError{Kind: kind, Message: err.Error()}
}

// RunOption adjusts a single run.
type RunOption func(*runOptions)

type runOptions struct {
	persist bool
}

// WithPersist overrides whether a successful training run is persisted.
func WithPersist(persist bool) RunOption {
	return func(o *runOptions) {
		o.persist = persist
	}
}

// Orchestrator runs documents through the pipeline stages.
type Orchestrator struct {
	reducer   Reducer
	extractor Extractor
	parser    Parser
	regressor Regressor
	notifier  ModelNotifier
	config    Config
	logger    *observability.Logger
}

// NewOrchestrator wires the pipeline stages. notifier may be nil.
func NewOrchestrator(
	cfg Config,
	reducer Reducer,
	extractor Extractor,
	parser Parser,
	regressor Regressor,
	notifier ModelNotifier,
	logger *observability.Logger,
) *Orchestrator {
	if cfg.MinTrainRows <= 0 {
		cfg.MinTrainRows = DefaultConfig().MinTrainRows
	}
	return &Orchestrator{
		reducer:   reducer,
		extractor: extractor,
		parser:    parser,
		regressor: regressor,
		notifier:  notifier,
		config:    cfg,
		logger:    observability.OrNop(logger).WithComponent("pipeline"),
	}
}

// Run processes doc in the given mode. Stage failures local to a unit skip that
// unit; everything else is reported through the Result status.
func (o *Orchestrator) Run(ctx context.Context, doc domain.RawDocument, mode domain.Mode, opts ...RunOption) (result *Result) {
	ro := runOptions{persist: o.config.Persist}
	for _, opt := range opts {
		opt(&ro)
	}

	start := time.Now()
	logger := o.logger.WithContext(ctx).WithDocument(doc.ID.String()).WithMode(string(mode))
	result = &Result{DocumentID: doc.ID.String(), Mode: mode}
	defer func() {
		result.Duration = time.Since(start)
		logger.Info().
			Str("status", string(result.Status)).
			Int("units", result.Units).
			Int("skipped_units", result.SkippedUnits).
			Int("rows_parsed", result.RowsParsed).
			Dur("duration", result.Duration).
			Msg("Pipeline run finished")
	}()
	defer func() {
		if p := recover(); p != nil {
			err := domain.Internal("panic in pipeline", pkgerrors.Errorf("%v", p))
			logger.Error().Stack().Err(err).Msg("Pipeline run panicked")
			result.fail(StatusFailed, err)
		}
	}()

	if mode != domain.ModePredict && mode != domain.ModeTrain {
		return result.fail(StatusFailed, domain.InvalidArgument(fmt.Sprintf("unknown mode %q", mode), nil))
	}

	logger.Info().
		Str("source", doc.SourceLabel).
		Int("chars", len(doc.Text)).
		Int("tokens", domain.EstimateTokens(doc.Text)).
		Msg("Pipeline run started")

	// Step 1: reduce the document
	units, err := o.reducer.Reduce(ctx, doc.Text)
	if err != nil {
		logger.Error().Err(err).Msg("Reduction failed")
		if domain.IsType(err, domain.ErrorTypeInvalidArgument) {
			return result.fail(StatusFailed, err)
		}
		return result.fail(StatusUpstreamFailure, err)
	}
	result.Units = len(units)
	if len(units) == 0 {
		result.DroppedUnpaired = true
		result.Diagnostics = append(result.Diagnostics, Diagnostic{Unit: -1, Diagnostic: tabular.Diagnostic{
			Reason:   "reduction left no text units: the unpaired summary was dropped during pooling",
			Severity: "warning",
		}})
		logger.Warn().Bool("dropped_unpaired", true).Msg("Reduction produced no units")
	}

	// Step 2: extract and parse each unit
	var rows domain.RowSet
	var lastCapabilityErr error
	capabilityFailures := 0
	for i, unit := range units {
		raw, err := o.extractor.Extract(ctx, unit)
		if err != nil {
			result.SkippedUnits++
			if isCapabilityFailure(err) {
				capabilityFailures++
				lastCapabilityErr = err
			}
			logger.Warn().Err(err).Int("unit", i).Msg("Skipping unit: extraction failed")
			continue
		}

		parsed, err := o.parser.Parse(raw, mode)
		if parsed != nil {
			for _, d := range parsed.Diagnostics {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{Unit: i, Diagnostic: d})
			}
		}
		if err != nil {
			result.SkippedUnits++
			logger.Warn().Err(err).Int("unit", i).Msg("Skipping unit: parse failed")
			continue
		}
		rows.Append(&parsed.RowSet)
	}
	result.RowsParsed = rows.Len()

	if len(units) > 0 && capabilityFailures == len(units) {
		return result.fail(StatusUpstreamFailure, lastCapabilityErr)
	}

	// Step 3: predict or train on the whole batch
	if mode == domain.ModePredict {
		return o.predict(ctx, rows.Rows, result)
	}
	return o.train(ctx, logger, rows.Rows, ro, result)
}

func (o *Orchestrator) predict(ctx context.Context, rows []domain.FeatureRow, result *Result) *Result {
	if len(rows) == 0 {
		result.Status = StatusNoRows
		return result
	}
	preds, err := o.regressor.Predict(ctx, rows)
	if err != nil {
		return result.fail(StatusFailed, err)
	}
	result.Predictions = preds
	result.Status = StatusOK
	return result
}

func (o *Orchestrator) train(ctx context.Context, logger *observability.Logger, rows []domain.FeatureRow, ro runOptions, result *Result) *Result {
	if len(rows) < o.config.MinTrainRows {
		result.Status = StatusInsufficientData
		result.Shortfall = o.config.MinTrainRows - len(rows)
		logger.Warn().
			Int("rows", len(rows)).
			Int("min_rows", o.config.MinTrainRows).
			Msg("Not enough rows to train")
		return result
	}

	if err := o.regressor.Train(ctx, rows); err != nil {
		return result.fail(StatusFailed, err)
	}
	result.Status = StatusTrained

	if !ro.persist {
		return result
	}
	if err := o.regressor.Persist(ctx); err != nil {
		result.PersistError = toResultError(err)
		logger.Error().Err(err).Msg("Trained model not persisted")
		return result
	}

	if o.notifier != nil {
		if err := o.notifier.ModelUpdated(ctx, o.config.ModelName); err != nil {
			logger.Warn().Err(err).Msg("Failed to announce model update")
		}
	}
	return result
}

// Reload replaces the in-memory model with the stored snapshot.
func (o *Orchestrator) Reload(ctx context.Context) error {
	return o.regressor.Load(ctx)
}

// isCapabilityFailure reports whether err came from the chat capability itself
// rather than from the content of a unit.
func isCapabilityFailure(err error) bool {
	return domain.IsType(err, domain.ErrorTypeUpstream) || domain.IsType(err, domain.ErrorTypeTransport)
}
