// Package regress holds the incrementally trained price regressor.
package regress

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
	"github.com/spherical-ai/appraisal/internal/regress/gbrt"
	"github.com/spherical-ai/appraisal/internal/snapshot"
)

// Booster is the regression algorithm. Fit must not modify prev.
type Booster interface {
	Fit(prev *gbrt.Model, X [][]float64, y []float64, categorical []int) (*gbrt.Model, error)
}

// State is an immutable trained regressor. Training produces a new State.
type State struct {
	Model     *gbrt.Model
	Vocab     Vocabulary
	Rows      int // rows trained on across all batches
	Batches   int
	UpdatedAt time.Time
}

// Regressor trains and predicts prices. Predictions never block on a running
// training call for longer than the final state swap.
type Regressor struct {
	mu      sync.RWMutex
	state   *State
	trainMu sync.Mutex // one training call at a time

	booster Booster
	store   snapshot.Store
	name    string
	logger  *observability.Logger
}

// New creates an untrained regressor. store may be nil, in which case Persist and
// Load fail.
func New(booster Booster, store snapshot.Store, name string, logger *observability.Logger) *Regressor {
	return &Regressor{
		booster: booster,
		store:   store,
		name:    name,
		logger:  observability.OrNop(logger).WithComponent("regressor"),
	}
}

// Snapshot returns the current state, or nil when untrained. The returned value
// must not be modified.
func (r *Regressor) Snapshot() *State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Trained reports whether a model is available for prediction.
func (r *Regressor) Trained() bool {
	return r.Snapshot() != nil
}

// Train fits rounds on rows, warm-starting from the current state, and replaces
// the state on success. Rows without a usable price are ignored. On any failure
// the previous state is kept and a training_failed error is returned.
func (r *Regressor) Train(ctx context.Context, rows []domain.FeatureRow) (err error) {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = domain.TrainingFailed("panic during fit", pkgerrors.Errorf("%v", p))
			r.logger.Error().Stack().Err(err).Msg("Regressor fit panicked")
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.TrainingFailed("training cancelled", err)
	}

	usable := (&domain.RowSet{Rows: rows}).WithTarget()
	if len(usable) == 0 {
		return domain.TrainingFailed(fmt.Sprintf("none of %d rows has a usable price", len(rows)), nil)
	}

	start := time.Now()
	prev := r.Snapshot()

	var prevModel *gbrt.Model
	var vocab Vocabulary
	var total, batches int
	if prev != nil {
		prevModel, vocab, total, batches = prev.Model, prev.Vocab, prev.Rows, prev.Batches
	}

	vocab = vocab.Extend(usable)
	X := newEncoder(vocab).encode(usable)
	y := targets(usable)

	model, err := r.booster.Fit(prevModel, X, y, CategoricalColumns)
	if err != nil {
		return domain.TrainingFailed("fit", err)
	}

	next := &State{
		Model:     model,
		Vocab:     vocab,
		Rows:      total + len(usable),
		Batches:   batches + 1,
		UpdatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.state = next
	r.mu.Unlock()

	r.logger.Info().
		Int("rows", len(usable)).
		Int("ignored", len(rows)-len(usable)).
		Int("rounds", model.Rounds()).
		Int("total_rows", next.Rows).
		Dur("duration", time.Since(start)).
		Msg("Regressor trained")

	return nil
}

// Predict returns one price per row, in order. The price field of rows is ignored.
func (r *Regressor) Predict(ctx context.Context, rows []domain.FeatureRow) (out []float64, err error) {
	if len(rows) == 0 {
		return nil, domain.InvalidArgument("no rows to predict", nil)
	}

	state := r.Snapshot()
	if state == nil {
		return nil, domain.ModelUnavailable("regressor has not been trained", nil)
	}

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, domain.Internal("panic during predict", pkgerrors.Errorf("%v", p))
			r.logger.Error().Stack().Err(err).Int("rows", len(rows)).Msg("Regressor predict panicked")
		}
	}()

	X := newEncoder(state.Vocab).encode(rows)
	preds, err := state.Model.Predict(X)
	if err != nil {
		return nil, domain.ModelUnavailable("predict", err)
	}

	r.logger.Debug().Int("rows", len(rows)).Floats64("predictions", preds).Msg("Prices predicted")
	return preds, nil
}

// Persist writes the current state to the snapshot slot. On failure the in-memory
// state stays authoritative and a persist_failed error is returned.
func (r *Regressor) Persist(ctx context.Context) error {
	state := r.Snapshot()
	if state == nil {
		return domain.PersistFailed("nothing to persist", domain.ModelUnavailable("regressor has not been trained", nil))
	}
	if r.store == nil {
		return domain.PersistFailed("no snapshot store configured", nil)
	}

	data, err := encodeState(state)
	if err != nil {
		return domain.PersistFailed("encode snapshot", err)
	}
	if err := r.store.Save(ctx, r.name, data); err != nil {
		r.logger.Error().Err(err).Str("name", r.name).Msg("Snapshot persist failed")
		return domain.PersistFailed(fmt.Sprintf("save snapshot %s", r.name), err)
	}

	r.logger.Info().Str("name", r.name).Int("bytes", len(data)).Msg("Snapshot persisted")
	return nil
}

// Load replaces the current state with the stored snapshot. An empty slot yields a
// model_unavailable error wrapping snapshot.ErrNotFound and leaves the state alone.
func (r *Regressor) Load(ctx context.Context) error {
	if r.store == nil {
		return domain.ConfigError("no snapshot store configured", nil)
	}

	data, err := r.store.Load(ctx, r.name)
	if errors.Is(err, snapshot.ErrNotFound) {
		return domain.ModelUnavailable(fmt.Sprintf("no snapshot named %s", r.name), err)
	}
	if err != nil {
		return domain.IOError("load snapshot", err)
	}

	state, err := decodeState(data)
	if err != nil {
		return domain.IOError("decode snapshot", err)
	}

	r.trainMu.Lock()
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	r.trainMu.Unlock()

	r.logger.Info().
		Str("name", r.name).
		Int("rounds", state.Model.Rounds()).
		Int("total_rows", state.Rows).
		Msg("Snapshot loaded")
	return nil
}

func encodeState(s *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (*State, error) {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	if s.Model == nil {
		return nil, errors.New("snapshot has no model")
	}
	if s.Model.NumFeatures != len(FeatureColumns) {
		return nil, fmt.Errorf("snapshot has %d features, want %d", s.Model.NumFeatures, len(FeatureColumns))
	}
	return &s, nil
}
