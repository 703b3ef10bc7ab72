package regress

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/regress/gbrt"
	"github.com/spherical-ai/appraisal/internal/snapshot"
)

func row(status string, price, bed, bath, size float64, city string) domain.FeatureRow {
	r := domain.NewFeatureRow()
	r.Status = status
	r.Price = price
	r.Bed = bed
	r.Bath = bath
	r.HouseSize = size
	r.City = city
	r.State = "texas"
	return r
}

func trainingRows() []domain.FeatureRow {
	return []domain.FeatureRow{
		row("for_sale", 200000, 2, 1, 900, "austin"),
		row("for_sale", 320000, 3, 2, 1500, "austin"),
		row("sold", 450000, 4, 3, 2200, "dallas"),
		row("for_sale", 610000, 5, 3, 3100, "dallas"),
	}
}

func newTestRegressor(store snapshot.Store) *Regressor {
	return New(gbrt.NewBooster(gbrt.WithRounds(50)), store, "price-regressor", nil)
}

func TestRegressor_PredictUntrained(t *testing.T) {
	r := newTestRegressor(nil)
	_, err := r.Predict(context.Background(), trainingRows())
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelUnavailable))
	assert.False(t, r.Trained())
}

func TestRegressor_PredictEmptyRows(t *testing.T) {
	r := newTestRegressor(nil)
	require.NoError(t, r.Train(context.Background(), trainingRows()))

	_, err := r.Predict(context.Background(), nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInvalidArgument))
}

func TestRegressor_TrainReplacesState(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()

	require.NoError(t, r.Train(ctx, trainingRows()))
	first := r.Snapshot()
	require.NotNil(t, first)
	assert.Equal(t, 50, first.Model.Rounds())

	require.NoError(t, r.Train(ctx, trainingRows()))
	second := r.Snapshot()
	assert.NotSame(t, first, second)
	assert.Equal(t, 100, second.Model.Rounds(), "second call warm-starts from the first")
	assert.Equal(t, 50, first.Model.Rounds(), "old state is never mutated")
	assert.Equal(t, 8, second.Rows)
	assert.Equal(t, 2, second.Batches)
}

func TestRegressor_PredictDoesNotMutate(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()
	require.NoError(t, r.Train(ctx, trainingRows()))

	before := r.Snapshot()
	beforeData, err := encodeState(before)
	require.NoError(t, err)

	query := []domain.FeatureRow{row("for_sale", math.NaN(), 3, 2, 1400, "houston")}
	preds, err := r.Predict(ctx, query)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.False(t, math.IsNaN(preds[0]))

	after := r.Snapshot()
	assert.Same(t, before, after)
	afterData, err := encodeState(after)
	require.NoError(t, err)
	assert.Equal(t, beforeData, afterData)
}

func TestRegressor_PredictsInRowOrder(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()
	rows := trainingRows()
	require.NoError(t, r.Train(ctx, rows))

	preds, err := r.Predict(ctx, []domain.FeatureRow{rows[3], rows[0]})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Greater(t, preds[0], preds[1])
}

func TestRegressor_TrainWithoutTargetKeepsState(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()
	require.NoError(t, r.Train(ctx, trainingRows()))
	before := r.Snapshot()

	unpriced := []domain.FeatureRow{row("for_sale", -1, 3, 2, 1000, "austin")}
	err := r.Train(ctx, unpriced)
	assert.True(t, domain.IsType(err, domain.ErrorTypeTrainingFailed))
	assert.Same(t, before, r.Snapshot())
}

type failingBooster struct {
	panics bool
}

func (b failingBooster) Fit(*gbrt.Model, [][]float64, []float64, []int) (*gbrt.Model, error) {
	if b.panics {
		panic("index out of range")
	}
	return nil, errors.New("singular matrix")
}

func TestRegressor_FitFailureKeepsState(t *testing.T) {
	for _, panics := range []bool{false, true} {
		r := newTestRegressor(nil)
		ctx := context.Background()
		require.NoError(t, r.Train(ctx, trainingRows()))
		before := r.Snapshot()

		r.booster = failingBooster{panics: panics}
		err := r.Train(ctx, trainingRows())
		assert.True(t, domain.IsType(err, domain.ErrorTypeTrainingFailed), "panics=%v", panics)
		assert.Same(t, before, r.Snapshot())
	}
}

func TestRegressor_PredictPanicIsInternal(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()
	require.NoError(t, r.Train(ctx, trainingRows()))

	state := *r.Snapshot()
	broken := *state.Model
	broken.Trees = []gbrt.Tree{{Nodes: []gbrt.Node{{Feature: 0, Left: 7, Right: 8}}}}
	state.Model = &broken
	r.state = &state

	preds, err := r.Predict(ctx, trainingRows())
	assert.Nil(t, preds)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInternal))
	assert.False(t, domain.IsType(err, domain.ErrorTypeModelUnavailable))
	assert.Contains(t, err.Error(), "panic during predict")
}

func TestVocabulary_AppendOnly(t *testing.T) {
	v := Vocabulary(nil).Extend(trainingRows())
	assert.Equal(t, []string{"austin", "dallas"}, v[domain.FieldCity])

	extended := v.Extend([]domain.FeatureRow{row("pending", 1, 1, 1, 1, "el paso"), row("sold", 1, 1, 1, 1, "austin")})
	assert.Equal(t, []string{"austin", "dallas", "el paso"}, extended[domain.FieldCity])
	assert.Equal(t, []string{"for_sale", "sold", "pending"}, extended[domain.FieldStatus])
	assert.Equal(t, 2, v.Size(domain.FieldCity), "original is untouched")
}

func TestEncoder_MissingAndUnseen(t *testing.T) {
	v := Vocabulary(nil).Extend(trainingRows())
	enc := newEncoder(v)

	r := domain.NewFeatureRow()
	r.City = "nowhere"
	x := enc.encode([]domain.FeatureRow{r})[0]

	require.Len(t, x, len(FeatureColumns))
	assert.True(t, math.IsNaN(x[0]), "missing status")
	assert.Equal(t, float64(unseenCode), x[4], "unseen city")
	assert.True(t, math.IsNaN(x[1]), "missing bed")
	assert.Equal(t, []int{0, 4, 5, 6}, CategoricalColumns)
}

func TestRegressor_PersistAndLoad(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	r := newTestRegressor(store)
	require.NoError(t, r.Train(ctx, trainingRows()))
	require.NoError(t, r.Persist(ctx))

	loaded := newTestRegressor(store)
	require.NoError(t, loaded.Load(ctx))

	query := trainingRows()
	want, err := r.Predict(ctx, query)
	require.NoError(t, err)
	got, err := loaded.Predict(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, r.Snapshot().Vocab, loaded.Snapshot().Vocab)
}

func TestRegressor_LoadEmptySlot(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)

	r := newTestRegressor(store)
	err = r.Load(context.Background())
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelUnavailable))
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
	assert.Nil(t, r.Snapshot())
}

func TestRegressor_LoadCorruptSnapshot(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "price-regressor", []byte("garbage")))

	r := newTestRegressor(store)
	err = r.Load(context.Background())
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) ([]byte, error) { return nil, snapshot.ErrNotFound }
func (brokenStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}
func (brokenStore) Close() error { return nil }

func TestRegressor_PersistFailureKeepsNewState(t *testing.T) {
	r := newTestRegressor(brokenStore{})
	ctx := context.Background()

	require.NoError(t, r.Train(ctx, trainingRows()))
	trained := r.Snapshot()

	err := r.Persist(ctx)
	assert.True(t, domain.IsType(err, domain.ErrorTypePersistFailed))

	assert.Same(t, trained, r.Snapshot())
	preds, err := r.Predict(ctx, trainingRows())
	require.NoError(t, err)
	assert.Len(t, preds, 4)
}

func TestRegressor_PersistWithoutModelOrStore(t *testing.T) {
	ctx := context.Background()

	err := newTestRegressor(brokenStore{}).Persist(ctx)
	assert.True(t, domain.IsType(err, domain.ErrorTypePersistFailed))
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelUnavailable))

	r := newTestRegressor(nil)
	require.NoError(t, r.Train(ctx, trainingRows()))
	assert.True(t, domain.IsType(r.Persist(ctx), domain.ErrorTypePersistFailed))
}

func TestRegressor_ConcurrentPredictDuringTrain(t *testing.T) {
	r := newTestRegressor(nil)
	ctx := context.Background()
	require.NoError(t, r.Train(ctx, trainingRows()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				preds, err := r.Predict(ctx, trainingRows())
				assert.NoError(t, err)
				assert.Len(t, preds, 4)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Train(ctx, trainingRows()))
	}
	wg.Wait()

	assert.Equal(t, 200, r.Snapshot().Model.Rounds())
}
