package gbrt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearData() ([][]float64, []float64) {
	X := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}, {5, 0}, {6, 1}}
	y := make([]float64, len(X))
	for i, x := range X {
		y[i] = 100 * x[0]
	}
	return X, y
}

func TestBooster_FitApproachesTargets(t *testing.T) {
	X, y := linearData()
	m, err := NewBooster().Fit(nil, X, y, nil)
	require.NoError(t, err)

	assert.Equal(t, 50, m.Rounds())
	pred, err := m.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], pred[i], 0.05*y[i], "row %d", i)
	}
}

func TestBooster_WarmStartReturnsNewModel(t *testing.T) {
	X, y := linearData()
	b := NewBooster(WithRounds(10))

	first, err := b.Fit(nil, X, y, nil)
	require.NoError(t, err)
	before, err := first.Predict(X)
	require.NoError(t, err)

	second, err := b.Fit(first, X, y, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, first.Rounds(), "previous model is not modified")
	assert.Equal(t, 20, second.Rounds())
	assert.Equal(t, first.Base, second.Base)

	after, err := first.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	improved, err := second.Predict(X)
	require.NoError(t, err)
	var errFirst, errSecond float64
	for i := range y {
		errFirst += math.Abs(y[i] - before[i])
		errSecond += math.Abs(y[i] - improved[i])
	}
	assert.Less(t, errSecond, errFirst)
}

func TestBooster_CategoricalEqualitySplit(t *testing.T) {
	// Code 1 is expensive, codes 0 and 2 are cheap: not separable by one threshold.
	X := [][]float64{{0}, {1}, {2}, {0}, {1}, {2}}
	y := []float64{10, 500, 10, 12, 520, 8}

	m, err := NewBooster(WithMaxDepth(1), WithRounds(1)).Fit(nil, X, y, []int{0})
	require.NoError(t, err)

	root := m.Trees[0].Nodes[0]
	require.False(t, root.Leaf)
	assert.True(t, root.Categorical)
	assert.Equal(t, 1.0, root.Threshold)

	pred, err := m.Predict([][]float64{{1}, {2}, {7}})
	require.NoError(t, err)
	assert.Greater(t, pred[0], pred[1])
	assert.InDelta(t, pred[1], pred[2], 1e-9, "unseen codes follow the non-matching branch")
}

func TestBooster_MissingValues(t *testing.T) {
	nan := math.NaN()
	X := [][]float64{{1}, {2}, {nan}, {8}, {9}, {nan}}
	y := []float64{10, 11, 95, 90, 92, 97}

	m, err := NewBooster().Fit(nil, X, y, nil)
	require.NoError(t, err)

	pred, err := m.Predict([][]float64{{nan}, {1.5}})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred[0]))
	assert.Greater(t, pred[0], pred[1], "missing rows resemble the expensive group")
}

func TestBooster_FitErrors(t *testing.T) {
	X, y := linearData()
	b := NewBooster(WithRounds(2))
	prev, err := b.Fit(nil, X, y, []int{1})
	require.NoError(t, err)

	tests := []struct {
		name string
		prev *Model
		X    [][]float64
		y    []float64
		cats []int
	}{
		{name: "empty", X: nil, y: nil},
		{name: "length mismatch", X: X, y: y[:2]},
		{name: "ragged rows", X: [][]float64{{1, 2}, {3}}, y: []float64{1, 2}},
		{name: "nan target", X: [][]float64{{1}}, y: []float64{math.NaN()}},
		{name: "categorical out of range", X: X, y: y, cats: []int{5}},
		{name: "warm start width", prev: prev, X: [][]float64{{1}}, y: []float64{1}},
		{name: "warm start categoricals", prev: prev, X: X, y: y, cats: []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Fit(tt.prev, tt.X, tt.y, tt.cats)
			assert.Error(t, err)
		})
	}
}

func TestModel_PredictWidthMismatch(t *testing.T) {
	X, y := linearData()
	m, err := NewBooster(WithRounds(1)).Fit(nil, X, y, nil)
	require.NoError(t, err)

	_, err = m.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestModel_BinaryRoundTrip(t *testing.T) {
	X, y := linearData()
	m, err := NewBooster(WithRounds(5)).Fit(nil, X, y, []int{1})
	require.NoError(t, err)

	data, err := m.MarshalBinary()
	require.NoError(t, err)

	var decoded Model
	require.NoError(t, decoded.UnmarshalBinary(data))

	want, _ := m.Predict(X)
	got, err := decoded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []int{1}, decoded.Categorical)
}

func TestModel_UnmarshalRejectsCorruptTree(t *testing.T) {
	bad := &Model{NumFeatures: 1, Trees: []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}}}
	data, err := bad.MarshalBinary()
	require.NoError(t, err)

	var decoded Model
	assert.Error(t, decoded.UnmarshalBinary(data))
	assert.Error(t, decoded.UnmarshalBinary([]byte("not gob")))
}

func TestTree_CategoricalRouting(t *testing.T) {
	tree := Tree{Nodes: []Node{
		{Feature: 0, Threshold: 2, Categorical: true, MissingLeft: true, Left: 1, Right: 2},
		{Leaf: true, Value: 10},
		{Leaf: true, Value: 20},
	}}

	assert.Equal(t, 10.0, tree.Predict([]float64{2}), "matching code goes left")
	assert.Equal(t, 20.0, tree.Predict([]float64{0}), "other codes go right")
	assert.Equal(t, 20.0, tree.Predict([]float64{-1}), "unseen code is not missing")
	assert.Equal(t, 10.0, tree.Predict([]float64{math.NaN()}), "missing follows MissingLeft")
}
