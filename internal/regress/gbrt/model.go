// Package gbrt implements gradient-boosted regression trees with warm start,
// native categorical equality splits and NaN-aware routing.
package gbrt

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
)

// Node is one node of a regression tree, stored in a flat slice.
type Node struct {
	Leaf        bool
	Feature     int
	Threshold   float64 // numeric: x <= Threshold goes left; categorical: x == Threshold goes left
	Categorical bool
	MissingLeft bool // where NaN goes
	Left        int
	Right       int
	Value       float64 // leaf output, already scaled by the learning rate
	N           int     // training samples that reached this node
}

// Tree is a regression tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node
}

// Predict walks x down the tree.
func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := x[n.Feature]
		var left bool
		switch {
		case math.IsNaN(v):
			left = n.MissingLeft
		case n.Categorical:
			left = v == n.Threshold
		default:
			left = v <= n.Threshold
		}
		if left {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Model is an immutable boosted ensemble. Fit never modifies an existing Model.
type Model struct {
	Base        float64
	NumFeatures int
	Categorical []int
	Trees       []Tree
}

// ErrFeatureMismatch is returned when input width differs from the model's.
var ErrFeatureMismatch = errors.New("gbrt: feature count mismatch")

// Rounds returns the number of boosting rounds in the ensemble.
func (m *Model) Rounds() int {
	if m == nil {
		return 0
	}
	return len(m.Trees)
}

// PredictRow returns the ensemble output for one row.
func (m *Model) PredictRow(x []float64) float64 {
	out := m.Base
	for _, t := range m.Trees {
		out += t.Predict(x)
	}
	return out
}

// Predict returns one value per row of X, in order.
func (m *Model) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != m.NumFeatures {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrFeatureMismatch, i, len(x), m.NumFeatures)
		}
		out[i] = m.PredictRow(x)
	}
	return out, nil
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	type wire Model
	if err := gob.NewEncoder(&buf).Encode((*wire)(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (m *Model) UnmarshalBinary(data []byte) error {
	type wire Model
	var w wire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	*m = Model(w)
	return m.validate()
}

func (m *Model) validate() error {
	for ti, t := range m.Trees {
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= m.NumFeatures ||
				n.Left <= ni || n.Left >= len(t.Nodes) ||
				n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("gbrt: corrupt node %d in tree %d", ni, ti)
			}
		}
	}
	return nil
}
