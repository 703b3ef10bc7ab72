package gbrt

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
)

// Booster fits boosted regression trees under squared loss.
type Booster struct {
	Rounds         int     // trees added per Fit call
	LearningRate   float64 // shrinkage applied to every leaf
	MaxDepth       int     // root depth = 0
	MinSamplesLeaf int
	MinGain        float64 // minimal SSE reduction to accept a split
}

// Option configures a Booster.
type Option func(*Booster)

func WithRounds(n int) Option           { return func(b *Booster) { b.Rounds = n } }
func WithLearningRate(v float64) Option { return func(b *Booster) { b.LearningRate = v } }
func WithMaxDepth(d int) Option         { return func(b *Booster) { b.MaxDepth = d } }
func WithMinSamplesLeaf(n int) Option   { return func(b *Booster) { b.MinSamplesLeaf = n } }
func WithMinGain(v float64) Option      { return func(b *Booster) { b.MinGain = v } }

// NewBooster returns a booster with sensible defaults.
func NewBooster(opts ...Option) *Booster {
	b := &Booster{
		Rounds:         50,
		LearningRate:   0.1,
		MaxDepth:       4,
		MinSamplesLeaf: 1,
		MinGain:        1e-12,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Fit returns a new model holding prev's trees followed by b.Rounds new ones fitted
// to the residuals of y. prev may be nil. Columns listed in categorical hold integer
// category codes and are split by equality. Missing values must be NaN.
func (b *Booster) Fit(prev *Model, X [][]float64, y []float64, categorical []int) (*Model, error) {
	if len(X) == 0 {
		return nil, errors.New("gbrt: empty X")
	}
	if len(y) != len(X) {
		return nil, errors.New("gbrt: X and y length mismatch")
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return nil, errors.New("gbrt: inconsistent number of features in X rows")
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("gbrt: non-finite target at row %d", i)
		}
	}
	if b.Rounds < 1 || b.LearningRate <= 0 {
		return nil, errors.New("gbrt: rounds and learning rate must be positive")
	}

	cats := make([]bool, p)
	for _, c := range categorical {
		if c < 0 || c >= p {
			return nil, fmt.Errorf("gbrt: categorical index %d out of range", c)
		}
		cats[c] = true
	}

	var next *Model
	if prev != nil {
		if prev.NumFeatures != p {
			return nil, fmt.Errorf("%w: model has %d, X has %d", ErrFeatureMismatch, prev.NumFeatures, p)
		}
		if !sameIndices(prev.Categorical, categorical) {
			return nil, errors.New("gbrt: categorical columns differ from the warm-start model")
		}
		next = &Model{
			Base:        prev.Base,
			NumFeatures: p,
			Categorical: slices.Clone(prev.Categorical),
			Trees:       slices.Clone(prev.Trees),
		}
	} else {
		next = &Model{
			Base:        mean(y),
			NumFeatures: p,
			Categorical: sortedCopy(categorical),
		}
	}

	pred := make([]float64, len(X))
	for i, x := range X {
		pred[i] = next.PredictRow(x)
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	residual := make([]float64, len(y))

	for r := 0; r < b.Rounds; r++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tb := &treeBuilder{b: b, X: X, g: residual, cats: cats}
		tb.build(idx, 0)
		tree := Tree{Nodes: tb.nodes}
		next.Trees = append(next.Trees, tree)
		for i, x := range X {
			pred[i] += tree.Predict(x)
		}
	}

	return next, nil
}

type treeBuilder struct {
	b     *Booster
	X     [][]float64
	g     []float64 // residuals
	cats  []bool
	nodes []Node
}

// split holds the best split found for one feature.
type split struct {
	gain        float64
	feature     int
	threshold   float64
	categorical bool
	missingLeft bool
	left, right []int
}

// build appends the subtree for idx and returns its node index.
// Children always get higher indices than their parent.
func (tb *treeBuilder) build(idx []int, depth int) int {
	at := len(tb.nodes)
	tb.nodes = append(tb.nodes, Node{N: len(idx)})

	sum := 0.0
	for _, i := range idx {
		sum += tb.g[i]
	}
	leafValue := tb.b.LearningRate * sum / float64(len(idx))

	if depth >= tb.b.MaxDepth || len(idx) < 2*tb.b.MinSamplesLeaf {
		tb.nodes[at] = Node{Leaf: true, Value: leafValue, N: len(idx)}
		return at
	}

	best := tb.bestSplit(idx, sum)
	if best.feature < 0 || best.gain <= tb.b.MinGain {
		tb.nodes[at] = Node{Leaf: true, Value: leafValue, N: len(idx)}
		return at
	}

	left := tb.build(best.left, depth+1)
	right := tb.build(best.right, depth+1)
	tb.nodes[at] = Node{
		Feature:     best.feature,
		Threshold:   best.threshold,
		Categorical: best.categorical,
		MissingLeft: best.missingLeft,
		Left:        left,
		Right:       right,
		N:           len(idx),
	}
	return at
}

// bestSplit searches every feature in parallel. Ties go to the lowest feature index.
func (tb *treeBuilder) bestSplit(idx []int, sum float64) split {
	p := len(tb.cats)
	results := make([]split, p)

	var wg sync.WaitGroup
	for f := 0; f < p; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			results[f] = tb.splitFeature(idx, f, sum)
		}(f)
	}
	wg.Wait()

	best := split{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}
	return best
}

type pair struct {
	v float64
	i int
}

func (tb *treeBuilder) splitFeature(idx []int, f int, sum float64) split {
	result := split{feature: -1}

	valid := make([]pair, 0, len(idx))
	var nans []int
	nanSum := 0.0
	for _, i := range idx {
		v := tb.X[i][f]
		if math.IsNaN(v) {
			nans = append(nans, i)
			nanSum += tb.g[i]
		} else {
			valid = append(valid, pair{v, i})
		}
	}
	if len(valid) == 0 {
		return result
	}

	n := float64(len(idx))
	parent := sum * sum / n
	minLeaf := tb.b.MinSamplesLeaf

	// consider evaluates a split of valid into (in, out) with NaNs on either side.
	consider := func(inSum float64, inN int, threshold float64, categorical bool, partition func() ([]int, []int)) {
		outSum := sum - nanSum - inSum
		outN := len(valid) - inN
		for _, nanLeft := range []bool{true, false} {
			lSum, lN, rSum, rN := inSum, inN, outSum, outN
			if nanLeft {
				lSum += nanSum
				lN += len(nans)
			} else {
				rSum += nanSum
				rN += len(nans)
			}
			if lN < minLeaf || rN < minLeaf || lN == 0 || rN == 0 {
				continue
			}
			gain := lSum*lSum/float64(lN) + rSum*rSum/float64(rN) - parent
			if gain > result.gain {
				left, right := partition()
				if nanLeft {
					left = append(left, nans...)
				} else {
					right = append(right, nans...)
				}
				result = split{
					gain:        gain,
					feature:     f,
					threshold:   threshold,
					categorical: categorical,
					missingLeft: nanLeft,
					left:        left,
					right:       right,
				}
			}
			if len(nans) == 0 {
				break
			}
		}
	}

	if tb.cats[f] {
		sums := make(map[float64]float64)
		counts := make(map[float64]int)
		for _, pv := range valid {
			sums[pv.v] += tb.g[pv.i]
			counts[pv.v]++
		}
		keys := make([]float64, 0, len(sums))
		for k := range sums {
			keys = append(keys, k)
		}
		sort.Float64s(keys)
		for _, k := range keys {
			k := k
			consider(sums[k], counts[k], k, true, func() ([]int, []int) {
				var l, r []int
				for _, pv := range valid {
					if pv.v == k {
						l = append(l, pv.i)
					} else {
						r = append(r, pv.i)
					}
				}
				return l, r
			})
		}
		// Equality splits decide NaN placement from data; a tie leaves NaN with the larger side.
		if result.feature >= 0 && len(nans) == 0 {
			result.missingLeft = len(result.left) >= len(result.right)
		}
		return result
	}

	sort.Slice(valid, func(a, b int) bool { return valid[a].v < valid[b].v })
	prefix := 0.0
	for s := 1; s < len(valid); s++ {
		prefix += tb.g[valid[s-1].i]
		if valid[s].v == valid[s-1].v {
			continue
		}
		s := s
		thr := (valid[s-1].v + valid[s].v) / 2.0
		consider(prefix, s, thr, false, func() ([]int, []int) {
			l := make([]int, 0, s)
			r := make([]int, 0, len(valid)-s)
			for _, pv := range valid[:s] {
				l = append(l, pv.i)
			}
			for _, pv := range valid[s:] {
				r = append(r, pv.i)
			}
			return l, r
		})
	}
	if result.feature >= 0 && len(nans) == 0 {
		result.missingLeft = len(result.left) >= len(result.right)
	}
	return result
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func sortedCopy(v []int) []int {
	out := slices.Clone(v)
	slices.Sort(out)
	return slices.Compact(out)
}

func sameIndices(a, b []int) bool {
	return slices.Equal(sortedCopy(a), sortedCopy(b))
}
