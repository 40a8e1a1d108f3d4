package growingspheres

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/predict"
)

// MaxExhaustiveFeatures bounds the number of changed coordinates
// FeatureSelectionAll will enumerate (2^20 candidate vectors).
const MaxExhaustiveFeatures = 20

// exhaustiveBatch is the number of candidate vectors labeled per call.
const exhaustiveBatch = 4096

// changedCoordinates returns the indices where e differs from instance,
// sorted by increasing |e[i] - instance[i]|. Ties keep index order.
func changedCoordinates(e, instance []float64) []int {
	idx := make([]int, 0, len(e))
	for i := range e {
		if math.Abs(e[i]-instance[i]) > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(e[idx[a]]-instance[idx[a]]) < math.Abs(e[idx[b]]-instance[idx[b]])
	})
	return idx
}

// FeatureSelection makes a counterfactual sparse. It walks the changed
// coordinates from the smallest move to the largest and reverts each one to
// the instance's value whenever the reverted vector still matches the target.
// It is a single greedy pass: one prediction per changed coordinate.
func (g *GrowingSpheres) FeatureSelection(counterfactual []float64) ([]float64, error) {
	if len(counterfactual) != len(g.instance) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(counterfactual), len(g.instance))
	}
	g.progress("Feature selection...")

	out := append([]float64(nil), counterfactual...)
	reduced := 0
	for _, k := range changedCoordinates(counterfactual, g.instance) {
		moved := out[k]
		out[k] = g.instance[k]
		label, err := predict.PredictOne(g.clf, out)
		if err != nil {
			return nil, fmt.Errorf("feature selection: %w", err)
		}
		if g.target.Matches(label) {
			reduced++
			continue
		}
		out[k] = moved
	}

	g.progress("Reduced coordinates", zap.Int("reduced", reduced))
	return out, nil
}

// FeatureSelectionAll tries every subset of the changed coordinates and
// reverts the largest subset that keeps the target class. The cost is
// 2^m candidate predictions for m changed coordinates, so it refuses more
// than MaxExhaustiveFeatures. Among equally large subsets the first one in
// enumeration order wins.
func (g *GrowingSpheres) FeatureSelectionAll(counterfactual []float64) ([]float64, error) {
	if len(counterfactual) != len(g.instance) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(counterfactual), len(g.instance))
	}
	changed := changedCoordinates(counterfactual, g.instance)
	if len(changed) > MaxExhaustiveFeatures {
		return nil, fmt.Errorf("%w: %d changed, limit %d", ErrTooManyFeatures, len(changed), MaxExhaustiveFeatures)
	}
	g.progress("Grid search for projections...", zap.Int("changed", len(changed)))

	out := append([]float64(nil), counterfactual...)
	if len(changed) == 0 {
		return out, nil
	}

	total := uint64(1) << len(changed)
	var bestMask uint64
	bestSize := 0
	d := len(g.instance)
	for start := uint64(1); start < total; start += exhaustiveBatch {
		end := min(start+exhaustiveBatch, total)
		batch := mat.NewDense(int(end-start), d, nil)
		for mask := start; mask < end; mask++ {
			row := batch.RawRowView(int(mask - start))
			copy(row, counterfactual)
			revert(row, g.instance, changed, mask)
		}
		labels, err := predict.Labels(g.clf, batch)
		if err != nil {
			return nil, fmt.Errorf("exhaustive feature selection: %w", err)
		}
		for i, label := range labels {
			mask := start + uint64(i)
			if size := bits.OnesCount64(mask); size > bestSize && g.target.Matches(label) {
				bestMask, bestSize = mask, size
			}
		}
	}

	revert(out, g.instance, changed, bestMask)
	g.progress("Reduced coordinates", zap.Int("reduced", bestSize))
	return out, nil
}

// revert copies instance[changed[j]] into v for every bit j set in mask.
func revert(v, instance []float64, changed []int, mask uint64) {
	for j, k := range changed {
		if mask&(1<<uint(j)) != 0 {
			v[k] = instance[k]
		}
	}
}
