package growingspheres

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// candidate is an enemy together with its distance to the instance.
type candidate struct {
	point    []float64
	distance float64
}

// closestEnemies returns up to k enemies sorted by increasing Euclidean
// distance to instance. Equal distances keep their sampling order.
func closestEnemies(enemies [][]float64, instance []float64, k int) []candidate {
	candidates := make([]candidate, len(enemies))
	for i, e := range enemies {
		candidates[i] = candidate{point: e, distance: floats.Distance(e, instance, 2)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}

// VectorKey is an exact, hashable representation of a vector used to drop
// duplicate counterfactuals. Two vectors share a key only when every
// coordinate has the same bit pattern, except that -0 and +0 are equal.
func VectorKey(v []float64) string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if x == 0 { // -0 becomes +0
			x = 0
		}
		b.WriteString(strconv.FormatUint(math.Float64bits(x), 16))
	}
	return b.String()
}
