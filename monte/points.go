package monte

import (
	"fmt"
	"math/rand/v2"
)

// Points is an in-memory labeled dataset.
type Points struct {
	X [][]float64
	Y []int
}

func (p *Points) Len() int { return len(p.X) }

// Batch returns the rows and labels at indices. Rows are shared, not copied.
func (p *Points) Batch(indices []int) ([][]float64, []int, error) {
	rows := make([][]float64, len(indices))
	labels := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(p.X) {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(p.X))
		}
		rows[i] = p.X[idx]
		labels[i] = p.Y[idx]
	}
	return rows, labels, nil
}

// Synthetic draws n points uniformly in [lo, hi]^dim and labels them with
// rule.
func Synthetic(seed int64, n, dim int, lo, hi float64, rule func([]float64) int) *Points {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	p := &Points{X: make([][]float64, n), Y: make([]int, n)}
	for i := range p.X {
		x := make([]float64, dim)
		for j := range x {
			x[j] = lo + rng.Float64()*(hi-lo)
		}
		p.X[i] = x
		p.Y[i] = rule(x)
	}
	return p
}
