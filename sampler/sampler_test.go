package sampler

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	uniformitySamples = 20000
	distanceTol       = 1e-9
	// ksTol is generous for 20k samples (the 99.9% critical value of the
	// one-sample KS statistic is ~0.014).
	ksTol = 0.025
)

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

func center(d int) []float64 {
	c := make([]float64, d)
	for i := range c {
		c[i] = float64(i) - 1.5
	}
	return c
}

// distances returns the Euclidean distance of every row of layer to c.
func distances(layer *mat.Dense, c []float64) []float64 {
	n, _ := layer.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = floats.Distance(layer.RawRowView(i), c, 2)
	}
	return out
}

// ksUniform returns the KS distance between the samples and U(0,1).
func ksUniform(t *testing.T, samples []float64) float64 {
	t.Helper()
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	grid := make([]float64, len(sorted))
	for i := range grid {
		grid[i] = (float64(i) + 0.5) / float64(len(grid))
	}
	return stat.KolmogorovSmirnov(sorted, nil, grid, nil)
}

func TestBallUniformInVolume(t *testing.T) {
	for _, d := range []int{1, 2, 5} {
		c := center(d)
		const radius = 2.5
		layer, err := Ball(newSource(uint64(d)), c, radius, uniformitySamples)
		require.NoError(t, err)

		rows, cols := layer.Dims()
		require.Equal(t, uniformitySamples, rows)
		require.Equal(t, d, cols)

		// For a uniform ball P(r <= t) = (t/R)^D, so (r/R)^D ~ U(0,1).
		transformed := make([]float64, rows)
		for i, r := range distances(layer, c) {
			require.LessOrEqual(t, r, radius+distanceTol, "D=%d row %d outside ball", d, i)
			transformed[i] = math.Pow(r/radius, float64(d))
		}
		mean, variance := stat.MeanVariance(transformed, nil)
		assert.InDelta(t, 0.5, mean, 0.01, "D=%d", d)
		assert.InDelta(t, 1.0/12.0, variance, 0.005, "D=%d", d)
		assert.Less(t, ksUniform(t, transformed), ksTol, "D=%d", d)
	}
}

func TestSphereOnSurface(t *testing.T) {
	for _, d := range []int{1, 2, 5} {
		c := center(d)
		const radius = 0.75
		layer, err := Sphere(newSource(7), c, radius, 2000)
		require.NoError(t, err)
		for i, r := range distances(layer, c) {
			require.InDelta(t, radius, r, distanceTol, "D=%d row %d", d, i)
		}

		// directions are isotropic: every coordinate averages to the center.
		rows, cols := layer.Dims()
		for j := 0; j < cols; j++ {
			col := mat.Col(nil, j, layer)
			assert.InDelta(t, c[j], stat.Mean(col, nil), 0.06, "D=%d coord %d over %d rows", d, j, rows)
		}
	}
}

func TestRingUniformInShell(t *testing.T) {
	for _, d := range []int{1, 2, 5} {
		c := center(d)
		const inner, outer = 1.0, 1.5
		layer, err := Ring(newSource(uint64(100+d)), c, inner, outer, uniformitySamples)
		require.NoError(t, err)

		fd := float64(d)
		lo, hi := math.Pow(inner, fd), math.Pow(outer, fd)
		transformed := make([]float64, uniformitySamples)
		for i, r := range distances(layer, c) {
			require.GreaterOrEqual(t, r, inner-distanceTol, "D=%d row %d inside hole", d, i)
			require.LessOrEqual(t, r, outer+distanceTol, "D=%d row %d outside shell", d, i)
			transformed[i] = (math.Pow(r, fd) - lo) / (hi - lo)
		}
		assert.Less(t, ksUniform(t, transformed), ksTol, "D=%d", d)
	}
}

func TestRingDegenerateBounds(t *testing.T) {
	c := []float64{0, 0, 0}

	// inner == outer behaves like a sphere
	layer, err := Ring(newSource(3), c, 2, 2, 50)
	require.NoError(t, err)
	for _, r := range distances(layer, c) {
		assert.InDelta(t, 2.0, r, distanceTol)
	}

	// inner == 0 behaves like a ball
	layer, err = Ring(newSource(3), c, 0, 1, 50)
	require.NoError(t, err)
	for _, r := range distances(layer, c) {
		assert.LessOrEqual(t, r, 1+distanceTol)
	}

	// large dimension and radius do not overflow
	big := make([]float64, 400)
	layer, err = Ring(newSource(3), big, 10, 11, 20)
	require.NoError(t, err)
	for _, r := range distances(layer, big) {
		assert.False(t, math.IsNaN(r))
		assert.GreaterOrEqual(t, r, 10-distanceTol)
		assert.LessOrEqual(t, r, 11+distanceTol)
	}
}

func TestSamplersDeterministic(t *testing.T) {
	c := center(4)
	a, err := Ring(newSource(42), c, 0.5, 1, 100)
	require.NoError(t, err)
	b, err := Ring(newSource(42), c, 0.5, 1, 100)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))

	other, err := Ring(newSource(43), c, 0.5, 1, 100)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, other))
}

func TestSamplerArgumentErrors(t *testing.T) {
	src := newSource(1)

	_, err := Ball(src, nil, 1, 10)
	assert.ErrorIs(t, err, ErrEmptyCenter)

	_, err = Ball(src, []float64{0}, 1, 0)
	assert.ErrorIs(t, err, ErrNonPositiveCount)

	_, err = Sphere(src, []float64{0}, -1, 3)
	assert.ErrorIs(t, err, ErrNegativeRadius)

	_, err = Ring(src, []float64{0}, 2, 1, 3)
	assert.ErrorIs(t, err, ErrInvalidRing)

	_, err = Ring(src, []float64{0}, -2, 1, 3)
	assert.ErrorIs(t, err, ErrNegativeRadius)
}

func TestDirectionUnitLength(t *testing.T) {
	src := newSource(9)
	for _, d := range []int{1, 2, 5, 50} {
		v := Direction(src, d)
		require.Len(t, v, d)
		assert.InDelta(t, 1.0, floats.Norm(v, 2), 1e-12)
	}
	assert.Nil(t, Direction(src, 0))
}
