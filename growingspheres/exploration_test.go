package growingspheres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/predict"
	"github.com/Noofbiz/growingspheres/sampler"
)

func TestExploreContractsThenExpands(t *testing.T) {
	cfg := testConfig(11)
	cfg.FirstRadius = 10
	cfg.DecreaseFactor = 2
	g := mustNew(t, []float64{0, 0}, sumAbove(1), cfg)

	exp, err := g.Explore()
	require.NoError(t, err)
	require.True(t, exp.Found)

	// the boundary sits at distance 1/sqrt(2): balls of radius 10, 5, 2.5
	// and 1.25 cross it, 0.625 does not.
	assert.Equal(t, 5, exp.State.Attempts)
	assert.Equal(t, 0.625, exp.Inner)
	assert.Equal(t, 0.3125, exp.State.Step)
	assert.Equal(t, 0.9375, exp.Outer)
	assert.Equal(t, 1, exp.State.Iterations)
	assert.Equal(t, len(exp.Enemies), exp.State.Enemies)

	for _, e := range exp.Enemies {
		assert.Greater(t, e[0]+e[1], 1.0)
		r := floats.Norm(e, 2)
		assert.GreaterOrEqual(t, r, exp.Inner-1e-9)
		assert.LessOrEqual(t, r, exp.Outer+1e-9)
	}
}

func TestContractionIsMonotonic(t *testing.T) {
	cfg := testConfig(5)
	cfg.FirstRadius = 10
	cfg.DecreaseFactor = 2
	g := mustNew(t, []float64{0, 0}, sumAbove(1), cfg)

	exp, err := g.Explore()
	require.NoError(t, err)
	require.True(t, exp.Found)

	src := g.newSource()
	for r := exp.Inner; r > 1e-6; r /= 3 {
		layer, err := sampler.Ball(src, g.instance, r, cfg.NInLayer)
		require.NoError(t, err)
		enemies, err := g.labelLayer(layer)
		require.NoError(t, err)
		assert.Empty(t, enemies, "radius %v below the zero-enemy radius has enemies", r)
	}
}

func TestExploreExhaustsExpansion(t *testing.T) {
	cfg := testConfig(3)
	cfg.NInLayer = 20
	counting := &predict.Counting{Classifier: constant(0)}
	g := mustNew(t, []float64{1, 2, 3}, counting, cfg)
	counting.Reset()

	exp, err := g.Explore()
	require.NoError(t, err)
	assert.False(t, exp.Found)
	assert.Empty(t, exp.Enemies)
	assert.Equal(t, 1, exp.State.Attempts)
	assert.Equal(t, DefaultMaxAttempts, exp.State.Iterations)
	assert.Equal(t, 1+DefaultMaxAttempts, counting.Calls)
	assert.Equal(t, 20*(1+DefaultMaxAttempts), counting.Rows)
}

func TestExploreExhaustsContraction(t *testing.T) {
	instance := []float64{0.3, -0.2}
	// every point except the instance itself is an enemy
	clf := rowRule(func(x []float64) int {
		if x[0] == instance[0] && x[1] == instance[1] {
			return 0
		}
		return 1
	})
	cfg := testConfig(3)
	cfg.NInLayer = 10
	cfg.DecreaseFactor = 1.1
	g := mustNew(t, instance, clf, cfg)

	exp, err := g.Explore()
	require.NoError(t, err)
	assert.False(t, exp.Found)
	assert.Equal(t, DefaultMaxAttempts, exp.State.Attempts)
	assert.Zero(t, exp.State.Iterations)
	assert.Positive(t, exp.State.Enemies)
}

func TestStepPolicies(t *testing.T) {
	run := func(policy StepPolicy) SearchState {
		cfg := testConfig(8)
		cfg.NInLayer = 5
		cfg.StepPolicy = policy
		g := mustNew(t, []float64{0, 0}, constant(0), cfg)
		exp, err := g.Explore()
		require.NoError(t, err)
		require.False(t, exp.Found)
		return exp.State
	}

	fixed := run(StepFixed)
	assert.InDelta(t, 0.01, fixed.Step, 1e-15)
	assert.InDelta(t, 0.1+100*0.01, fixed.Radius, 1e-9)

	// radius grows by a factor (1 + 1/DecreaseFactor) per iteration
	proportional := run(StepProportional)
	assert.Greater(t, proportional.Radius, 1000.0)
	assert.InDelta(t, proportional.Radius/11, proportional.Step, proportional.Step*0.2)
}

func TestLayerShapes(t *testing.T) {
	for _, shape := range []LayerShape{Ring, Sphere, Ball} {
		t.Run(string(shape), func(t *testing.T) {
			cfg := testConfig(21)
			cfg.LayerShape = shape
			g := mustNew(t, []float64{0, 0}, sumAbove(1), cfg)
			exp, err := g.Explore()
			require.NoError(t, err)
			require.True(t, exp.Found)

			for _, e := range exp.Enemies {
				r := floats.Norm(e, 2)
				switch shape {
				case Ring:
					assert.GreaterOrEqual(t, r, exp.Inner-1e-9)
					assert.LessOrEqual(t, r, exp.Outer+1e-9)
				case Sphere:
					assert.InDelta(t, exp.Outer, r, 1e-9)
				case Ball:
					assert.LessOrEqual(t, r, exp.Outer+1e-9)
				}
				assert.Greater(t, e[0]+e[1], 1.0)
			}
		})
	}
}

func TestLabelLayerAppliesCaps(t *testing.T) {
	layer := mat.NewDense(3, 2, []float64{
		-5, 0.5,
		0.2, 9,
		0.1, 0.1,
	})
	caps := &Caps{Min: -1, Max: 1}
	enemies, err := labelLayer(layer, sumAbove(0.5), caps, AnyOtherClass(0))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.2, 1}}, enemies)
	assert.Equal(t, -1.0, layer.At(0, 0))

	none, err := labelLayer(mat.NewDense(1, 2, nil), sumAbove(0.5), nil, AnyOtherClass(0))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExplorePropagatesPredictionErrors(t *testing.T) {
	boom := errors.New("model offline")
	clf := predict.ClassifierFunc(func(layer *mat.Dense) ([]int, error) {
		if rows, _ := layer.Dims(); rows > 1 {
			return nil, boom
		}
		return []int{0}, nil
	})
	g := mustNew(t, []float64{0, 0}, clf, testConfig(1))

	_, err := g.Explore()
	assert.ErrorIs(t, err, boom)
	_, err = g.FindCounterfactual(3)
	assert.ErrorIs(t, err, boom)
}
