package growingspheres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/predict"
)

// rowRule labels a layer row by row.
func rowRule(rule func(x []float64) int) predict.ClassifierFunc {
	return func(layer *mat.Dense) ([]int, error) {
		rows, _ := layer.Dims()
		out := make([]int, rows)
		for i := range out {
			out[i] = rule(layer.RawRowView(i))
		}
		return out, nil
	}
}

// sumAbove is the linearly separable classifier x0 + x1 + ... > threshold.
func sumAbove(threshold float64) predict.ClassifierFunc {
	return rowRule(func(x []float64) int {
		sum := 0.0
		for _, v := range x {
			sum += v
		}
		if sum > threshold {
			return 1
		}
		return 0
	})
}

func constant(label int) predict.ClassifierFunc {
	return rowRule(func([]float64) int { return label })
}

func testConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return cfg
}

func mustNew(t *testing.T, instance []float64, clf predict.Classifier, cfg Config) *GrowingSpheres {
	t.Helper()
	g, err := New(instance, clf, cfg)
	require.NoError(t, err)
	return g
}

// changed returns the indices where v differs from instance.
func changed(v, instance []float64) []int {
	var out []int
	for i := range v {
		if v[i] != instance[i] {
			out = append(out, i)
		}
	}
	return out
}
