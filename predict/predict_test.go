package predict

import (
	"errors"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// sumAbove labels a row 1 when its coordinates sum above threshold.
func sumAbove(threshold float64) ClassifierFunc {
	return func(layer *mat.Dense) ([]int, error) {
		rows, _ := layer.Dims()
		out := make([]int, rows)
		for i := range out {
			sum := 0.0
			for _, v := range layer.RawRowView(i) {
				sum += v
			}
			if sum > threshold {
				out[i] = 1
			}
		}
		return out, nil
	}
}

func TestLabelsChecksRowCount(t *testing.T) {
	short := ClassifierFunc(func(*mat.Dense) ([]int, error) { return []int{0}, nil })
	layer := mat.NewDense(3, 2, nil)

	_, err := Labels(short, layer)
	assert.ErrorIs(t, err, ErrLabelCount)

	labels, err := Labels(sumAbove(0.5), mat.NewDense(2, 2, []float64{0, 0, 1, 1}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, labels)

	_, err = Labels(nil, layer)
	assert.ErrorIs(t, err, ErrNilPredictor)
}

func TestLabelsPropagatesErrors(t *testing.T) {
	boom := errors.New("model offline")
	failing := ClassifierFunc(func(*mat.Dense) ([]int, error) { return nil, boom })
	_, err := PredictOne(failing, []float64{1})
	assert.ErrorIs(t, err, boom)
}

func TestPredictOneDoesNotAlias(t *testing.T) {
	x := []float64{0.2, 0.9}
	mutating := ClassifierFunc(func(layer *mat.Dense) ([]int, error) {
		layer.Set(0, 0, 100)
		return []int{7}, nil
	})
	label, err := PredictOne(mutating, x)
	require.NoError(t, err)
	assert.Equal(t, 7, label)
	assert.Equal(t, []float64{0.2, 0.9}, x)
}

func TestIntegralRejectsFractionalLabels(t *testing.T) {
	good := Integral(func(*mat.Dense) ([]float64, error) { return []float64{0, 2, -1}, nil })
	labels, err := good.Predict(mat.NewDense(3, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, -1}, labels)

	bad := Integral(func(*mat.Dense) ([]float64, error) { return []float64{0, 0.5}, nil })
	_, err = bad.Predict(mat.NewDense(2, 1, nil))
	assert.ErrorIs(t, err, ErrNonIntegralLabel)
}

func TestArgMax(t *testing.T) {
	probs := ProbabilisticFunc(func(layer *mat.Dense) (*mat.Dense, error) {
		return mat.NewDense(3, 3, []float64{
			0.1, 0.7, 0.2,
			0.5, 0.25, 0.25,
			0.3, 0.3, 0.4,
		}), nil
	})
	labels, err := ArgMax(probs).Predict(mat.NewDense(3, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, labels)

	outOfRange := ProbabilisticFunc(func(layer *mat.Dense) (*mat.Dense, error) {
		return mat.NewDense(1, 2, []float64{1.2, -0.2}), nil
	})
	_, err = ArgMax(outOfRange).Predict(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrProbabilityRange)

	_, err = ProbaOne(outOfRange, []float64{0, 0})
	assert.ErrorIs(t, err, ErrProbabilityRange)
}

func TestCounting(t *testing.T) {
	c := &Counting{Classifier: sumAbove(0)}
	_, err := c.Predict(mat.NewDense(4, 2, nil))
	require.NoError(t, err)
	_, err = PredictOne(c, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Calls)
	assert.Equal(t, 5, c.Rows)

	c.Reset()
	assert.Zero(t, c.Calls)
	assert.Zero(t, c.Rows)
}

func TestTensorAdapter(t *testing.T) {
	model := func(input *tensors.Tensor) (*tensors.Tensor, error) {
		rows, ok := input.Value().([][]float32)
		if !ok {
			return nil, errors.New("unexpected input layout")
		}
		scores := make([][]float32, len(rows))
		for i, row := range rows {
			// two-class scores: class 1 wins when the first feature is positive
			scores[i] = []float32{0, row[0]}
		}
		return tensors.FromAnyValue(scores), nil
	}
	clf := Tensor(model)
	labels, err := clf.Predict(mat.NewDense(3, 2, []float64{-1, 0, 2, 0, 0.5, 3}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, labels)

	direct := Tensor(func(*tensors.Tensor) (*tensors.Tensor, error) {
		return tensors.FromAnyValue([]int32{4, 5}), nil
	})
	labels, err = direct.Predict(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, labels)

	fractional := Tensor(func(*tensors.Tensor) (*tensors.Tensor, error) {
		return tensors.FromAnyValue([]float32{0.25}), nil
	})
	_, err = fractional.Predict(mat.NewDense(1, 1, nil))
	assert.ErrorIs(t, err, ErrNonIntegralLabel)
}
