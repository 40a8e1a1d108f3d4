package predict

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"gonum.org/v1/gonum/mat"
)

// TensorFunc is a model that consumes a [N, D] float32 gomlx tensor and
// returns either labels ([N] integers or integral floats) or per-class
// scores ([N, C] floats, reduced with argmax).
type TensorFunc func(input *tensors.Tensor) (*tensors.Tensor, error)

// Tensor adapts a gomlx-backed model into a Classifier.
func Tensor(fn TensorFunc) Classifier {
	return ClassifierFunc(func(layer *mat.Dense) ([]int, error) {
		if fn == nil {
			return nil, ErrNilPredictor
		}
		out, err := fn(LayerTensor(layer))
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("%w: model returned nil tensor", ErrLabelCount)
		}
		return tensorLabels(out.Value())
	})
}

// LayerTensor converts a layer into a [N, D] float32 gomlx tensor.
func LayerTensor(layer *mat.Dense) *tensors.Tensor {
	rows, cols := layer.Dims()
	data := make([][]float32, rows)
	for i := range rows {
		row := make([]float32, cols)
		for j, v := range layer.RawRowView(i) {
			row[j] = float32(v)
		}
		data[i] = row
	}
	return tensors.FromAnyValue(data)
}

// tensorLabels converts the Go value held by an output tensor into labels.
func tensorLabels(v any) ([]int, error) {
	switch vals := v.(type) {
	case []int:
		return append([]int(nil), vals...), nil
	case []int32:
		return convertInts(vals), nil
	case []int64:
		return convertInts(vals), nil
	case []float32:
		return integralLabels(vals)
	case []float64:
		return integralLabels(vals)
	case [][]float32:
		return argmaxRows(vals), nil
	case [][]float64:
		return argmaxRows(vals), nil
	default:
		return nil, fmt.Errorf("predict: unsupported tensor output %T", v)
	}
}

func convertInts[T int32 | int64](vals []T) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

func integralLabels[T float32 | float64](vals []T) ([]int, error) {
	f := make([]float64, len(vals))
	for i, v := range vals {
		f[i] = float64(v)
	}
	return integral(f)
}

func argmaxRows[T float32 | float64](rows [][]T) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		f := make([]float64, len(row))
		for j, v := range row {
			f[j] = float64(v)
		}
		out[i] = argmax(f)
	}
	return out
}
