// Package predict defines the black-box prediction capabilities the
// counterfactual search consumes, plus adapters between them.
//
// Two capabilities exist and callers supply the one matching their mode:
// a Classifier returns one integer label per row, a Probabilistic returns one
// class-probability vector per row. Nothing here infers which one a function
// is at runtime.
package predict

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNonIntegralLabel is returned when a label function produces a value
	// that is not an integer.
	ErrNonIntegralLabel = errors.New("predict: prediction function must return integral class labels")

	// ErrLabelCount is returned when a classifier returns a different number of
	// labels than the number of rows it was given.
	ErrLabelCount = errors.New("predict: label count does not match row count")

	// ErrProbabilityRange is returned when a probability falls outside [0,1].
	ErrProbabilityRange = errors.New("predict: probabilities must lie in [0,1]")

	// ErrNilPredictor is returned when an adapter is built around nothing.
	ErrNilPredictor = errors.New("predict: predictor is nil")
)

// Classifier labels every row of a layer with a class.
type Classifier interface {
	Predict(layer *mat.Dense) ([]int, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(layer *mat.Dense) ([]int, error)

// Predict calls f(layer).
func (f ClassifierFunc) Predict(layer *mat.Dense) ([]int, error) {
	return f(layer)
}

// Probabilistic returns an N×C matrix of class probabilities for an N-row layer.
type Probabilistic interface {
	PredictProba(layer *mat.Dense) (*mat.Dense, error)
}

// ProbabilisticFunc adapts a plain function to the Probabilistic interface.
type ProbabilisticFunc func(layer *mat.Dense) (*mat.Dense, error)

// PredictProba calls f(layer).
func (f ProbabilisticFunc) PredictProba(layer *mat.Dense) (*mat.Dense, error) {
	return f(layer)
}

// Labels checks that a classifier answered with exactly one label per row and
// returns them. It is the way the search calls every Classifier.
func Labels(c Classifier, layer *mat.Dense) ([]int, error) {
	if c == nil {
		return nil, ErrNilPredictor
	}
	labels, err := c.Predict(layer)
	if err != nil {
		return nil, err
	}
	rows, _ := layer.Dims()
	if len(labels) != rows {
		return nil, fmt.Errorf("%w: %d labels for %d rows", ErrLabelCount, len(labels), rows)
	}
	return labels, nil
}

// PredictOne labels a single instance.
func PredictOne(c Classifier, x []float64) (int, error) {
	labels, err := Labels(c, RowMatrix(x))
	if err != nil {
		return 0, err
	}
	return labels[0], nil
}

// ProbaOne returns the class-probability vector of a single instance.
func ProbaOne(p Probabilistic, x []float64) ([]float64, error) {
	if p == nil {
		return nil, ErrNilPredictor
	}
	probs, err := p.PredictProba(RowMatrix(x))
	if err != nil {
		return nil, err
	}
	if err := CheckProbabilities(probs, 1); err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, probs), nil
}

// RowMatrix wraps a copy of x as a 1×D matrix.
func RowMatrix(x []float64) *mat.Dense {
	return mat.NewDense(1, len(x), append([]float64(nil), x...))
}

// CheckProbabilities verifies probs has rows rows and every entry in [0,1].
func CheckProbabilities(probs *mat.Dense, rows int) error {
	if probs == nil {
		return fmt.Errorf("%w: nil probability matrix", ErrLabelCount)
	}
	r, c := probs.Dims()
	if r != rows {
		return fmt.Errorf("%w: %d probability rows for %d rows", ErrLabelCount, r, rows)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := probs.At(i, j)
			if math.IsNaN(p) || p < 0 || p > 1 {
				return fmt.Errorf("%w: row %d class %d has %v", ErrProbabilityRange, i, j, p)
			}
		}
	}
	return nil
}

// ArgMax turns a Probabilistic into a Classifier by picking the most likely
// class of every row. Ties go to the lowest class index.
func ArgMax(p Probabilistic) Classifier {
	return ClassifierFunc(func(layer *mat.Dense) ([]int, error) {
		if p == nil {
			return nil, ErrNilPredictor
		}
		probs, err := p.PredictProba(layer)
		if err != nil {
			return nil, err
		}
		rows, _ := layer.Dims()
		if err := CheckProbabilities(probs, rows); err != nil {
			return nil, err
		}
		labels := make([]int, rows)
		for i := range labels {
			labels[i] = argmax(probs.RawRowView(i))
		}
		return labels, nil
	})
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

// LabelFunc is a prediction function whose labels arrive as floats, as many
// model runtimes hand them back.
type LabelFunc func(layer *mat.Dense) ([]float64, error)

// Integral adapts a LabelFunc into a Classifier that rejects any label that
// is not a whole number with ErrNonIntegralLabel.
func Integral(f LabelFunc) Classifier {
	return ClassifierFunc(func(layer *mat.Dense) ([]int, error) {
		if f == nil {
			return nil, ErrNilPredictor
		}
		raw, err := f(layer)
		if err != nil {
			return nil, err
		}
		return integral(raw)
	})
}

func integral(raw []float64) ([]int, error) {
	labels := make([]int, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: row %d got %v", ErrNonIntegralLabel, i, v)
		}
		labels[i] = int(v)
	}
	return labels, nil
}
