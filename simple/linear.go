package simple

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrLinearShape = errors.New("linear weights and bias disagree")

// Linear scores rows with Weights·x + Bias. With a single weight row it is a
// binary threshold model (label 1 when the score is positive); otherwise
// the label is the highest scoring class.
type Linear struct {
	Weights *mat.Dense
	Bias    []float64
}

// NewLinear builds a Linear model from C weight rows of equal length and C
// biases. A nil bias means zeros.
func NewLinear(weights [][]float64, bias []float64) (*Linear, error) {
	if len(weights) == 0 || len(weights[0]) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrLinearShape)
	}
	if bias == nil {
		bias = make([]float64, len(weights))
	}
	if len(bias) != len(weights) {
		return nil, fmt.Errorf("%w: %d weight rows, %d biases", ErrLinearShape, len(weights), len(bias))
	}
	w, err := denseRows(weights, len(weights[0]))
	if err != nil {
		return nil, err
	}
	return &Linear{Weights: w, Bias: append([]float64(nil), bias...)}, nil
}

// Scores returns the rows×C score matrix.
func (l *Linear) Scores(layer *mat.Dense) (*mat.Dense, error) {
	c, d := l.Weights.Dims()
	rows, cols := layer.Dims()
	if cols != d {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputDim, cols, d)
	}
	scores := mat.NewDense(rows, c, nil)
	scores.Mul(layer, l.Weights.T())
	scores.Apply(func(_, j int, v float64) float64 { return v + l.Bias[j] }, scores)
	return scores, nil
}

// Predict labels every row of layer.
func (l *Linear) Predict(layer *mat.Dense) ([]int, error) {
	scores, err := l.Scores(layer)
	if err != nil {
		return nil, err
	}
	rows, c := scores.Dims()
	labels := make([]int, rows)
	for i := range labels {
		row := scores.RawRowView(i)
		if c == 1 {
			if row[0] > 0 {
				labels[i] = 1
			}
			continue
		}
		labels[i] = floats.MaxIdx(row)
	}
	return labels, nil
}
