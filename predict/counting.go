package predict

import "gonum.org/v1/gonum/mat"

// Counting wraps a Classifier and records how many batches and rows it was
// asked to label. It is not safe for concurrent use.
type Counting struct {
	Classifier Classifier

	Calls int
	Rows  int
}

// Predict forwards to the wrapped classifier and updates the counters.
func (c *Counting) Predict(layer *mat.Dense) ([]int, error) {
	if c == nil || c.Classifier == nil {
		return nil, ErrNilPredictor
	}
	rows, _ := layer.Dims()
	c.Calls++
	c.Rows += rows
	return c.Classifier.Predict(layer)
}

// Reset zeroes the counters.
func (c *Counting) Reset() {
	c.Calls = 0
	c.Rows = 0
}
