// Package datasets lazily loads tabular CSV data as feature vectors with an
// optional integer class label.
//
// Datasets store file paths and only read CSV rows when an example or batch
// is requested, so large files are never held in memory.
//
// Layout and intended usage:
//
// InstanceDataset
//   - Stores paths to CSV files matching a glob pattern
//   - Feature columns are selected by name, or are every column except the
//     label column
//   - Inputs per example: the feature columns in order (float64)
//   - Label per example: the label column parsed as an int, or -1 when the
//     dataset has no label column
package datasets

import (
	"errors"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

var (
	ErrNoFiles       = errors.New("no CSV files found")
	ErrMissingColumn = errors.New("column not found in CSV header")
	ErrIndexRange    = errors.New("index out of range")
	ErrParse         = errors.New("failed to parse value")
	ErrNoFeatures    = errors.New("dataset has no feature columns")
)

// Dataset is what training loops and the explainer CLI read from.
type Dataset interface {
	Len() int
	Example(i int) (features []float64, label int, err error)
	Batch(indices []int) (features [][]float64, labels []int, err error)
	Shuffle(seed int64)

	// Yield and Restart follow gomlx's train.Dataset iteration protocol.
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Restart() error
}
