// Package simple holds small pure-Go classifiers used as black boxes to
// explain: a softmax MLP trained with mini-batch SGD and a linear scorer.
// Both label rows of a *mat.Dense, one row per point.
package simple

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNilDataset   = errors.New("dataset is nil")
	ErrEmptyDataset = errors.New("dataset has no examples")
	ErrInputDim     = errors.New("input has incorrect dimension")
	ErrLabelRange   = errors.New("label outside [0, NumClasses)")
	ErrNumClasses   = errors.New("NumClasses must be at least 2")
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 32 will be used.
	HiddenSizes []int

	// InputDim is the dimensionality of the feature vector. Required.
	InputDim int

	// NumClasses is the number of output classes (default 2).
	NumClasses int

	// LearningRate used by SGD (default 0.05).
	LearningRate float64

	// L2 is the weight decay coefficient. Zero disables it.
	L2 float64

	// Epochs to train for (default 20).
	Epochs int

	// BatchSize for mini-batch updates (default 16).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64
}

// Dataset is the minimal interface this package requires from a labeled
// dataset. datasets.InstanceDataset satisfies it.
type Dataset interface {
	Len() int
	// Batch returns feature rows and integer class labels for the provided
	// global indices.
	Batch(indices []int) ([][]float64, []int, error)
}

// Model is a small configurable MLP classifier: ReLU hidden layers and a
// softmax output trained on cross-entropy.
type Model struct {
	// Config used for training / initialization, defaults filled in.
	Config Config

	// layerSizes includes input size, hidden sizes, then NumClasses.
	layerSizes []int

	// weights[l] has shape out×in for layer l -> l+1.
	weights []*mat.Dense

	// biases[l] has length out.
	biases [][]float64

	rng *rand.Rand
}

// NewModel creates a new Model with Glorot-initialized weights, ready to train.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInputDim, cfg.InputDim)
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{32}
	}
	if cfg.NumClasses == 0 {
		cfg.NumClasses = 2
	}
	if cfg.NumClasses < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNumClasses, cfg.NumClasses)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.05
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 20
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 16
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewPCG(uint64(cfg.Seed), 0)),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.NumClasses)
	m.layerSizes = sizes

	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(in+out))
		data := make([]float64, out*in)
		for i := range data {
			data[i] = (m.rng.Float64()*2 - 1) * limit
		}
		m.weights = append(m.weights, mat.NewDense(out, in, data))
		m.biases = append(m.biases, make([]float64, out))
	}
	return m, nil
}

// forward returns the activations of every layer for a batch of rows:
// acts[0] is the input and the last element holds class probabilities.
func (m *Model) forward(x mat.Matrix) ([]*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != m.layerSizes[0] {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputDim, cols, m.layerSizes[0])
	}
	acts := make([]*mat.Dense, len(m.weights)+1)
	acts[0] = mat.DenseCopyOf(x)

	last := len(m.weights) - 1
	for l, w := range m.weights {
		out, _ := w.Dims()
		z := mat.NewDense(rows, out, nil)
		z.Mul(acts[l], w.T())
		b := m.biases[l]
		z.Apply(func(_, j int, v float64) float64 {
			v += b[j]
			if l < last && v < 0 {
				return 0
			}
			return v
		}, z)
		if l == last {
			for i := 0; i < rows; i++ {
				softmax(z.RawRowView(i))
			}
		}
		acts[l+1] = z
	}
	return acts, nil
}

// softmax normalizes logits in place.
func softmax(logits []float64) {
	floats.AddConst(-floats.Max(logits), logits)
	for i, v := range logits {
		logits[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(logits), logits)
}

// PredictProba returns one row of class probabilities per input row.
func (m *Model) PredictProba(layer *mat.Dense) (*mat.Dense, error) {
	acts, err := m.forward(layer)
	if err != nil {
		return nil, err
	}
	return acts[len(acts)-1], nil
}

// Predict returns the most probable class of every row.
func (m *Model) Predict(layer *mat.Dense) ([]int, error) {
	probs, err := m.PredictProba(layer)
	if err != nil {
		return nil, err
	}
	rows, _ := probs.Dims()
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return labels, nil
}

// TrainWithDataset runs mini-batch SGD with cross-entropy loss over
// Config.Epochs shuffled passes of ds.
func (m *Model) TrainWithDataset(ds Dataset) error {
	if ds == nil {
		return ErrNilDataset
	}
	n := ds.Len()
	if n == 0 {
		return ErrEmptyDataset
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for bstart := 0; bstart < n; bstart += m.Config.BatchSize {
			bend := min(bstart+m.Config.BatchSize, n)
			inputs, labels, err := ds.Batch(indices[bstart:bend])
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				continue
			}
			if err := m.step(inputs, labels); err != nil {
				return err
			}
		}
	}
	return nil
}

// step applies one averaged SGD update for a mini-batch.
func (m *Model) step(inputs [][]float64, labels []int) error {
	x, err := denseRows(inputs, m.layerSizes[0])
	if err != nil {
		return err
	}
	acts, err := m.forward(x)
	if err != nil {
		return err
	}

	// dLoss/dLogits = p - onehot(y), averaged over the batch
	bn := len(inputs)
	delta := mat.DenseCopyOf(acts[len(acts)-1])
	for i, y := range labels {
		if y < 0 || y >= m.Config.NumClasses {
			return fmt.Errorf("%w: got %d", ErrLabelRange, y)
		}
		delta.Set(i, y, delta.At(i, y)-1)
	}
	delta.Scale(1/float64(bn), delta)

	lr := m.Config.LearningRate
	for l := len(m.weights) - 1; l >= 0; l-- {
		w := m.weights[l]
		out, in := w.Dims()

		var gradW mat.Dense
		gradW.Mul(delta.T(), acts[l])
		if m.Config.L2 > 0 {
			gradW.Add(&gradW, scaled(m.Config.L2, w))
		}

		// propagate before updating w
		var prev *mat.Dense
		if l > 0 {
			prev = mat.NewDense(bn, in, nil)
			prev.Mul(delta, w)
			hidden := acts[l]
			prev.Apply(func(i, j int, v float64) float64 {
				if hidden.At(i, j) <= 0 {
					return 0
				}
				return v
			}, prev)
		}

		for j := 0; j < out; j++ {
			m.biases[l][j] -= lr * floats.Sum(mat.Col(nil, j, delta))
		}
		gradW.Scale(lr, &gradW)
		w.Sub(w, &gradW)
		delta = prev
	}
	return nil
}

func scaled(f float64, a mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, a)
	return &out
}

// Loss returns the mean cross-entropy of the model over every example of ds.
func (m *Model) Loss(ds Dataset) (float64, error) {
	probs, labels, err := m.evaluate(ds)
	if err != nil {
		return 0, err
	}
	loss := 0.0
	for i, y := range labels {
		loss -= math.Log(math.Max(probs.At(i, y), 1e-12))
	}
	return loss / float64(len(labels)), nil
}

// Accuracy returns the fraction of examples of ds predicted correctly.
func (m *Model) Accuracy(ds Dataset) (float64, error) {
	probs, labels, err := m.evaluate(ds)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, y := range labels {
		if floats.MaxIdx(probs.RawRowView(i)) == y {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

func (m *Model) evaluate(ds Dataset) (*mat.Dense, []int, error) {
	if ds == nil {
		return nil, nil, ErrNilDataset
	}
	n := ds.Len()
	if n == 0 {
		return nil, nil, ErrEmptyDataset
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	inputs, labels, err := ds.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	for _, y := range labels {
		if y < 0 || y >= m.Config.NumClasses {
			return nil, nil, fmt.Errorf("%w: got %d", ErrLabelRange, y)
		}
	}
	x, err := denseRows(inputs, m.layerSizes[0])
	if err != nil {
		return nil, nil, err
	}
	probs, err := m.PredictProba(x)
	return probs, labels, err
}

// denseRows copies equally sized rows into a new matrix.
func denseRows(rows [][]float64, dim int) (*mat.Dense, error) {
	x := mat.NewDense(len(rows), dim, nil)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrInputDim, i, len(r), dim)
		}
		x.SetRow(i, r)
	}
	return x, nil
}
