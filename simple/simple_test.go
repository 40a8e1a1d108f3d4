package simple

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/datasets"
	"github.com/Noofbiz/growingspheres/predict"
)

var (
	_ predict.Classifier    = (*Model)(nil)
	_ predict.Probabilistic = (*Model)(nil)
	_ predict.Classifier    = (*Linear)(nil)
)

// mockDataset implements the minimal Dataset interface required by the trainer.
type mockDataset struct {
	inputs [][]float64
	labels []int
}

func (m *mockDataset) Len() int { return len(m.inputs) }

func (m *mockDataset) Batch(indices []int) ([][]float64, []int, error) {
	in := make([][]float64, len(indices))
	la := make([]int, len(indices))
	for i, idx := range indices {
		in[i] = m.inputs[idx]
		la[i] = m.labels[idx]
	}
	return in, la, nil
}

// grid builds a separable two-class problem on [0,1]^2: label 1 when x+y > 1.
func grid() *mockDataset {
	ds := &mockDataset{}
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			x, y := float64(i)/11, float64(j)/11
			if math.Abs(x+y-1) < 0.05 {
				continue
			}
			label := 0
			if x+y > 1 {
				label = 1
			}
			ds.inputs = append(ds.inputs, []float64{x, y})
			ds.labels = append(ds.labels, label)
		}
	}
	return ds
}

// TestModelTrainWithMockDataset verifies the trainer reduces cross-entropy
// and learns a linearly separable boundary.
func TestModelTrainWithMockDataset(t *testing.T) {
	ds := grid()
	model, err := NewModel(Config{
		InputDim:     2,
		HiddenSizes:  []int{16},
		LearningRate: 0.5,
		Epochs:       200,
		BatchSize:    16,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}

	lossBefore, err := model.Loss(ds)
	if err != nil {
		t.Fatalf("Loss(before) error: %v", err)
	}
	if err := model.TrainWithDataset(ds); err != nil {
		t.Fatalf("TrainWithDataset error: %v", err)
	}
	lossAfter, err := model.Loss(ds)
	if err != nil {
		t.Fatalf("Loss(after) error: %v", err)
	}
	t.Logf("loss before=%.6f after=%.6f", lossBefore, lossAfter)
	if !(lossAfter < lossBefore) {
		t.Fatalf("expected loss to decrease after training: before=%.6f after=%.6f", lossBefore, lossAfter)
	}

	acc, err := model.Accuracy(ds)
	if err != nil {
		t.Fatalf("Accuracy error: %v", err)
	}
	if acc < 0.9 {
		t.Fatalf("expected accuracy >= 0.9, got %.3f", acc)
	}

	probs, err := model.PredictProba(mat.NewDense(2, 2, []float64{0, 0, 1, 1}))
	if err != nil {
		t.Fatalf("PredictProba error: %v", err)
	}
	for i := 0; i < 2; i++ {
		row := probs.RawRowView(i)
		if math.Abs(row[0]+row[1]-1) > 1e-9 {
			t.Fatalf("row %d does not sum to 1: %v", i, row)
		}
	}
	labels, err := model.Predict(mat.NewDense(2, 2, []float64{0, 0, 1, 1}))
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if labels[0] != 0 || labels[1] != 1 {
		t.Fatalf("unexpected labels %v", labels)
	}
}

func TestModelDeterministicInit(t *testing.T) {
	a, _ := NewModel(Config{InputDim: 3, Seed: 9})
	b, _ := NewModel(Config{InputDim: 3, Seed: 9})
	x := mat.NewDense(1, 3, []float64{0.1, -0.4, 2})
	pa, _ := a.PredictProba(x)
	pb, _ := b.PredictProba(x)
	if !mat.Equal(pa, pb) {
		t.Fatalf("same seed produced different models: %v vs %v", pa, pb)
	}
}

func TestModelErrors(t *testing.T) {
	if _, err := NewModel(Config{}); !errors.Is(err, ErrInputDim) {
		t.Fatalf("expected ErrInputDim, got %v", err)
	}
	if _, err := NewModel(Config{InputDim: 2, NumClasses: 1}); !errors.Is(err, ErrNumClasses) {
		t.Fatalf("expected ErrNumClasses, got %v", err)
	}

	model, err := NewModel(Config{InputDim: 2, Seed: 1})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if err := model.TrainWithDataset(nil); !errors.Is(err, ErrNilDataset) {
		t.Fatalf("expected ErrNilDataset, got %v", err)
	}
	if err := model.TrainWithDataset(&mockDataset{}); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	bad := &mockDataset{inputs: [][]float64{{0, 0}}, labels: []int{5}}
	if err := model.TrainWithDataset(bad); !errors.Is(err, ErrLabelRange) {
		t.Fatalf("expected ErrLabelRange, got %v", err)
	}
	if _, err := model.Predict(mat.NewDense(1, 3, nil)); !errors.Is(err, ErrInputDim) {
		t.Fatalf("expected ErrInputDim, got %v", err)
	}
}

func TestLinear(t *testing.T) {
	binary, err := NewLinear([][]float64{{1, 1}}, []float64{-1})
	if err != nil {
		t.Fatalf("NewLinear error: %v", err)
	}
	labels, err := binary.Predict(mat.NewDense(3, 2, []float64{0, 0, 0.6, 0.6, 1, 0}))
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if fmt.Sprint(labels) != "[0 1 0]" {
		t.Fatalf("unexpected binary labels %v", labels)
	}

	multi, err := NewLinear([][]float64{{1, 0}, {0, 1}, {-1, -1}}, nil)
	if err != nil {
		t.Fatalf("NewLinear error: %v", err)
	}
	labels, err = multi.Predict(mat.NewDense(3, 2, []float64{2, 1, 0, 3, -1, -1}))
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if fmt.Sprint(labels) != "[0 1 2]" {
		t.Fatalf("unexpected multi-class labels %v", labels)
	}

	if _, err := NewLinear([][]float64{{1, 1}}, []float64{0, 0}); !errors.Is(err, ErrLinearShape) {
		t.Fatalf("expected ErrLinearShape, got %v", err)
	}
	if _, err := NewLinear([][]float64{{1, 1}, {1}}, nil); !errors.Is(err, ErrInputDim) {
		t.Fatalf("expected ErrInputDim for ragged weights, got %v", err)
	}
	if _, err := binary.Predict(mat.NewDense(1, 3, nil)); !errors.Is(err, ErrInputDim) {
		t.Fatalf("expected ErrInputDim, got %v", err)
	}
}

// TestModelTrainWithInstanceDataset trains on CSV fixtures through the
// datasets package to exercise the integration.
func TestModelTrainWithInstanceDataset(t *testing.T) {
	tmp := t.TempDir()
	var b strings.Builder
	b.WriteString("a,b,label\n")
	for _, ex := range grid().inputs {
		label := 0
		if ex[0]+ex[1] > 1 {
			label = 1
		}
		fmt.Fprintf(&b, "%g,%g,%d\n", ex[0], ex[1], label)
	}
	if err := os.WriteFile(filepath.Join(tmp, "train.csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ds, err := datasets.NewInstanceDataset(filepath.Join(tmp, "*.csv"), "label", nil)
	if err != nil {
		t.Fatalf("NewInstanceDataset error: %v", err)
	}
	model, err := NewModel(Config{InputDim: ds.Dim(), Epochs: 5, Seed: 123})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if err := model.TrainWithDataset(ds); err != nil {
		t.Fatalf("TrainWithDataset (csv) error: %v", err)
	}

	x, _, err := ds.Matrix([]int{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("Matrix error: %v", err)
	}
	preds, err := model.PredictProba(x)
	if err != nil {
		t.Fatalf("PredictProba error: %v", err)
	}
	r, c := preds.Dims()
	if r != 4 || c != 2 {
		t.Fatalf("unexpected prediction shape %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := preds.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite prediction at %d,%d: %v", i, j, v)
			}
		}
	}
}
