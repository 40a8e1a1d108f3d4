package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"gonum.org/v1/gonum/mat"
)

// InstanceDataset lazily loads CSV files matching a pattern. Every file must
// share the header of the first one (column order may differ).
type InstanceDataset struct {
	// Pattern used to find CSV files (e.g., "data/train/*.csv")
	Pattern string

	// BatchSize for yielding batches
	BatchSize int

	// LabelColumn is the label column name, empty when unlabeled.
	LabelColumn string

	csvPaths []string

	// per-file header lookups, lower-cased names
	colIndex []map[string]int

	featureNames []string

	rand *rand.Rand

	// order is the iteration order used by Yield, cursor its position.
	order  []int
	cursor int

	// cumCounts[i] is the number of rows before file i.
	cumCounts []int

	totalExamples int
}

// NewInstanceDataset creates a dataset over the CSV files matching pattern.
// features names the feature columns in order; when empty every column but
// labelColumn is a feature. labelColumn may be empty for unlabeled data.
func NewInstanceDataset(pattern, labelColumn string, features []string) (*InstanceDataset, error) {
	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		return nil, fmt.Errorf("%w matching pattern: %s", ErrNoFiles, pattern)
	}
	sort.Strings(csvPaths)

	ds := &InstanceDataset{
		Pattern:     pattern,
		BatchSize:   32,
		LabelColumn: normalize(labelColumn),
		csvPaths:    csvPaths,
		rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}

	if err := ds.initializeColumns(features); err != nil {
		return nil, err
	}
	if err := ds.buildIndex(); err != nil {
		return nil, err
	}
	ds.order = make([]int, ds.totalExamples)
	for i := range ds.order {
		ds.order[i] = i
	}
	return ds, nil
}

func normalize(col string) string {
	return strings.TrimSpace(strings.ToLower(col))
}

// initializeColumns reads every header and checks the requested columns.
func (d *InstanceDataset) initializeColumns(features []string) error {
	d.colIndex = make([]map[string]int, len(d.csvPaths))
	var firstHeader []string
	for fi, path := range d.csvPaths {
		header, err := readHeader(path)
		if err != nil {
			return err
		}
		if fi == 0 {
			firstHeader = header
		}
		idx := make(map[string]int, len(header))
		for i, col := range header {
			idx[normalize(col)] = i
		}
		d.colIndex[fi] = idx
	}

	if len(features) == 0 {
		for _, col := range firstHeader {
			if name := normalize(col); name != d.LabelColumn {
				features = append(features, name)
			}
		}
	}
	for _, f := range features {
		d.featureNames = append(d.featureNames, normalize(f))
	}
	if len(d.featureNames) == 0 {
		return ErrNoFeatures
	}

	required := append([]string(nil), d.featureNames...)
	if d.LabelColumn != "" {
		required = append(required, d.LabelColumn)
	}
	for fi, idx := range d.colIndex {
		for _, col := range required {
			if _, ok := idx[col]; !ok {
				return fmt.Errorf("%w: %q in %s", ErrMissingColumn, col, d.csvPaths[fi])
			}
		}
	}
	return nil
}

func readHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

// buildIndex counts rows in all files and builds cumulative counts
func (d *InstanceDataset) buildIndex() error {
	d.cumCounts = make([]int, len(d.csvPaths)+1)
	for i, path := range d.csvPaths {
		count, err := countCSVRows(path)
		if err != nil {
			return fmt.Errorf("failed to count rows in %s: %w", path, err)
		}
		d.cumCounts[i+1] = d.cumCounts[i] + count
	}
	d.totalExamples = d.cumCounts[len(d.csvPaths)]
	return nil
}

// Len returns the total number of examples across all CSV files
func (d *InstanceDataset) Len() int {
	return d.totalExamples
}

// Dim is the number of features per example.
func (d *InstanceDataset) Dim() int {
	return len(d.featureNames)
}

// FeatureNames returns the feature column names in example order.
func (d *InstanceDataset) FeatureNames() []string {
	return append([]string(nil), d.featureNames...)
}

// HasLabels reports whether the dataset has a label column.
func (d *InstanceDataset) HasLabels() bool {
	return d.LabelColumn != ""
}

// Example reads a single example by global index
func (d *InstanceDataset) Example(idx int) ([]float64, int, error) {
	features, labels, err := d.Batch([]int{idx})
	if err != nil {
		return nil, 0, err
	}
	return features[0], labels[0], nil
}

// mapGlobalIndex maps a global index to (file index, row index within file)
func (d *InstanceDataset) mapGlobalIndex(globalIdx int) (fileIdx, localIdx int) {
	fileIdx = sort.SearchInts(d.cumCounts[1:], globalIdx+1)
	return fileIdx, globalIdx - d.cumCounts[fileIdx]
}

type batchSlot struct {
	localIdx int
	batchPos int
}

// Batch reads multiple examples by their indices. Indices may repeat.
func (d *InstanceDataset) Batch(indices []int) ([][]float64, []int, error) {
	features := make([][]float64, len(indices))
	labels := make([]int, len(indices))

	// group indices by file so each file is scanned once
	fileGroups := make(map[int][]batchSlot)
	for batchPos, idx := range indices {
		if idx < 0 || idx >= d.totalExamples {
			return nil, nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, idx, d.totalExamples)
		}
		fileIdx, localIdx := d.mapGlobalIndex(idx)
		fileGroups[fileIdx] = append(fileGroups[fileIdx], batchSlot{localIdx, batchPos})
	}

	for fileIdx, group := range fileGroups {
		if err := d.readBatchFromFile(fileIdx, group, features, labels); err != nil {
			return nil, nil, err
		}
	}
	return features, labels, nil
}

// readBatchFromFile reads the requested rows of one file in a single pass.
func (d *InstanceDataset) readBatchFromFile(fileIdx int, slots []batchSlot, features [][]float64, labels []int) error {
	path := d.csvPaths[fileIdx]
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	wanted := make(map[int][]int)
	last := 0
	for _, s := range slots {
		wanted[s.localIdx] = append(wanted[s.localIdx], s.batchPos)
		last = max(last, s.localIdx)
	}

	cols := d.colIndex[fileIdx]
	for rowIdx := 0; rowIdx <= last; rowIdx++ {
		record, err := reader.Read()
		if err == io.EOF {
			return fmt.Errorf("%s ended before row %d", path, last)
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		positions, ok := wanted[rowIdx]
		if !ok {
			continue
		}

		x := make([]float64, len(d.featureNames))
		for i, feat := range d.featureNames {
			if x[i], err = parseFloat64(record[cols[feat]]); err != nil {
				return fmt.Errorf("%s row %d column %s: %w", path, rowIdx, feat, err)
			}
		}
		label := -1
		if d.LabelColumn != "" {
			if label, err = parseLabel(record[cols[d.LabelColumn]]); err != nil {
				return fmt.Errorf("%s row %d column %s: %w", path, rowIdx, d.LabelColumn, err)
			}
		}
		for n, pos := range positions {
			if n > 0 {
				x = append([]float64(nil), x...)
			}
			features[pos] = x
			labels[pos] = label
		}
	}
	return nil
}

// Matrix reads a batch as a rows×Dim matrix, ready to be labeled by a
// classifier.
func (d *InstanceDataset) Matrix(indices []int) (*mat.Dense, []int, error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("%w: empty batch", ErrIndexRange)
	}
	features, labels, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	m := mat.NewDense(len(features), d.Dim(), nil)
	for i, row := range features {
		m.SetRow(i, row)
	}
	return m, labels, nil
}

// All returns every example, in file order.
func (d *InstanceDataset) All() ([][]float64, []int, error) {
	indices := make([]int, d.totalExamples)
	for i := range indices {
		indices[i] = i
	}
	return d.Batch(indices)
}

// Shuffle reseeds the dataset and permutes the order Yield walks through.
func (d *InstanceDataset) Shuffle(seed int64) {
	d.rand = rand.New(rand.NewPCG(uint64(seed), 0))
	d.rand.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	d.cursor = 0
}

// Tensors reads a batch of examples and returns them as gomlx tensors:
// float32 features of shape [batch, Dim] and int32 labels of shape [batch].
func (d *InstanceDataset) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	features, labs, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat, err := MakeInstanceBatchFlat(features, labs)
	if err != nil {
		return nil, nil, err
	}
	return flat.ToGomlxTensors()
}

// Name returns the name of the dataset
func (d *InstanceDataset) Name() string {
	return "InstanceDataset"
}

// Yield returns the next BatchSize examples in iteration order, or io.EOF
// once the epoch is exhausted.
func (d *InstanceDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	end := min(d.cursor+d.BatchSize, len(d.order))
	in, la, err := d.Tensors(d.order[d.cursor:end])
	if err != nil {
		return nil, nil, nil, err
	}
	d.cursor = end
	return d, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Restart rewinds Yield to the start of the current order.
func (d *InstanceDataset) Restart() error {
	d.cursor = 0
	return nil
}

// InstanceBatchFlat stores a batch in flat contiguous buffers
type InstanceBatchFlat struct {
	Features   []float32
	Labels     []int32
	BatchSize  int
	FeatureDim int
}

// MakeInstanceBatchFlat flattens a batch into contiguous buffers
func MakeInstanceBatchFlat(features [][]float64, labels []int) (*InstanceBatchFlat, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("features and labels batch sizes don't match: %d != %d", len(features), len(labels))
	}
	if len(features) == 0 {
		return &InstanceBatchFlat{}, nil
	}

	batchSize := len(features)
	dim := len(features[0])
	flat := &InstanceBatchFlat{
		Features:   make([]float32, batchSize*dim),
		Labels:     make([]int32, batchSize),
		BatchSize:  batchSize,
		FeatureDim: dim,
	}
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("inconsistent feature dimensions at example %d: expected %d, got %d",
				i, dim, len(row))
		}
		for j, v := range row {
			flat.Features[i*dim+j] = float32(v)
		}
		flat.Labels[i] = int32(labels[i])
	}
	return flat, nil
}

// ToGomlxTensors converts InstanceBatchFlat to gomlx tensors
func (b *InstanceBatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.FeatureDim == 0 {
		return tensors.FromAnyValue([][]float32{}), tensors.FromAnyValue([]int32{}), nil
	}
	rows := make([][]float32, b.BatchSize)
	for i := range rows {
		rows[i] = b.Features[i*b.FeatureDim : (i+1)*b.FeatureDim]
	}
	return tensors.FromAnyValue(rows), tensors.FromAnyValue(b.Labels), nil
}
