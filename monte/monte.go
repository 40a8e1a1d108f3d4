// Package monte assesses counterfactuals by Monte Carlo simulation and by
// comparison with a reference dataset.
//
// Robustness perturbs a counterfactual many times and measures how often the
// classifier still assigns the target class. Plausibility measures how far a
// counterfactual lies from real examples of the class it was moved to.
package monte

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/growingspheres/growingspheres"
	"github.com/Noofbiz/growingspheres/predict"
	"github.com/Noofbiz/growingspheres/sampler"
)

var (
	ErrNilDataset   = errors.New("dataset cannot be nil")
	ErrEmptyDataset = errors.New("dataset is empty")
	ErrK            = errors.New("k must be >= 1")
	ErrNumSims      = errors.New("numSims must be > 0")
	ErrDimension    = errors.New("point dimension does not match dataset")
)

const defaultScanBatch = 1024

// Dataset is the minimal interface monte needs from a reference dataset.
// datasets.InstanceDataset and Points satisfy it.
type Dataset interface {
	Len() int
	// Batch returns the feature rows and labels at the given global indices.
	Batch(indices []int) ([][]float64, []int, error)
}

// Monte runs robustness simulations and nearest-neighbor plausibility checks.
type Monte struct {
	DS Dataset
	K  int

	// Workers bounds the simulation worker pool (default runtime.NumCPU()).
	Workers int

	// ScanBatch is the number of dataset rows read per Batch call while
	// searching neighbors (default 1024; values <= 0 mean the default).
	ScanBatch int

	// rng seeds individual simulations.
	rng *rand.Rand

	logger *zap.Logger
}

// Option customizes a Monte.
type Option func(*Monte)

// WithSeed makes simulations reproducible.
func WithSeed(seed int64) Option {
	return func(m *Monte) { m.rng = rand.New(rand.NewPCG(uint64(seed), 0)) }
}

// WithLogger sets the logger for simulation progress.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monte) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(m *Monte) { m.Workers = n }
}

// NewMonte creates a new Monte object.
// ds must be non-nil and k must be >= 1.
func NewMonte(ds Dataset, k int, opts ...Option) (*Monte, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	if k < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrK, k)
	}
	m := &Monte{
		DS:        ds,
		K:         k,
		Workers:   runtime.NumCPU(),
		ScanBatch: defaultScanBatch,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Workers < 1 {
		m.Workers = 1
	}
	return m, nil
}

// RobustnessReport summarizes a robustness simulation.
type RobustnessReport struct {
	// Draws holds, per simulation, the fraction of perturbed points that
	// still match the target.
	Draws  []float64
	Mean   float64
	StdDev float64
	Min    float64
}

// Robustness runs numSims simulations. Each one samples n points uniformly
// in the ball of the given radius around cf and labels them with clf. clf
// is called from several goroutines and must be safe for concurrent use.
// Cancelling ctx stops pending simulations.
func (m *Monte) Robustness(ctx context.Context, clf predict.Classifier, target growingspheres.Target,
	cf []float64, radius float64, numSims, n int) (*RobustnessReport, error) {
	if clf == nil {
		return nil, predict.ErrNilPredictor
	}
	if numSims <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNumSims, numSims)
	}

	// Precompute independent seeds using the Monte RNG (serial access).
	seeds := make([]uint64, numSims)
	for i := range seeds {
		seeds[i] = m.rng.Uint64()
	}

	draws := make([]float64, numSims)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Workers)
	for sim := range draws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			layer, err := sampler.Ball(rand.NewPCG(seeds[sim], uint64(sim)), cf, radius, n)
			if err != nil {
				return err
			}
			labels, err := predict.Labels(clf, layer)
			if err != nil {
				return fmt.Errorf("simulation %d: %w", sim, err)
			}
			kept := 0
			for _, label := range labels {
				if target.Matches(label) {
					kept++
				}
			}
			draws[sim] = float64(kept) / float64(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &RobustnessReport{Draws: draws}
	data := stats.Float64Data(draws)
	report.Mean, _ = data.Mean()
	report.StdDev, _ = data.StandardDeviation()
	report.Min, _ = data.Min()
	m.logger.Debug("robustness simulated",
		zap.Int("sims", numSims), zap.Int("points", n),
		zap.Float64("radius", radius), zap.Float64("mean", report.Mean))
	return report, nil
}

// Neighbor is a dataset row close to a query point.
type Neighbor struct {
	Index    int
	Distance float64
	Label    int
}

// Neighbors performs a linear scan KNN search over the dataset and returns
// up to K rows sorted by increasing distance to x. A non-negative label
// restricts the search to rows of that class.
func (m *Monte) Neighbors(x []float64, label int) ([]Neighbor, error) {
	n := m.DS.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}

	scan := m.ScanBatch
	if scan <= 0 {
		scan = defaultScanBatch
	}
	var candidates []Neighbor
	for start := 0; start < n; start += scan {
		end := min(start+scan, n)
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		rows, labels, err := m.DS.Batch(indices)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			if label >= 0 && labels[i] != label {
				continue
			}
			if len(row) != len(x) {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), len(row))
			}
			candidates = append(candidates, Neighbor{
				Index:    indices[i],
				Distance: floats.Distance(x, row, 2),
				Label:    labels[i],
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates[:min(m.K, len(candidates))], nil
}

// PlausibilityReport compares a counterfactual with the real examples of its
// class.
type PlausibilityReport struct {
	Neighbors []Neighbor
	// Nearest is the distance to the closest example of the class.
	Nearest float64
	// MeanDistance is the mean distance to the K nearest examples.
	MeanDistance float64
	// Found is false when the dataset holds no example of the class.
	Found bool
}

// Plausibility reports how far cf lies from the dataset's examples of label.
// Lower distances mean a more realistic counterfactual.
func (m *Monte) Plausibility(cf []float64, label int) (*PlausibilityReport, error) {
	nbs, err := m.Neighbors(cf, label)
	if err != nil {
		return nil, err
	}
	report := &PlausibilityReport{Neighbors: nbs}
	if len(nbs) == 0 {
		return report, nil
	}
	dists := make(stats.Float64Data, len(nbs))
	for i, nb := range nbs {
		dists[i] = nb.Distance
	}
	report.Found = true
	report.Nearest = nbs[0].Distance
	report.MeanDistance, _ = dists.Mean()
	return report, nil
}
