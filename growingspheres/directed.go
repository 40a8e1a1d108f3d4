package growingspheres

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/predict"
	"github.com/Noofbiz/growingspheres/sampler"
)

// DirectedConfig holds the parameters of the directed search.
type DirectedConfig struct {
	// TargetClass is the class to reach. With two classes it defaults to the
	// class the instance is not predicted as.
	TargetClass *int
	Caps        *Caps

	// NInLayer defaults to 10000.
	NInLayer int
	// FirstRadius defaults to 0.1.
	FirstRadius float64
	// DecreaseFactor defaults to 5.
	DecreaseFactor float64
	// Step is the distance the center moves per iteration (default 0.1).
	Step float64
	// Spread multiplies the contracted radius to size the exploration ball
	// around the moving center (default 5).
	Spread float64
	// Threshold is the target probability a point needs to be an enemy
	// (default 0.5).
	Threshold float64
	// MaxAttempts bounds both phases (default 100).
	MaxAttempts int

	Sparse  bool
	Verbose bool
	Seed    int64
}

func (c DirectedConfig) withDefaults() DirectedConfig {
	if c.NInLayer == 0 {
		c.NInLayer = 10000
	}
	if c.FirstRadius == 0 {
		c.FirstRadius = DefaultFirstRadius
	}
	if c.DecreaseFactor == 0 {
		c.DecreaseFactor = 5
	}
	if c.Step == 0 {
		c.Step = 0.1
	}
	if c.Spread == 0 {
		c.Spread = 5
	}
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// DirectedGrowingSpheres walks toward the target class along the gradient of
// a local linear fit of the target probability instead of growing shells.
//
// Experimental: the walk can stall on flat or non-monotone probability
// landscapes. Prefer GrowingSpheres.
type DirectedGrowingSpheres struct {
	instance []float64
	proba    predict.Probabilistic
	target   int
	cfg      DirectedConfig
	logger   *zap.Logger
}

// DirectedResult is the outcome of the directed search.
type DirectedResult struct {
	Counterfactual []float64
	Found          bool
	// EStar is the raw closest enemy before sparsification.
	EStar []float64
	// Centers are the successive centers visited by the walk.
	Centers [][]float64
	// Radius is the contracted radius; exploration balls have Radius*Spread.
	Radius     float64
	EnemyCount int
	Iterations int
}

// NewDirected returns an experimental directed explainer.
func NewDirected(instance []float64, p predict.Probabilistic, cfg DirectedConfig, opts ...Option) (*DirectedGrowingSpheres, error) {
	if len(instance) == 0 {
		return nil, ErrEmptyInstance
	}
	if p == nil {
		return nil, ErrNilClassifier
	}
	cfg = cfg.withDefaults()
	if !finiteAbove(cfg.DecreaseFactor, 1) {
		return nil, fmt.Errorf("%w: got %v", ErrDecreaseFactor, cfg.DecreaseFactor)
	}
	if !finiteAbove(cfg.FirstRadius, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrFirstRadius, cfg.FirstRadius)
	}
	if cfg.Caps != nil && cfg.Caps.Min > cfg.Caps.Max {
		return nil, fmt.Errorf("%w: got (%v, %v)", ErrCaps, cfg.Caps.Min, cfg.Caps.Max)
	}

	probs, err := predict.ProbaOne(p, instance)
	if err != nil {
		return nil, fmt.Errorf("label instance: %w", err)
	}
	target := 0
	switch {
	case cfg.TargetClass != nil:
		target = *cfg.TargetClass
	case len(probs) == 2:
		target = 1 - floats.MaxIdx(probs)
	default:
		return nil, fmt.Errorf("%w: got %d classes", ErrDirectedTarget, len(probs))
	}
	if target < 0 || target >= len(probs) {
		return nil, fmt.Errorf("%w: target %d outside %d classes", ErrDirectedTarget, target, len(probs))
	}

	return &DirectedGrowingSpheres{
		instance: append([]float64(nil), instance...),
		proba:    p,
		target:   target,
		cfg:      cfg,
		logger:   applyOptions(opts).logger,
	}, nil
}

// TargetClass is the class the walk is heading for.
func (d *DirectedGrowingSpheres) TargetClass() int { return d.target }

// FindCounterfactual runs the directed search. Running out of attempts, or a
// flat probability landscape, yields Found false and a nil error.
func (d *DirectedGrowingSpheres) FindCounterfactual() (*DirectedResult, error) {
	src := rand.NewPCG(uint64(d.cfg.Seed), streamSeed)
	res := &DirectedResult{}

	radius, ok, err := d.contract(src)
	if err != nil {
		return nil, err
	}
	res.Radius = radius
	if !ok {
		d.progress("Maximum number of attempts reached while zooming in")
		return res, nil
	}

	d.progress("Exploring...", zap.Float64("radius", radius))
	center := append([]float64(nil), d.instance...)
	layer, p, err := d.layerWithProba(src, center, radius*d.cfg.Spread)
	if err != nil {
		return nil, err
	}
	enemies := d.enemies(layer, p)
	for len(enemies) == 0 && res.Iterations < d.cfg.MaxAttempts {
		gradient, err := localGradient(layer, p)
		if err != nil {
			return nil, err
		}
		if gradient == nil {
			d.progress("Flat probability landscape, stopping")
			return res, nil
		}
		floats.AddScaled(center, d.cfg.Step, gradient)
		res.Centers = append(res.Centers, append([]float64(nil), center...))

		layer, p, err = d.layerWithProba(src, center, radius*d.cfg.Spread)
		if err != nil {
			return nil, err
		}
		enemies = d.enemies(layer, p)
		res.Iterations++
	}
	res.EnemyCount = len(enemies)
	if len(enemies) == 0 {
		d.progress("Maximum number of attempts reached while exploring")
		return res, nil
	}

	closest := closestEnemies(enemies, d.instance, 1)[0].point
	res.EStar = closest
	res.Counterfactual = closest
	if d.cfg.Sparse {
		res.Counterfactual, err = d.FeatureSelection(closest)
		if err != nil {
			return nil, err
		}
	}
	res.Found = true
	d.progress("Final number of enemies", zap.Int("enemies", res.EnemyCount), zap.Int("iterations", res.Iterations))
	return res, nil
}

// contract shrinks the ball around the instance until no point reaches the
// target threshold.
func (d *DirectedGrowingSpheres) contract(src rand.Source) (float64, bool, error) {
	radius := d.cfg.FirstRadius
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		layer, p, err := d.layerWithProba(src, d.instance, radius)
		if err != nil {
			return radius, false, err
		}
		n := len(d.enemies(layer, p))
		d.progress("enemies found in initial sphere", zap.Int("enemies", n), zap.Float64("radius", radius))
		if n == 0 {
			return radius, true, nil
		}
		radius /= d.cfg.DecreaseFactor
	}
	return radius, false, nil
}

// layerWithProba samples a ball around center and returns it with the
// target-class probability of every row.
func (d *DirectedGrowingSpheres) layerWithProba(src rand.Source, center []float64, radius float64) (*mat.Dense, []float64, error) {
	layer, err := sampler.Ball(src, center, radius, d.cfg.NInLayer)
	if err != nil {
		return nil, nil, err
	}
	if d.cfg.Caps != nil {
		d.cfg.Caps.clamp(layer)
	}
	probs, err := d.proba.PredictProba(layer)
	if err != nil {
		return nil, nil, fmt.Errorf("label layer: %w", err)
	}
	rows, _ := layer.Dims()
	if err := predict.CheckProbabilities(probs, rows); err != nil {
		return nil, nil, err
	}
	if _, c := probs.Dims(); d.target >= c {
		return nil, nil, fmt.Errorf("%w: target %d outside %d classes", ErrDirectedTarget, d.target, c)
	}
	return layer, mat.Col(nil, d.target, probs), nil
}

func (d *DirectedGrowingSpheres) enemies(layer *mat.Dense, p []float64) [][]float64 {
	var out [][]float64
	for i, v := range p {
		if v > d.cfg.Threshold {
			out = append(out, mat.Row(nil, i, layer))
		}
	}
	return out
}

// localGradient fits p ≈ b0 + X·b by least squares and returns b normalized
// to unit length, or nil when the fit is flat.
func localGradient(layer *mat.Dense, p []float64) ([]float64, error) {
	rows, cols := layer.Dims()
	design := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		row := design.RawRowView(i)
		row[0] = 1
		copy(row[1:], layer.RawRowView(i))
	}

	var beta mat.VecDense
	if err := beta.SolveVec(design, mat.NewVecDense(rows, p)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("local regression: %w", err)
		}
	}
	gradient := mat.Col(nil, 0, beta.SliceVec(1, cols+1))
	norm := floats.Norm(gradient, 2)
	if norm == 0 || math.IsNaN(norm) {
		return nil, nil
	}
	floats.Scale(1/norm, gradient)
	return gradient, nil
}

// FeatureSelection reverts coordinates to the instance, smallest move first,
// while the target probability stays above the threshold.
func (d *DirectedGrowingSpheres) FeatureSelection(counterfactual []float64) ([]float64, error) {
	if len(counterfactual) != len(d.instance) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(counterfactual), len(d.instance))
	}
	out := append([]float64(nil), counterfactual...)
	reduced := 0
	for _, k := range changedCoordinates(counterfactual, d.instance) {
		moved := out[k]
		out[k] = d.instance[k]
		probs, err := predict.ProbaOne(d.proba, out)
		if err != nil {
			return nil, fmt.Errorf("feature selection: %w", err)
		}
		if d.target < len(probs) && probs[d.target] > d.cfg.Threshold {
			reduced++
			continue
		}
		out[k] = moved
	}
	d.progress("Reduced coordinates", zap.Int("reduced", reduced))
	return out, nil
}

func (d *DirectedGrowingSpheres) progress(msg string, fields ...zap.Field) {
	if d.cfg.Verbose {
		d.logger.Info(msg, fields...)
		return
	}
	d.logger.Debug(msg, fields...)
}
