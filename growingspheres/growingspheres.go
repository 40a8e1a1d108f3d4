// Package growingspheres finds counterfactual explanations for a black-box
// classifier: the closest point to an instance that the classifier assigns
// to another class (or to a chosen target class).
//
// The search samples hyperspherical layers around the instance. It first
// shrinks a ball until it holds no enemies, then grows shells outward until
// one does, bracketing the decision boundary. The closest enemies are then
// made sparse by reverting as many coordinates as possible to the instance.
package growingspheres

import (
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/growingspheres/predict"
)

// streamSeed is the PCG stream selector paired with Config.Seed.
const streamSeed = 0x5851f42d4c957f2d

// GrowingSpheres explains a single instance against a single classifier.
// The instance and classifier never change after construction.
type GrowingSpheres struct {
	instance      []float64
	clf           predict.Classifier
	originalLabel int
	target        Target
	cfg           Config
	logger        *zap.Logger
}

type options struct {
	logger *zap.Logger
}

// Option customizes an explainer.
type Option func(*options)

// WithLogger sets the logger used for search progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New validates cfg, labels the instance and returns an explainer.
// Zero-valued numeric fields of cfg take their defaults; use DefaultConfig to
// also get sparsification enabled.
func New(instance []float64, clf predict.Classifier, cfg Config, opts ...Option) (*GrowingSpheres, error) {
	if len(instance) == 0 {
		return nil, ErrEmptyInstance
	}
	if clf == nil {
		return nil, ErrNilClassifier
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	cfg.LayerShape, _ = ParseLayerShape(string(cfg.LayerShape))
	cfg.StepPolicy, _ = ParseStepPolicy(string(cfg.StepPolicy))
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &GrowingSpheres{
		instance: append([]float64(nil), instance...),
		clf:      clf,
		cfg:      cfg,
		logger:   applyOptions(opts).logger,
	}

	label, err := predict.PredictOne(clf, g.instance)
	if err != nil {
		return nil, fmt.Errorf("label instance: %w", err)
	}
	g.originalLabel = label
	g.target = NewTarget(label, cfg.TargetClass)
	return g, nil
}

// Instance returns a copy of the instance under explanation.
func (g *GrowingSpheres) Instance() []float64 {
	return append([]float64(nil), g.instance...)
}

// OriginalLabel is the label the classifier assigns to the instance.
func (g *GrowingSpheres) OriginalLabel() int { return g.originalLabel }

// Target is the condition a point must meet to count as an enemy.
func (g *GrowingSpheres) Target() Target { return g.target }

// Config returns the effective configuration, defaults included.
func (g *GrowingSpheres) Config() Config { return g.cfg }

// Result is the output of FindCounterfactual.
type Result struct {
	// Counterfactuals are the distinct explanations, in order of their raw
	// enemy's distance to the instance. When Found is false it holds a single
	// all-zero vector.
	Counterfactuals [][]float64
	// Distances holds the distance of each counterfactual to the instance.
	Distances []float64
	// Found reports whether the boundary was bracketed. Check it rather than
	// testing for the all-zero vector, which is also a legitimate point.
	Found bool
	// EStar is the last raw (pre-sparsification) enemy that was considered.
	EStar []float64
	// Inner and Outer bracket the shell the enemies came from.
	Inner float64
	Outer float64
	// EnemyCount is the number of enemies in that shell.
	EnemyCount int
	// OriginalLabel is the instance's label.
	OriginalLabel int
	// State is the final search state.
	State SearchState
}

// FindCounterfactual returns up to n distinct counterfactuals, nearest first.
// Exhausting the attempt budgets is not an error: the result then has Found
// false and a single all-zero vector.
func (g *GrowingSpheres) FindCounterfactual(n int) (*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNumCounterfactuals, n)
	}
	exp, err := g.explore(g.newSource())
	if err != nil {
		return nil, err
	}

	res := &Result{
		Inner:         exp.Inner,
		Outer:         exp.Outer,
		EnemyCount:    len(exp.Enemies),
		OriginalLabel: g.originalLabel,
		State:         exp.State,
	}
	if !exp.Found {
		g.progress("No counterfactual found. Returning zeros!")
		res.Counterfactuals = [][]float64{make([]float64, len(g.instance))}
		return res, nil
	}

	seen := make(map[string]struct{})
	for _, c := range closestEnemies(exp.Enemies, g.instance, n) {
		res.EStar = c.point
		out := c.point
		if g.cfg.Sparse {
			out, err = g.FeatureSelection(c.point)
			if err != nil {
				return nil, err
			}
		}
		key := VectorKey(out)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		res.Counterfactuals = append(res.Counterfactuals, out)
		res.Distances = append(res.Distances, floats.Distance(out, g.instance, 2))
	}
	res.Found = true

	g.progress("Counterfactuals found",
		zap.Int("count", len(res.Counterfactuals)),
		zap.Float64s("radius", []float64{res.Inner, res.Outer}),
		zap.Int("enemies", res.EnemyCount))
	return res, nil
}

func (g *GrowingSpheres) newSource() rand.Source {
	return rand.NewPCG(uint64(g.cfg.Seed), streamSeed)
}

// progress logs search progress at info level when Verbose is set and at
// debug level otherwise.
func (g *GrowingSpheres) progress(msg string, fields ...zap.Field) {
	if g.cfg.Verbose {
		g.logger.Info(msg, fields...)
		return
	}
	g.logger.Debug(msg, fields...)
}
