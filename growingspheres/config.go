package growingspheres

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Defaults used when the matching Config field is left at its zero value.
const (
	DefaultNInLayer       = 2000
	DefaultFirstRadius    = 0.1
	DefaultDecreaseFactor = 10.0
	DefaultMaxAttempts    = 100
)

// LayerShape selects the region sampled during the expansion phase.
type LayerShape string

const (
	// Ring samples the shell between the current radius and radius+step.
	Ring LayerShape = "ring"
	// Sphere samples the surface at radius+step.
	Sphere LayerShape = "sphere"
	// Ball samples the whole ball of radius radius+step.
	Ball LayerShape = "ball"
)

// ParseLayerShape parses "ring", "ball" or "sphere" (case-insensitive).
func ParseLayerShape(s string) (LayerShape, error) {
	switch shape := LayerShape(strings.ToLower(strings.TrimSpace(s))); shape {
	case Ring, Sphere, Ball:
		return shape, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrLayerShape, s)
	}
}

// StepPolicy controls the shell thickness during the expansion phase.
type StepPolicy string

const (
	// StepFixed freezes the thickness at the value derived from the terminal
	// contraction radius.
	StepFixed StepPolicy = "fixed"
	// StepProportional re-derives the thickness as radius/DecreaseFactor on
	// every expansion iteration, so shells widen as the search moves out.
	StepProportional StepPolicy = "proportional"
)

// ParseStepPolicy parses "fixed" or "proportional" (case-insensitive).
func ParseStepPolicy(s string) (StepPolicy, error) {
	switch p := StepPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case StepFixed, StepProportional:
		return p, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrStepPolicy, s)
	}
}

// Caps is a single (Min, Max) pair clamping every coordinate of every
// generated point. It is not a per-feature bound.
type Caps struct {
	Min float64
	Max float64
}

func (c *Caps) clamp(layer *mat.Dense) {
	layer.Apply(func(_, _ int, v float64) float64 {
		if v < c.Min {
			return c.Min
		}
		if v > c.Max {
			return c.Max
		}
		return v
	}, layer)
}

// Config holds the search parameters.
type Config struct {
	// TargetClass, when set, makes only that class count as an enemy.
	// Otherwise any class other than the instance's counts.
	TargetClass *int

	// Caps optionally clamps generated points.
	Caps *Caps

	// NInLayer is the number of points sampled per layer (default 2000).
	NInLayer int

	// LayerShape is the expansion layer shape (default Ring).
	LayerShape LayerShape

	// FirstRadius is the radius of the first ball. Must be finite and > 0;
	// zero means the default (0.1).
	FirstRadius float64

	// DecreaseFactor divides the radius while contracting and sets the shell
	// thickness. Must be finite and > 1; zero means the default (10).
	DecreaseFactor float64

	// StepPolicy controls the shell thickness while expanding (default StepFixed).
	StepPolicy StepPolicy

	// MaxAttempts bounds each of the two phases (default 100).
	MaxAttempts int

	// Sparse enables the greedy sparsification of every counterfactual.
	Sparse bool

	// Verbose logs search progress at info level instead of debug.
	Verbose bool

	// Seed seeds the sampler. Zero picks a time-based seed at construction.
	Seed int64
}

// DefaultConfig returns the documented defaults with sparsification enabled.
func DefaultConfig() Config {
	return Config{
		NInLayer:       DefaultNInLayer,
		LayerShape:     Ring,
		FirstRadius:    DefaultFirstRadius,
		DecreaseFactor: DefaultDecreaseFactor,
		StepPolicy:     StepFixed,
		MaxAttempts:    DefaultMaxAttempts,
		Sparse:         true,
	}
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.NInLayer == 0 {
		c.NInLayer = DefaultNInLayer
	}
	if c.LayerShape == "" {
		c.LayerShape = Ring
	}
	if c.FirstRadius == 0 {
		c.FirstRadius = DefaultFirstRadius
	}
	if c.DecreaseFactor == 0 {
		c.DecreaseFactor = DefaultDecreaseFactor
	}
	if c.StepPolicy == "" {
		c.StepPolicy = StepFixed
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Validate reports the first configuration error, if any. Zero-valued fields
// are checked after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if !finiteAbove(c.DecreaseFactor, 1) {
		return fmt.Errorf("%w: got %v", ErrDecreaseFactor, c.DecreaseFactor)
	}
	if !finiteAbove(c.FirstRadius, 0) {
		return fmt.Errorf("%w: got %v", ErrFirstRadius, c.FirstRadius)
	}
	if _, err := ParseLayerShape(string(c.LayerShape)); err != nil {
		return err
	}
	if _, err := ParseStepPolicy(string(c.StepPolicy)); err != nil {
		return err
	}
	if c.NInLayer < 0 {
		return fmt.Errorf("%w: got %d", ErrLayerSize, c.NInLayer)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: got %d", ErrMaxAttempts, c.MaxAttempts)
	}
	if c.Caps != nil && c.Caps.Min > c.Caps.Max {
		return fmt.Errorf("%w: got (%v, %v)", ErrCaps, c.Caps.Min, c.Caps.Max)
	}
	return nil
}

// finiteAbove reports whether v is finite and strictly greater than lo.
// NaN fails the comparison.
func finiteAbove(v, lo float64) bool {
	return v > lo && !math.IsInf(v, 1)
}
