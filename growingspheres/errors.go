package growingspheres

import "errors"

// Configuration errors, returned by New and NewDirected.
var (
	ErrEmptyInstance  = errors.New("growingspheres: instance must have at least one feature")
	ErrNilClassifier  = errors.New("growingspheres: prediction function is nil")
	ErrDecreaseFactor = errors.New("growingspheres: decrease factor must be > 1.0")
	ErrFirstRadius    = errors.New("growingspheres: first radius must be > 0")
	ErrLayerShape     = errors.New("growingspheres: layer shape must be either 'ring', 'ball' or 'sphere'")
	ErrStepPolicy     = errors.New("growingspheres: step policy must be either 'fixed' or 'proportional'")
	ErrCaps           = errors.New("growingspheres: caps minimum must be <= maximum")
	ErrLayerSize      = errors.New("growingspheres: number of points per layer must be > 0")
	ErrMaxAttempts    = errors.New("growingspheres: max attempts must be > 0")
)

// Errors returned while explaining.
var (
	// ErrDimension is returned when a vector does not match the instance dimension.
	ErrDimension = errors.New("growingspheres: vector dimension does not match the instance")

	// ErrNumCounterfactuals is returned when fewer than one counterfactual is requested.
	ErrNumCounterfactuals = errors.New("growingspheres: number of counterfactuals must be >= 1")

	// ErrTooManyFeatures is returned by the exhaustive sparsification when the
	// counterfactual changes more coordinates than it can enumerate.
	ErrTooManyFeatures = errors.New("growingspheres: too many changed features for exhaustive search")

	// ErrDirectedTarget is returned when the directed search cannot infer a
	// target class (more than two classes and none configured).
	ErrDirectedTarget = errors.New("growingspheres: directed search needs a target class for more than two classes")
)
