// Package sampler draws random points inside balls, on spheres and inside
// spherical shells ("rings") around a center point in D dimensions.
//
// Every function is pure: the only state is the caller-supplied random
// source, so a fixed seed always reproduces the same layer. Layers are
// returned as N×D gonum matrices, one sampled point per row.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrEmptyCenter is returned when the center point has no coordinates.
	ErrEmptyCenter = errors.New("sampler: center must have at least one dimension")

	// ErrNonPositiveCount is returned when fewer than one point is requested.
	ErrNonPositiveCount = errors.New("sampler: number of points must be > 0")

	// ErrNegativeRadius is returned for a radius below zero.
	ErrNegativeRadius = errors.New("sampler: radius must be >= 0")

	// ErrInvalidRing is returned when the inner radius exceeds the outer one.
	ErrInvalidRing = errors.New("sampler: inner radius must be <= outer radius")
)

// Ball returns n points distributed uniformly in volume inside the ball of
// the given radius centered at center. The distance of a point to the center
// is radius*u^(1/D) for u ~ U(0,1), which gives the r^(D-1) density of a
// uniform ball.
func Ball(src rand.Source, center []float64, radius float64, n int) (*mat.Dense, error) {
	if err := checkArgs(center, n); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrNegativeRadius, radius)
	}
	invD := 1.0 / float64(len(center))
	return generate(src, center, n, func(u float64) float64 {
		return radius * math.Pow(u, invD)
	}), nil
}

// Sphere returns n points distributed uniformly on the surface of the sphere
// of the given radius centered at center.
func Sphere(src rand.Source, center []float64, radius float64, n int) (*mat.Dense, error) {
	if err := checkArgs(center, n); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrNegativeRadius, radius)
	}
	return generate(src, center, n, func(float64) float64 { return radius }), nil
}

// Ring returns n points distributed uniformly in volume inside the spherical
// shell inner <= |x - center| <= outer.
func Ring(src rand.Source, center []float64, inner, outer float64, n int) (*mat.Dense, error) {
	if err := checkArgs(center, n); err != nil {
		return nil, err
	}
	if inner < 0 || outer < 0 {
		return nil, fmt.Errorf("%w: got (%v, %v)", ErrNegativeRadius, inner, outer)
	}
	if inner > outer {
		return nil, fmt.Errorf("%w: got (%v, %v)", ErrInvalidRing, inner, outer)
	}
	d := float64(len(center))
	// (u*(o^D - i^D) + i^D)^(1/D), factored by o so large D does not overflow.
	ratio := 0.0
	if outer > 0 {
		ratio = math.Pow(inner/outer, d)
	}
	return generate(src, center, n, func(u float64) float64 {
		return outer * math.Pow(u*(1-ratio)+ratio, 1/d)
	}), nil
}

// Direction returns a unit vector drawn uniformly from the surface of the
// unit sphere in d dimensions.
func Direction(src rand.Source, d int) []float64 {
	if d <= 0 {
		return nil
	}
	v := make([]float64, d)
	direction(distuv.Normal{Mu: 0, Sigma: 1, Src: src}, v)
	return v
}

// generate fills an n×D matrix. Each row is an isotropic Gaussian direction
// normalized to unit length, scaled by radius(u) and shifted to center.
func generate(src rand.Source, center []float64, n int, radius func(u float64) float64) *mat.Dense {
	d := len(center)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	layer := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := layer.RawRowView(i)
		direction(normal, row)
		floats.Scale(radius(uniform.Rand()), row)
		floats.Add(row, center)
	}
	return layer
}

// direction overwrites v with a uniformly distributed unit vector.
func direction(normal distuv.Normal, v []float64) {
	for {
		for j := range v {
			v[j] = normal.Rand()
		}
		norm := floats.Norm(v, 2)
		if norm > 0 {
			floats.Scale(1/norm, v)
			return
		}
	}
}

func checkArgs(center []float64, n int) error {
	if len(center) == 0 {
		return ErrEmptyCenter
	}
	if n <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveCount, n)
	}
	return nil
}
