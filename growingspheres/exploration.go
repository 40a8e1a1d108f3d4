package growingspheres

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/Noofbiz/growingspheres/sampler"
)

// SearchState is the mutable state of one boundary search. It lives for a
// single Explore call.
type SearchState struct {
	// Radius is the current radius: the ball radius while contracting, the
	// inner shell radius while expanding.
	Radius float64
	// Step is the shell thickness used by the expansion phase.
	Step float64
	// Attempts counts contraction draws.
	Attempts int
	// Iterations counts expansion draws.
	Iterations int
	// Enemies is the enemy count of the last draw.
	Enemies int
}

// Exploration is the outcome of the boundary search.
type Exploration struct {
	// Enemies holds the enemy rows of the shell where enemies first appeared.
	Enemies [][]float64
	// Inner and Outer bracket the shell the enemies were drawn from.
	Inner float64
	Outer float64
	// State is the final search state.
	State SearchState
	// Found is false when either phase ran out of attempts.
	Found bool
}

// Explore runs the growing-spheres boundary search with a fresh source
// seeded from the configuration.
func (g *GrowingSpheres) Explore() (*Exploration, error) {
	return g.explore(g.newSource())
}

func (g *GrowingSpheres) explore(src rand.Source) (*Exploration, error) {
	state := SearchState{Radius: g.cfg.FirstRadius}

	state, err := g.contract(src, state)
	if err != nil {
		return nil, err
	}
	if state.Enemies > 0 {
		g.progress("Maximum number of attempts reached while zooming in",
			zap.Int("attempts", state.Attempts), zap.Float64("radius", state.Radius))
		return &Exploration{State: state}, nil
	}

	g.progress("Expanding hypersphere...", zap.Float64("radius", state.Radius))
	state.Step = state.Radius / g.cfg.DecreaseFactor
	return g.expand(src, state)
}

// contract shrinks the ball around the instance until a draw contains no
// enemies. On return state.Radius is the zero-enemy radius, or state.Enemies
// is still positive when the attempt budget ran out.
func (g *GrowingSpheres) contract(src rand.Source, state SearchState) (SearchState, error) {
	for state.Attempts < g.cfg.MaxAttempts {
		layer, err := sampler.Ball(src, g.instance, state.Radius, g.cfg.NInLayer)
		if err != nil {
			return state, err
		}
		enemies, err := g.labelLayer(layer)
		if err != nil {
			return state, err
		}
		state.Attempts++
		state.Enemies = len(enemies)
		g.progress("enemies found in initial hyperball",
			zap.Int("enemies", state.Enemies), zap.Float64("radius", state.Radius))

		if state.Enemies == 0 {
			return state, nil
		}
		g.progress("Zooming in...")
		state.Radius /= g.cfg.DecreaseFactor
	}
	return state, nil
}

// expand grows shells outward from state.Radius until one contains enemies.
func (g *GrowingSpheres) expand(src rand.Source, state SearchState) (*Exploration, error) {
	for state.Iterations < g.cfg.MaxAttempts {
		if g.cfg.StepPolicy == StepProportional && state.Iterations > 0 {
			state.Step = state.Radius / g.cfg.DecreaseFactor
		}
		layer, err := g.shell(src, state.Radius, state.Step)
		if err != nil {
			return nil, err
		}
		enemies, err := g.labelLayer(layer)
		if err != nil {
			return nil, err
		}
		state.Iterations++
		state.Enemies = len(enemies)

		if state.Enemies > 0 {
			g.progress("Boundary bracketed",
				zap.Float64("inner", state.Radius),
				zap.Float64("outer", state.Radius+state.Step),
				zap.Int("enemies", state.Enemies),
				zap.Int("iterations", state.Iterations))
			return &Exploration{
				Enemies: enemies,
				Inner:   state.Radius,
				Outer:   state.Radius + state.Step,
				State:   state,
				Found:   true,
			}, nil
		}
		state.Radius += state.Step
	}

	g.progress("Maximum number of attempts reached while expanding",
		zap.Int("iterations", state.Iterations), zap.Float64("radius", state.Radius))
	return &Exploration{Inner: state.Radius, Outer: state.Radius, State: state}, nil
}
