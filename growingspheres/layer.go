package growingspheres

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/growingspheres/predict"
	"github.com/Noofbiz/growingspheres/sampler"
)

// shell draws the expansion layer for the configured shape.
func (g *GrowingSpheres) shell(src rand.Source, radius, step float64) (*mat.Dense, error) {
	switch g.cfg.LayerShape {
	case Ring:
		return sampler.Ring(src, g.instance, radius, radius+step, g.cfg.NInLayer)
	case Sphere:
		return sampler.Sphere(src, g.instance, radius+step, g.cfg.NInLayer)
	case Ball:
		return sampler.Ball(src, g.instance, radius+step, g.cfg.NInLayer)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrLayerShape, g.cfg.LayerShape)
	}
}

// labelLayer clamps the layer to the caps, labels it with one batched call
// and returns copies of the rows matching the target. An empty result is a
// normal outcome.
func (g *GrowingSpheres) labelLayer(layer *mat.Dense) ([][]float64, error) {
	return labelLayer(layer, g.clf, g.cfg.Caps, g.target)
}

func labelLayer(layer *mat.Dense, clf predict.Classifier, caps *Caps, target Target) ([][]float64, error) {
	if caps != nil {
		caps.clamp(layer)
	}
	labels, err := predict.Labels(clf, layer)
	if err != nil {
		return nil, fmt.Errorf("label layer: %w", err)
	}
	var enemies [][]float64
	for i, label := range labels {
		if target.Matches(label) {
			enemies = append(enemies, mat.Row(nil, i, layer))
		}
	}
	return enemies, nil
}
