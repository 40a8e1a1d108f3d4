package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/growingspheres/config"
	"github.com/Noofbiz/growingspheres/growingspheres"
	"github.com/Noofbiz/growingspheres/monte"
	"github.com/Noofbiz/growingspheres/predict"
)

// problem is one instance to explain together with the classifier and the
// reference data used to assess the result.
type problem struct {
	instance []float64
	clf      predict.Classifier
	// reference is the dataset used for plausibility and plotting.
	reference monte.Dataset
	features  []string
}

type counterfactualReport struct {
	Point           []float64 `json:"point"`
	Distance        float64   `json:"distance"`
	Label           int       `json:"label"`
	ChangedFeatures []string  `json:"changed_features"`
	RobustnessMean  float64   `json:"robustness_mean"`
	RobustnessMin   float64   `json:"robustness_min"`
	NearestOfClass  *float64  `json:"nearest_of_class,omitempty"`
	MeanOfClass     *float64  `json:"mean_distance_of_class,omitempty"`
}

type distanceSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

type report struct {
	Instance        []float64              `json:"instance"`
	OriginalLabel   int                    `json:"original_label"`
	Target          string                 `json:"target"`
	Found           bool                   `json:"found"`
	Inner           float64                `json:"inner_radius"`
	Outer           float64                `json:"outer_radius"`
	EnemyCount      int                    `json:"enemy_count"`
	Attempts        int                    `json:"contraction_attempts"`
	Iterations      int                    `json:"expansion_iterations"`
	Counterfactuals []counterfactualReport `json:"counterfactuals"`
	Distances       *distanceSummary       `json:"distances,omitempty"`
}

// explain runs the search described by cfg on p and assesses every
// counterfactual it returns.
func explain(ctx context.Context, cfg *config.File, p problem) (*report, error) {
	searchCfg := cfg.ToSearchConfig()
	if cfg.Search.Exhaustive {
		// raw enemies first, exhaustive selection below
		searchCfg.Sparse = false
	}
	g, err := growingspheres.New(p.instance, p.clf, searchCfg, growingspheres.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	res, err := g.FindCounterfactual(cfg.Search.NumCounterfactuals)
	if err != nil {
		return nil, err
	}

	rep := &report{
		Instance:      g.Instance(),
		OriginalLabel: res.OriginalLabel,
		Target:        g.Target().String(),
		Found:         res.Found,
		Inner:         res.Inner,
		Outer:         res.Outer,
		EnemyCount:    res.EnemyCount,
		Attempts:      res.State.Attempts,
		Iterations:    res.State.Iterations,
	}
	if !res.Found {
		logger.Warn("no counterfactual found",
			zap.Int("attempts", res.State.Attempts), zap.Int("iterations", res.State.Iterations))
		return rep, nil
	}

	points := res.Counterfactuals
	if cfg.Search.Exhaustive {
		if points, err = exhaustive(g, points); err != nil {
			return nil, err
		}
	}

	m, err := monte.NewMonte(p.reference, cfg.Output.Neighbors,
		monte.WithSeed(g.Config().Seed), monte.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	// perturb within the thickness of the shell that bracketed the boundary
	radius := res.Outer - res.Inner
	if radius <= 0 {
		radius = g.Config().FirstRadius
	}

	var dists stats.Float64Data
	for _, cf := range points {
		cr, err := assess(ctx, cfg, m, g, p, cf, radius)
		if err != nil {
			return nil, err
		}
		rep.Counterfactuals = append(rep.Counterfactuals, *cr)
		dists = append(dists, cr.Distance)
	}
	rep.Distances = summarize(dists)
	return rep, nil
}

// exhaustive replaces greedy sparsification and drops the duplicates it
// creates.
func exhaustive(g *growingspheres.GrowingSpheres, raw [][]float64) ([][]float64, error) {
	seen := make(map[string]struct{})
	var out [][]float64
	for _, e := range raw {
		s, err := g.FeatureSelectionAll(e)
		if err != nil {
			return nil, err
		}
		key := growingspheres.VectorKey(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func assess(ctx context.Context, cfg *config.File, m *monte.Monte, g *growingspheres.GrowingSpheres,
	p problem, cf []float64, radius float64) (*counterfactualReport, error) {
	label, err := predict.PredictOne(p.clf, cf)
	if err != nil {
		return nil, err
	}
	cr := &counterfactualReport{
		Point:    cf,
		Distance: floats.Distance(cf, p.instance, 2),
		Label:    label,
	}
	for i := range cf {
		if cf[i] != p.instance[i] {
			cr.ChangedFeatures = append(cr.ChangedFeatures, featureName(p.features, i))
		}
	}

	if cfg.Output.RobustnessSims > 0 {
		rob, err := m.Robustness(ctx, p.clf, g.Target(), cf, radius,
			cfg.Output.RobustnessSims, cfg.Output.RobustnessPoints)
		if err != nil {
			return nil, err
		}
		cr.RobustnessMean, cr.RobustnessMin = rob.Mean, rob.Min
	}

	if p.reference.Len() > 0 {
		plaus, err := m.Plausibility(cf, label)
		if err != nil {
			return nil, err
		}
		if plaus.Found {
			cr.NearestOfClass = &plaus.Nearest
			cr.MeanOfClass = &plaus.MeanDistance
		}
	}
	return cr, nil
}

func featureName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("x%d", i)
}

func summarize(d stats.Float64Data) *distanceSummary {
	if len(d) == 0 {
		return nil
	}
	s := &distanceSummary{}
	s.Min, _ = d.Min()
	s.Max, _ = d.Max()
	s.Mean, _ = d.Mean()
	s.Median, _ = d.Median()
	return s
}

// writeReport writes rep as indented JSON to path, or to stdout when path is
// empty.
func writeReport(rep *report, path string) error {
	if path == "" {
		return encodeReport(os.Stdout, rep)
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(f, rep)
}

// writeAndClose encodes rep to wc and closes it. A Close error is returned
// when encoding succeeded.
func writeAndClose(wc io.WriteCloser, rep *report) error {
	err := encodeReport(wc, rep)
	if cerr := wc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close report: %w", cerr)
	}
	return err
}

func encodeReport(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
