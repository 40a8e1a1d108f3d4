package main

import (
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var errPlotDim = errors.New("plots need exactly two features")

// plotExplanation draws the reference data coloured by class, the instance,
// the bracketing shell and the counterfactuals.
func plotExplanation(path string, pr problem, rep *report) error {
	if len(pr.instance) != 2 {
		return errPlotDim
	}
	p := plot.New()
	p.Title.Text = "Counterfactuals: data (grey/orange), instance (blue), explanations (red)"
	p.X.Label.Text = featureName(pr.features, 0)
	p.Y.Label.Text = featureName(pr.features, 1)

	var all plotter.XYs
	byClass := map[bool]plotter.XYs{}
	if n := pr.reference.Len(); n > 0 {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		rows, labels, err := pr.reference.Batch(indices)
		if err != nil {
			return err
		}
		for i, r := range rows {
			same := labels[i] == rep.OriginalLabel
			byClass[same] = append(byClass[same], plotter.XY{X: r[0], Y: r[1]})
		}
	}
	for _, same := range []bool{true, false} {
		pts := byClass[same]
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 140}
		name := "data (original class)"
		if !same {
			sc.GlyphStyle.Color = color.RGBA{R: 230, G: 140, B: 20, A: 140}
			name = "data (other classes)"
		}
		sc.GlyphStyle.Radius = vg.Points(1.8)
		p.Add(sc)
		p.Legend.Add(name, sc)
		all = append(all, pts...)
	}

	// shell that bracketed the boundary
	for i, r := range []float64{rep.Inner, rep.Outer} {
		if r <= 0 {
			continue
		}
		pts := circle(pr.instance, r, 128)
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		all = append(all, pts...)
		line.Color = color.RGBA{R: 40, G: 120, B: 40, A: uint8(120 + i*60)}
		line.Width = vg.Points(0.8)
		p.Add(line)
		if i == 1 {
			p.Legend.Add("bracketing shell", line)
		}
	}

	inst, err := plotter.NewScatter(plotter.XYs{{X: pr.instance[0], Y: pr.instance[1]}})
	if err != nil {
		return err
	}
	inst.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	inst.GlyphStyle.Radius = vg.Points(4)
	p.Add(inst)
	p.Legend.Add("instance", inst)
	all = append(all, plotter.XY{X: pr.instance[0], Y: pr.instance[1]})

	if len(rep.Counterfactuals) > 0 {
		cfs := make(plotter.XYs, len(rep.Counterfactuals))
		for i, c := range rep.Counterfactuals {
			cfs[i] = plotter.XY{X: c.Point[0], Y: c.Point[1]}
		}
		sc, err := plotter.NewScatter(cfs)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 230}
		sc.GlyphStyle.Radius = vg.Points(3.5)
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		p.Add(sc)
		p.Legend.Add("counterfactuals", sc)
		all = append(all, cfs...)
	}

	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(all)

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// circle returns n+1 points closing a circle of radius r around c.
func circle(c []float64, r float64, n int) plotter.XYs {
	pts := make(plotter.XYs, n+1)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = plotter.XY{X: c[0] + r*math.Cos(theta), Y: c[1] + r*math.Sin(theta)}
	}
	return pts
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, p := range xs {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
