package main

import (
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/growingspheres/monte"
	"github.com/Noofbiz/growingspheres/simple"
)

var demoPlot string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Explain [0, 0] against the classifier x0 + x1 > 1",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoPlot, "plot", "", "PNG path for the demo plot")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	clf, err := simple.NewLinear([][]float64{{1, 1}}, []float64{-1})
	if err != nil {
		return err
	}
	reference := monte.Synthetic(cfg.Search.Seed, 400, 2, -0.5, 1.5, func(x []float64) int {
		if floats.Sum(x) > 1 {
			return 1
		}
		return 0
	})

	p := problem{
		instance:  []float64{0, 0},
		clf:       clf,
		reference: reference,
		features:  []string{"x0", "x1"},
	}
	rep, err := explain(cmd.Context(), cfg, p)
	if err != nil {
		return err
	}
	if err := writeReport(rep, cfg.Output.JSON); err != nil {
		return err
	}
	path := cfg.Output.Plot
	if demoPlot != "" {
		path = demoPlot
	}
	if path != "" {
		return plotExplanation(path, p, rep)
	}
	return nil
}
