package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Noofbiz/growingspheres/config"
	"github.com/Noofbiz/growingspheres/datasets"
	"github.com/Noofbiz/growingspheres/predict"
	"github.com/Noofbiz/growingspheres/simple"
)

var (
	row        int
	dataPath   string
	exhaustive bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Explain one row of a CSV dataset",
	Long: `Loads the configured CSV data, trains the configured model on it (or
uses fixed linear weights) and explains the prediction for --row.`,
	Args: cobra.NoArgs,
	RunE: runExplain,
}

func init() {
	runCmd.Flags().IntVar(&row, "row", 0, "dataset row to explain")
	runCmd.Flags().StringVar(&dataPath, "data", "", "CSV glob or directory (overrides data.path)")
	runCmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "use exhaustive sparsification")
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}
	if exhaustive {
		cfg.Search.Exhaustive = true
	}
	if cfg.Data.Path == "" {
		return errors.New("no data: set data.path or --data")
	}

	pattern, err := datasets.ResolvePattern(cfg.Data.Path)
	if err != nil {
		return err
	}
	ds, err := datasets.NewInstanceDataset(pattern, cfg.Data.LabelColumn, cfg.Data.Features)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", zap.String("pattern", pattern),
		zap.Int("examples", ds.Len()), zap.Strings("features", ds.FeatureNames()))

	clf, err := buildModel(cfg, ds)
	if err != nil {
		return err
	}

	instance, _, err := ds.Example(row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}

	if cfg.Search.CapsFromData && cfg.Search.Caps == nil {
		summary, err := datasets.Summarize(ds)
		if err != nil {
			return err
		}
		lo, hi := summary.Range()
		cfg.Search.Caps = &config.Caps{Min: lo, Max: hi}
		logger.Info("caps from data", zap.Float64("min", lo), zap.Float64("max", hi))
	}

	p := problem{instance: instance, clf: clf, reference: ds, features: ds.FeatureNames()}
	rep, err := explain(cmd.Context(), cfg, p)
	if err != nil {
		return err
	}
	if err := writeReport(rep, cfg.Output.JSON); err != nil {
		return err
	}
	if cfg.Output.Plot != "" {
		return plotExplanation(cfg.Output.Plot, p, rep)
	}
	return nil
}

// buildModel returns the classifier to explain: fixed linear weights, or an
// MLP trained on ds.
func buildModel(cfg *config.File, ds *datasets.InstanceDataset) (predict.Classifier, error) {
	if cfg.Model.Kind == "linear" {
		return simple.NewLinear(cfg.Model.Weights, cfg.Model.Bias)
	}
	if !ds.HasLabels() {
		return nil, errors.New("training an mlp needs data.label_column")
	}

	mc := cfg.ToModelConfig(ds.Dim())
	if mc.NumClasses == 0 {
		summary, err := datasets.Summarize(ds)
		if err != nil {
			return nil, err
		}
		for label := range summary.Classes {
			mc.NumClasses = max(mc.NumClasses, label+1)
		}
	}
	model, err := simple.NewModel(mc)
	if err != nil {
		return nil, err
	}
	if err := model.TrainWithDataset(ds); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	acc, err := model.Accuracy(ds)
	if err != nil {
		return nil, err
	}
	logger.Info("model trained", zap.Int("classes", model.Config.NumClasses), zap.Float64("accuracy", acc))
	return model, nil
}
