// Command explain finds counterfactual explanations with growing spheres.
//
// Usage:
//
//	explain run --config explain.yaml --row 12
//	explain demo --verbose
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Noofbiz/growingspheres/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	seed       int64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "explain",
	Short: "Counterfactual explanations for black-box classifiers",
	Long: `explain searches for the closest point a classifier assigns to another
class than a given instance, using layers of random points sampled on
growing hyperspheres, then keeps as few changed features as possible.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "explain.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log search progress")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "sampler seed (0 keeps the configured seed)")
	rootCmd.AddCommand(runCmd, demoCmd)
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Search.Seed = seed
	}
	if verbose {
		cfg.Search.Verbose = true
	}
	return cfg, cfg.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
