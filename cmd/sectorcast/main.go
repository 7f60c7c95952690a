package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paveg/sectorcast"
	"github.com/paveg/sectorcast/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	predictInput  string
	predictOutput string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sectorcast",
		Short: "Build sector revenue features and train next-month forecasting models",
		Long: `sectorcast turns the raw sector tables into train and test feature sets,
trains a fixed model set on them and scores new rows with the best model.

Configuration comes from --config (YAML or JSON), then SECTORCAST_* environment
variables, on top of the built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")

	root.AddCommand(newBuildCmd(), newTrainCmd(), newPredictCmd(), newVersionCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the train and test feature partitions",
		Long: `Reads the raw tables under raw_data_dir and writes train_output_path and
test_output_path. Nothing is done when both outputs already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			result, err := sectorcast.BuildFeatures(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "outputs already exist, nothing to do\n")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "train: %d rows -> %s\ntest:  %d rows -> %s\ncolumns: %d\n",
				result.TrainRows, result.TrainPath, result.TestRows, result.TestPath, len(result.Columns))
			return nil
		},
	}
}

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the scaler and models on the feature partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			report, err := sectorcast.Train(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-22s %12s %12s %8s\n", "model", "train_rmse", "test_rmse", "test_r2")
			for _, m := range report.Models {
				fmt.Fprintf(w, "%-22s %12.4f %12.4f %8.4f\n", m.Name, m.Train.RMSE, m.Test.RMSE, m.Test.R2)
			}
			fmt.Fprintf(w, "best: %s\n", report.Best.Model)
			return nil
		},
	}
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score feature rows with the best trained model",
		Example: `  sectorcast predict --input artifacts/raw_data/test_data/test.csv --output predictions.csv
  sectorcast predict -c sectorcast.yaml -i features.parquet -o predictions.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			n, err := sectorcast.Predict(cfg, predictInput, predictOutput, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d predictions -> %s\n", n, predictOutput)
			return nil
		},
	}
	cmd.Flags().StringVarP(&predictInput, "input", "i", "", "feature rows to score (.csv or .parquet)")
	cmd.Flags().StringVarP(&predictOutput, "output", "o", "predictions.csv", "where to write rows with predictions")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info().String())
		},
	}
}

func setup() (sectorcast.Config, *zap.Logger, error) {
	cfg, err := sectorcast.LoadConfig(configPath)
	if err != nil {
		return sectorcast.Config{}, nil, err
	}
	logger, err := newLogger(verbose)
	if err != nil {
		return sectorcast.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger.With(zap.String("version", version.Version)), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
