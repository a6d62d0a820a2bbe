package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"heart-predictor/internal/cfg"
	"heart-predictor/internal/common"
	"heart-predictor/internal/dataset"
	"heart-predictor/internal/ml"
	"heart-predictor/internal/storage"
	"heart-predictor/internal/training"
)

type trainOptions struct {
	data       string
	url        string
	target     string
	synthetic  bool
	testSize   float64
	seed       int64
	maxIter    int
	c          float64
	out        string
	reportDir  string
	noActivate bool
	noHistory  bool
}

func newTrainCmd(root *rootOptions) *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and publish it as a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "dataset CSV path (downloaded when missing)")
	f.StringVar(&opts.url, "url", "", "dataset download URL")
	f.StringVar(&opts.target, "target", "", "target column name")
	f.BoolVar(&opts.synthetic, "synthetic", false, "train on a generated sample dataset")
	f.Float64Var(&opts.testSize, "test-size", 0, "held-out fraction")
	f.Int64Var(&opts.seed, "seed", 0, "split and shuffle seed")
	f.IntVar(&opts.maxIter, "max-iter", 0, "maximum solver iterations")
	f.Float64Var(&opts.c, "c", 0, "inverse regularization strength")
	f.StringVar(&opts.out, "out", "", "model directory (overrides --model-dir)")
	f.StringVar(&opts.reportDir, "report-dir", "", "directory for training reports")
	f.BoolVar(&opts.noActivate, "no-activate", false, "record the version without installing it")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the run in the data store")
	return cmd
}

// trainSettings layers changed flags over the loaded configuration and revalidates.
func trainSettings(cmd *cobra.Command, root *rootOptions, opts *trainOptions) (cfg.TrainSettings, error) {
	s, err := cfg.LoadTraining()
	if err != nil {
		return s, err
	}

	flags := cmd.Flags()
	if root.modelDir != "" {
		s.ModelDir = root.modelDir
	}
	if flags.Changed("out") {
		s.ModelDir = opts.out
	}
	if flags.Changed("data") {
		s.DatasetPath = opts.data
	}
	if flags.Changed("url") {
		s.DatasetURL = opts.url
	}
	if flags.Changed("target") {
		s.TargetColumn = opts.target
	}
	if flags.Changed("test-size") {
		s.TestSize = opts.testSize
	}
	if flags.Changed("seed") {
		s.Seed = opts.seed
	}
	if flags.Changed("max-iter") {
		s.MaxIterations = opts.maxIter
	}
	if flags.Changed("c") {
		s.C = opts.c
	}
	if flags.Changed("report-dir") {
		s.ReportDir = opts.reportDir
	}
	return s, cfg.ValidateTraining(s)
}

func runTrain(cmd *cobra.Command, root *rootOptions, opts *trainOptions) error {
	s, err := trainSettings(cmd, root, opts)
	if err != nil {
		return err
	}

	ds, err := training.Acquire(cmd.Context(), dataset.NewDownloader(s.DownloadTimeout, s.DownloadRetries), training.SourceOptions{
		Path:          s.DatasetPath,
		URL:           s.DatasetURL,
		Target:        s.TargetColumn,
		Synthetic:     opts.synthetic,
		SyntheticRows: common.DefaultSyntheticRows,
		Seed:          s.Seed,
	})
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	manager, err := ml.NewModelManager(s.ModelDir)
	if err != nil {
		return err
	}

	var runs training.RunRecorder
	if !opts.noHistory {
		store, err := storage.New(s.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("training history disabled")
		} else {
			defer store.Close()
			runs = store
		}
	}

	trainer := training.NewTrainer(training.Config{
		TestSize: s.TestSize,
		Seed:     s.Seed,
		Fit: ml.TrainConfig{
			C:             s.C,
			MaxIterations: s.MaxIterations,
			Tolerance:     s.Tolerance,
		},
		Activate: !opts.noActivate,
	}, manager, runs)

	outcome, err := trainer.Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	reporter := training.NewReporter(outcome, s.ReportDir)
	if err := reporter.GenerateReport(); err != nil {
		return err
	}
	reporter.WriteSummary(cmd.OutOrStdout())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nArtifacts written to %s\n", outcome.Dir)
	if outcome.Activated {
		fmt.Fprintf(out, "Version %s is active in %s\n", outcome.Version, s.ModelDir)
	}
	return nil
}
