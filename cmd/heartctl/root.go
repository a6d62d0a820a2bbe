package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"heart-predictor/internal/cfg"
	"heart-predictor/internal/common"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	logLevel string
	modelDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "heartctl",
		Short:         "Train and manage heart disease prediction models",
		Long:          "heartctl trains the logistic regression heart disease model, manages its\nversions, runs offline predictions and exports the prediction log.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.LoadDotEnv(); err != nil {
				return err
			}
			setupLogging(cmd, opts.logLevel)
			return nil
		},
	}
	root.Version = version

	f := root.PersistentFlags()
	f.StringVar(&opts.logLevel, "log-level", "", "log level (default $LOG_LEVEL or info)")
	f.StringVar(&opts.modelDir, "model-dir", "", "model directory (default $MODEL_DIR or models)")

	root.AddCommand(newTrainCmd(opts))
	root.AddCommand(newPredictCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	root.AddCommand(newSampleCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newRunsCmd())
	return root
}

// resolveModelDir prefers the flag, then MODEL_DIR, then the default.
func (o *rootOptions) resolveModelDir() string {
	if o.modelDir != "" {
		return o.modelDir
	}
	if v := os.Getenv(common.EnvModelDir); v != "" {
		return v
	}
	return common.DefaultModelDir
}

func setupLogging(cmd *cobra.Command, level string) {
	if level == "" {
		level = os.Getenv(common.EnvLogLevel)
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
}
