package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"heart-predictor/internal/common"
	"heart-predictor/internal/storage"
)

func dataPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(common.EnvDataPath); v != "" {
		return v
	}
	return common.DefaultDataPath
}

func newExportCmd() *cobra.Command {
	var (
		data  string
		out   string
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the recorded prediction log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.New(dataPath(data))
			if err != nil {
				return err
			}
			defer store.Close()

			end := time.Now()
			start := time.Unix(0, 0)
			if since > 0 {
				start = end.Add(-since)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := store.ExportPredictionsCSV(w, start, end)
			if err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d predictions to %s\n", n, out)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&data, "data", "", "data directory (default $DATA_PATH or data)")
	f.StringVar(&out, "out", "-", "output CSV path, - for stdout")
	f.DurationVar(&since, "since", 0, "only export predictions newer than this, 0 for all")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var (
		data  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the training run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.New(dataPath(data))
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListTrainingRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No training runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tVERSION\tSOURCE\tROWS\tACCURACY\tROC AUC\tITER\tACTIVATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.4f\t%.4f\t%d\t%t\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Version, r.Source,
					r.TrainingRows, r.TestRows, r.Accuracy, r.AUC, r.Iterations, r.Activated)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&data, "data", "", "data directory (default $DATA_PATH or data)")
	f.IntVar(&limit, "limit", 20, "maximum runs to show, 0 for all")
	return cmd
}
