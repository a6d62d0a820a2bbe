package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"heart-predictor/internal/common"
	"heart-predictor/internal/dataset"
)

func newSampleCmd() *cobra.Command {
	var (
		rows   int
		seed   int64
		out    string
		target string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic dataset in the training CSV layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows < 2 {
				return fmt.Errorf("--rows must be at least 2, got %d", rows)
			}
			ds := dataset.Synthetic(rows, seed)

			if out == "-" {
				return dataset.WriteCSV(cmd.OutOrStdout(), ds, target)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := dataset.WriteCSV(f, ds, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows (%d with disease) to %s\n", ds.Len(), ds.Positives(), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&rows, "rows", common.DefaultSyntheticRows, "number of records")
	f.Int64Var(&seed, "seed", common.DefaultSplitSeed, "random seed")
	f.StringVar(&out, "out", common.DefaultDatasetPath, "output CSV path, - for stdout")
	f.StringVar(&target, "target", common.DefaultTargetColumn, "target column name")
	return cmd
}
