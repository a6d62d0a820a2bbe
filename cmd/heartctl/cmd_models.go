package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"heart-predictor/internal/ml"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, activate and roll back trained model versions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trained versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := ml.NewModelManager(root.resolveModelDir())
			if err != nil {
				return err
			}
			versions := mm.ListVersions()
			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintln(out, "No model versions. Run 'heartctl train' first.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tVERSION\tCREATED\tACCURACY\tROC AUC\tF1\tROWS")
			for _, v := range versions {
				active := ""
				if v.IsActive {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%.4f\t%d\n",
					active, v.Version, v.CreatedAt.Format("2006-01-02 15:04:05"),
					v.Metrics.Accuracy, v.Metrics.AUCScore, v.Metrics.F1Score, v.Metrics.TrainingSamples)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <version>",
		Short: "Install a version into the model directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mm, err := ml.NewModelManager(root.resolveModelDir())
			if err != nil {
				return err
			}
			if err := mm.ActivateVersion(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s. Restart heartserve to serve it.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Activate the version trained before the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := ml.NewModelManager(root.resolveModelDir())
			if err != nil {
				return err
			}
			if err := mm.Rollback(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %s. Restart heartserve to serve it.\n", mm.GetCurrentVersion().Version)
			return nil
		},
	})

	return cmd
}
