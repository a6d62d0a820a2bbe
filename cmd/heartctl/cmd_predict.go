package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"heart-predictor/internal/features"
	"heart-predictor/internal/ml"
)

type predictOptions struct {
	input string
	set   []string
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one patient record with the active model",
		Example: "  heartctl predict --input patient.json\n" +
			"  heartctl predict --set age=45 --set sex=1 --set cp=1 --set trestbps=130 --set chol=200",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "JSON file with the patient fields")
	f.StringArrayVar(&opts.set, "set", nil, "feature=value, repeatable; applied after --input")
	return cmd
}

func runPredict(cmd *cobra.Command, root *rootOptions, opts *predictOptions) error {
	if opts.input == "" && len(opts.set) == 0 {
		return fmt.Errorf("one of --input or --set is required")
	}

	in, err := readInput(opts.input, opts.set)
	if err != nil {
		return err
	}

	artifacts, err := ml.LoadArtifacts(root.resolveModelDir())
	if err != nil {
		return err
	}

	res, err := ml.NewPredictor(artifacts, nil).Predict(cmd.Context(), in)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ml.FormatResponse(res))
}

func readInput(path string, set []string) (features.Input, error) {
	var in features.Input
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("read input: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parse input: %w", err)
		}
	}

	for _, kv := range set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return in, fmt.Errorf("--set %q: expected feature=value", kv)
		}
		if !in.Set(strings.TrimSpace(name), features.ParseValue(strings.TrimSpace(value))) {
			return in, fmt.Errorf("--set %q: unknown feature %q", kv, name)
		}
	}
	return in, nil
}
