package training

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Report file names.
const (
	SummaryFile    = "training_summary.txt"
	ResultsFile    = "training_results.json"
	ImportanceFile = "feature_importance.csv"
)

// Reporter writes training reports for an outcome
type Reporter struct {
	outcome    *Outcome
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(outcome *Outcome, outputPath string) *Reporter {
	return &Reporter{
		outcome:    outcome,
		outputPath: outputPath,
	}
}

// GenerateReport writes every report format into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	return r.generateImportanceReport()
}

// WriteSummary prints the human-readable summary.
func (r *Reporter) WriteSummary(w io.Writer) {
	o := r.outcome
	meta := o.Artifacts.Metadata

	fmt.Fprintf(w, "TRAINING RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n\n")

	fmt.Fprintf(w, "Version: %s\n", o.Version)
	fmt.Fprintf(w, "Started: %s\n", o.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", o.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Dataset: %s\n", meta.DatasetSource)
	fmt.Fprintf(w, "Training rows: %d\n", meta.TrainingRows)
	fmt.Fprintf(w, "Test rows: %d\n\n", meta.TestRows)

	fmt.Fprintf(w, "SOLVER\n")
	fmt.Fprintf(w, "------\n")
	fmt.Fprintf(w, "C: %g\n", meta.C)
	fmt.Fprintf(w, "Iterations: %d\n", o.Stats.Iterations)
	fmt.Fprintf(w, "Final loss: %.6f\n", o.Stats.Loss)
	fmt.Fprintf(w, "Status: %s (converged: %t)\n\n", o.Stats.Status, o.Stats.Converged)

	fmt.Fprintf(w, "EVALUATION\n")
	fmt.Fprintf(w, "----------\n")
	fmt.Fprintf(w, "Model Accuracy: %.4f\n\n", o.Report.Accuracy)
	fmt.Fprintf(w, "%s\n", o.Report.String())

	if len(o.Importance) > 0 {
		fmt.Fprintf(w, "FEATURE IMPORTANCE\n")
		fmt.Fprintf(w, "------------------\n")
		for _, f := range o.Importance {
			fmt.Fprintf(w, "%-10s weight %+.4f  permutation %+.4f\n", f.Name, f.Weight, f.PermutationScore)
		}
	}
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.WriteSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, ResultsFile)

	report := map[string]interface{}{
		"version":            r.outcome.Version,
		"metadata":           r.outcome.Artifacts.Metadata,
		"solver":             r.outcome.Stats,
		"evaluation":         r.outcome.Report,
		"feature_importance": r.outcome.Importance,
		"activated":          r.outcome.Activated,
		"generated_at":       time.Now().UTC(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generateImportanceReport writes one CSV row per feature, most important first.
func (r *Reporter) generateImportanceReport() error {
	csvPath := filepath.Join(r.outputPath, ImportanceFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create importance report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"feature", "weight", "importance", "permutation"}); err != nil {
		return err
	}
	for _, f := range r.outcome.Importance {
		record := []string{
			f.Name,
			fmt.Sprintf("%.6f", f.Weight),
			fmt.Sprintf("%.6f", f.ImportanceScore),
			fmt.Sprintf("%.6f", f.PermutationScore),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Feature importance report generated")
	return nil
}
