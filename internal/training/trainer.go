// Package training fits, evaluates and publishes heart disease models.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"heart-predictor/internal/dataset"
	"heart-predictor/internal/features"
	"heart-predictor/internal/ml"
	"heart-predictor/internal/storage"
)

// Config controls a training run.
type Config struct {
	TestSize float64
	Seed     int64
	Fit      ml.TrainConfig
	// Activate installs the new version into the model dir after it is recorded.
	Activate bool
}

// Prepared is a split, standardized dataset.
type Prepared struct {
	Train  *dataset.Dataset
	Test   *dataset.Dataset
	Scaler *ml.Scaler
	XTrain *mat.Dense
	XTest  *mat.Dense
}

// Prepare splits ds with class stratification and fits the scaler on the training rows only.
func Prepare(ds *dataset.Dataset, testSize float64, seed int64) (*Prepared, error) {
	trainIdx, testIdx, err := ml.StratifiedSplit(ds.Labels, testSize, seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	p := &Prepared{Train: ds.Subset(trainIdx), Test: ds.Subset(testIdx)}

	p.Scaler, err = ml.FitScaler(p.Train.Matrix())
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	if p.XTrain, err = p.Scaler.TransformMatrix(p.Train.Matrix()); err != nil {
		return nil, err
	}
	if p.XTest, err = p.Scaler.TransformMatrix(p.Test.Matrix()); err != nil {
		return nil, err
	}
	return p, nil
}

// RunRecorder persists training run summaries.
type RunRecorder interface {
	StoreTrainingRun(run storage.TrainingRun) error
}

// Outcome is everything a training run produced.
type Outcome struct {
	Version    string
	Dir        string
	StartedAt  time.Time
	Duration   time.Duration
	Artifacts  *ml.Artifacts
	Report     ml.Report
	Stats      ml.FitStats
	Importance []ml.FeatureStats
	Activated  bool
}

// Trainer runs the training pipeline and registers the result with a ModelManager.
type Trainer struct {
	cfg     Config
	manager *ml.ModelManager
	runs    RunRecorder
	now     func() time.Time
}

// NewTrainer creates a trainer. runs may be nil.
func NewTrainer(cfg Config, manager *ml.ModelManager, runs RunRecorder) *Trainer {
	return &Trainer{cfg: cfg, manager: manager, runs: runs, now: time.Now}
}

// Run trains on ds, writes the artifacts into a new version directory and records it.
func (t *Trainer) Run(ctx context.Context, ds *dataset.Dataset) (*Outcome, error) {
	started := t.now()
	log.Info().
		Int("rows", ds.Len()).
		Int("dropped", ds.Dropped).
		Int("disease", ds.Positives()).
		Int("no_disease", ds.Len()-ds.Positives()).
		Str("source", ds.Source).
		Msg("Dataset loaded")

	prep, err := Prepare(ds, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, stats, err := ml.FitLogisticRegression(prep.XTrain, prep.Train.Labels, t.cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	log.Info().
		Int("iterations", stats.Iterations).
		Float64("loss", stats.Loss).
		Str("status", stats.Status).
		Msg("Classifier fitted")

	report, err := evaluate(model, prep.XTest, prep.Test.Labels)
	if err != nil {
		return nil, err
	}

	importance, err := ml.PermutationImportance(model, features.Names(), prep.XTest, prep.Test.Labels, t.cfg.Seed)
	if err != nil {
		return nil, err
	}

	version, dir := t.manager.NextVersion()
	artifacts := &ml.Artifacts{
		Model:        model,
		Scaler:       prep.Scaler,
		FeatureNames: features.Names(),
		Metadata: ml.ModelMetadata{
			Version:       version,
			TrainedAt:     started.UTC(),
			TrainingRows:  prep.Train.Len(),
			TestRows:      prep.Test.Len(),
			TestAccuracy:  report.Accuracy,
			AUC:           report.AUC,
			Iterations:    stats.Iterations,
			Converged:     stats.Converged,
			C:             t.cfg.Fit.C,
			DatasetSource: ds.Source,
		},
	}
	if err := ml.WriteArtifacts(dir, artifacts); err != nil {
		return nil, err
	}
	if err := t.manager.AddVersion(version, dir, ml.MetricsFromReport(report, prep.Train.Len())); err != nil {
		return nil, err
	}
	if t.cfg.Activate {
		if err := t.manager.ActivateVersion(version); err != nil {
			return nil, err
		}
	}

	out := &Outcome{
		Version:    version,
		Dir:        dir,
		StartedAt:  started,
		Duration:   t.now().Sub(started),
		Artifacts:  artifacts,
		Report:     report,
		Stats:      stats,
		Importance: importance,
		Activated:  t.cfg.Activate,
	}

	if t.runs != nil {
		run := storage.TrainingRun{
			Version:      version,
			StartedAt:    started,
			Duration:     out.Duration,
			Source:       ds.Source,
			TrainingRows: prep.Train.Len(),
			TestRows:     prep.Test.Len(),
			Accuracy:     report.Accuracy,
			AUC:          report.AUC,
			Iterations:   stats.Iterations,
			Converged:    stats.Converged,
			Activated:    out.Activated,
		}
		if err := t.runs.StoreTrainingRun(run); err != nil {
			log.Warn().Err(err).Msg("Failed to record training run")
		}
	}

	log.Info().
		Str("version", version).
		Float64("accuracy", report.Accuracy).
		Float64("roc_auc", report.AUC).
		Bool("activated", out.Activated).
		Strs("top_features", ml.GetTopFeatures(importance, 3)).
		Msg("Training complete")
	return out, nil
}

func evaluate(m *ml.LogisticRegression, x *mat.Dense, y []float64) (ml.Report, error) {
	rows, _ := x.Dims()
	predicted := make([]int, rows)
	proba := make([]float64, rows)
	for i := 0; i < rows; i++ {
		p, err := m.PredictProba(x.RawRowView(i))
		if err != nil {
			return ml.Report{}, err
		}
		proba[i] = p
		predicted[i] = ml.Label(p)
	}
	return ml.Evaluate(y, predicted, proba)
}
