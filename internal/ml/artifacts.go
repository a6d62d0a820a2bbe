package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"heart-predictor/internal/features"
)

// Artifact file names inside a model directory.
const (
	ModelFile        = "heart_disease_model.json"
	ScalerFile       = "scaler.json"
	FeatureNamesFile = "feature_names.json"
	MetadataFile     = "metadata.json"
)

// ModelMetadata describes how a model was trained. It is optional on disk.
type ModelMetadata struct {
	Version       string    `json:"version"`
	TrainedAt     time.Time `json:"trained_at"`
	TrainingRows  int       `json:"training_rows"`
	TestRows      int       `json:"test_rows"`
	TestAccuracy  float64   `json:"test_accuracy"`
	AUC           float64   `json:"roc_auc"`
	Iterations    int       `json:"solver_iterations"`
	Converged     bool      `json:"converged"`
	C             float64   `json:"c"`
	DatasetSource string    `json:"dataset_source,omitempty"`
}

// Artifacts is everything the serving pipeline needs. It is not mutated after loading.
type Artifacts struct {
	Model        *LogisticRegression
	Scaler       *Scaler
	FeatureNames []string
	Metadata     ModelMetadata
}

// ArtifactPaths lists the files of a model directory.
type ArtifactPaths struct {
	Model        string
	Scaler       string
	FeatureNames string
	Metadata     string
}

// PathsIn returns the artifact paths under dir.
func PathsIn(dir string) ArtifactPaths {
	return ArtifactPaths{
		Model:        filepath.Join(dir, ModelFile),
		Scaler:       filepath.Join(dir, ScalerFile),
		FeatureNames: filepath.Join(dir, FeatureNamesFile),
		Metadata:     filepath.Join(dir, MetadataFile),
	}
}

// LoadError reports which artifact could not be loaded. It matches ErrModelUnavailable.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrModelUnavailable, e.Err} }

// LoadArtifacts reads and checks the artifacts in dir. The model, scaler and feature names
// are required; metadata is read when present.
func LoadArtifacts(dir string) (*Artifacts, error) {
	paths := PathsIn(dir)

	var mp ClassifierParams
	if err := readJSON(paths.Model, &mp); err != nil {
		return nil, err
	}
	model, err := NewLogisticRegression(mp)
	if err != nil {
		return nil, &LoadError{Path: paths.Model, Err: err}
	}

	var sp ScalerParams
	if err := readJSON(paths.Scaler, &sp); err != nil {
		return nil, err
	}
	scaler, err := NewScaler(sp)
	if err != nil {
		return nil, &LoadError{Path: paths.Scaler, Err: err}
	}

	var names []string
	if err := readJSON(paths.FeatureNames, &names); err != nil {
		return nil, err
	}
	if err := checkFeatureNames(names); err != nil {
		return nil, &LoadError{Path: paths.FeatureNames, Err: err}
	}

	if model.Width() != features.Count {
		return nil, &LoadError{Path: paths.Model, Err: fmt.Errorf("model has %d weights, want %d", model.Width(), features.Count)}
	}
	if scaler.Width() != features.Count {
		return nil, &LoadError{Path: paths.Scaler, Err: fmt.Errorf("scaler has %d columns, want %d", scaler.Width(), features.Count)}
	}

	a := &Artifacts{Model: model, Scaler: scaler, FeatureNames: names}
	if err := readJSON(paths.Metadata, &a.Metadata); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return a, nil
}

func checkFeatureNames(names []string) error {
	want := features.Names()
	if len(names) != len(want) {
		return fmt.Errorf("got %d feature names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			return fmt.Errorf("feature %d is %q, want %q", i, names[i], want[i])
		}
	}
	return nil
}

// WriteArtifacts writes the artifacts into dir, creating it if needed.
func WriteArtifacts(dir string, a *Artifacts) error {
	if a == nil || a.Model == nil || a.Scaler == nil {
		return fmt.Errorf("incomplete artifacts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	paths := PathsIn(dir)
	names := a.FeatureNames
	if len(names) == 0 {
		names = features.Names()
	}

	files := []struct {
		path string
		v    interface{}
	}{
		{paths.Model, a.Model.Params()},
		{paths.Scaler, a.Scaler.Params()},
		{paths.FeatureNames, names},
		{paths.Metadata, a.Metadata},
	}
	for _, f := range files {
		if err := writeArtifactFile(f.path, f.v); err != nil {
			return err
		}
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// writeArtifactFile replaces path through a temporary file so readers never see a partial file.
func writeArtifactFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
