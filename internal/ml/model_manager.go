package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// VersionsDir is the subdirectory of the model dir holding one directory per trained version.
const VersionsDir = "versions"

// ModelVersion represents a versioned model
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains held-out performance of a model
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	AUCScore        float64 `json:"auc_score"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	TrainingSamples int     `json:"training_samples"`
}

// MetricsFromReport takes the disease-class scores of a report.
func MetricsFromReport(r Report, trainingSamples int) ModelMetrics {
	return ModelMetrics{
		Accuracy:        r.Accuracy,
		AUCScore:        r.AUC,
		F1Score:         r.Classes[1].F1,
		Precision:       r.Classes[1].Precision,
		Recall:          r.Classes[1].Recall,
		TrainingSamples: trainingSamples,
	}
}

// ModelManager handles model versioning and rollback. The active version's artifacts are
// copied into the model dir, which is where the server loads them from.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
	now          func() time.Time
}

// NewModelManager creates a new model manager
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
		now:          time.Now,
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// NextVersion returns an unused version name and the directory its artifacts belong in.
func (mm *ModelManager) NextVersion() (string, string) {
	base := mm.now().UTC().Format("20060102-150405")
	version := base
	for i := 2; mm.find(version) >= 0; i++ {
		version = fmt.Sprintf("%s-%d", base, i)
	}
	return version, filepath.Join(mm.modelsDir, VersionsDir, version)
}

// AddVersion records artifacts already written to path. Versions are kept newest first.
func (mm *ModelManager) AddVersion(version, path string, metrics ModelMetrics) error {
	if mm.find(version) >= 0 {
		return fmt.Errorf("version %s already exists", version)
	}
	if _, err := LoadArtifacts(path); err != nil {
		return fmt.Errorf("version %s: %w", version, err)
	}

	mm.versions = append(mm.versions, ModelVersion{
		Version:   version,
		Path:      path,
		CreatedAt: mm.now(),
		Metrics:   metrics,
	})
	mm.sortVersions()

	return mm.saveVersions()
}

// ActivateVersion activates a specific model version and installs its artifacts
func (mm *ModelManager) ActivateVersion(version string) error {
	idx := mm.find(version)
	if idx < 0 {
		return fmt.Errorf("version %s not found", version)
	}

	if err := installArtifacts(mm.versions[idx].Path, mm.modelsDir); err != nil {
		return fmt.Errorf("activate %s: %w", version, err)
	}

	for i := range mm.versions {
		mm.versions[i].IsActive = i == idx
	}
	mm.currentModel = &mm.versions[idx]

	log.Info().Str("version", version).Str("model_dir", mm.modelsDir).Msg("Model version activated")
	return mm.saveVersions()
}

// Rollback activates the version trained before the active one
func (mm *ModelManager) Rollback() error {
	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	if currentIdx+1 < len(mm.versions) {
		return mm.ActivateVersion(mm.versions[currentIdx+1].Version)
	}

	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns the currently active version
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	return mm.currentModel
}

// ListVersions returns all model versions, newest first
func (mm *ModelManager) ListVersions() []ModelVersion {
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

func (mm *ModelManager) find(version string) int {
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			return i
		}
	}
	return -1
}

func (mm *ModelManager) sortVersions() {
	active := ""
	if mm.currentModel != nil {
		active = mm.currentModel.Version
	}
	sort.SliceStable(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})
	mm.currentModel = nil
	if i := mm.find(active); i >= 0 {
		mm.currentModel = &mm.versions[i]
	}
}

// loadVersions loads model versions from file
func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			break
		}
	}

	return nil
}

// saveVersions saves model versions to file
func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}

// installArtifacts copies the artifact files of src into dst. Metadata is optional.
func installArtifacts(src, dst string) error {
	from, to := PathsIn(src), PathsIn(dst)
	pairs := [][2]string{
		{from.Model, to.Model},
		{from.Scaler, to.Scaler},
		{from.FeatureNames, to.FeatureNames},
		{from.Metadata, to.Metadata},
	}
	for i, p := range pairs {
		if err := copyFile(p[0], p[1]); err != nil {
			if i == len(pairs)-1 && os.IsNotExist(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
