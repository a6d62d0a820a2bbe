package ml

import (
	"math/rand"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"heart-predictor/internal/features"
)

// fixtureArtifacts returns a hand-built model with population-like scaler parameters.
func fixtureArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	scaler, err := NewScaler(ScalerParams{
		Mean:  []float64{54.4, 0.68, 0.97, 131.6, 246.3, 0.15, 0.53, 149.6, 0.33, 1.04, 1.4, 0.73, 2.31},
		Scale: []float64{9.0, 0.47, 1.03, 17.5, 51.8, 0.36, 0.53, 22.9, 0.47, 1.16, 0.62, 1.02, 0.61},
	})
	if err != nil {
		t.Fatalf("NewScaler: %v", err)
	}
	model, err := NewLogisticRegression(ClassifierParams{
		Weights: []float64{0.18, 0.72, 0.81, 0.28, 0.21, -0.05, 0.17, -0.42, 0.45, 0.52, 0.34, 0.83, 0.61},
		Bias:    -0.12,
	})
	if err != nil {
		t.Fatalf("NewLogisticRegression: %v", err)
	}
	return &Artifacts{
		Model:        model,
		Scaler:       scaler,
		FeatureNames: features.Names(),
		Metadata: ModelMetadata{
			Version:      "20240101-000000",
			TrainedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			TrainingRows: 237,
			TestRows:     60,
			TestAccuracy: 0.87,
			C:            1,
		},
	}
}

// referenceInput is the patient used by the end-to-end scenarios.
func referenceInput() features.Input {
	return features.InputFromVector(features.Vector{45, 1, 1, 130, 200, 0, 1, 150, 0, 1.5, 1, 0, 2})
}

// separableData draws n labelled points in d dimensions on either side of the plane
// sum(x) = 0, at least margin away from it.
func separableData(n, d int, margin float64, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, d, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		for {
			var s float64
			for j := 0; j < d; j++ {
				v := rng.NormFloat64() * 2
				x.Set(i, j, v)
				s += v
			}
			if (label == 1 && s > margin) || (label == 0 && s < -margin) {
				break
			}
		}
		y[i] = label
	}
	return x, y
}
