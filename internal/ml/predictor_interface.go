// Package ml holds the trained pipeline: the standard scaler, the logistic regression
// classifier and the L-BFGS fit behind it, artifact persistence, model versioning,
// the per-request predictor and the HTTP server that exposes it.
package ml

import (
	"context"

	"heart-predictor/internal/features"
)

// PredictorInterface is what the HTTP server and CLI need from a predictor.
type PredictorInterface interface {
	// Predict validates and classifies one record.
	Predict(ctx context.Context, in features.Input) (Result, error)

	// Available reports whether model artifacts are loaded.
	Available() bool

	// LoadErr returns the artifact load failure, or nil.
	LoadErr() error

	// Artifacts returns the loaded artifacts, or nil when unavailable.
	Artifacts() *Artifacts
}

var _ PredictorInterface = (*Predictor)(nil)
