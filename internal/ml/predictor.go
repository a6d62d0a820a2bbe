package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"heart-predictor/internal/features"
)

var (
	// ErrModelUnavailable is returned for every request when the artifacts failed to load.
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrInference marks failures inside scaling or classification.
	ErrInference = errors.New("inference failed")
)

// InferenceError wraps a failure in one pipeline stage. It matches ErrInference.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() []error { return []error{ErrInference, e.Err} }

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc(label int)
	MLFailuresInc()
	MLValidationFailuresInc(field string)
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLModelAgeSet(float64)
}

// Result is the outcome of one prediction.
type Result struct {
	Label int
	// Probability is P(heart disease).
	Probability float64
	Vector      features.Vector
}

// NoDiseaseProbability is 1 - Probability.
func (r Result) NoDiseaseProbability() float64 { return 1 - r.Probability }

// Predictor runs validate, build, scale and classify for a single record. It holds only
// immutable artifacts and is safe for concurrent use.
type Predictor struct {
	artifacts *Artifacts
	loadErr   error
	metrics   MetricsInterface
}

// NewPredictor returns a predictor serving a. A nil a yields an unavailable predictor.
func NewPredictor(a *Artifacts, metrics MetricsInterface) *Predictor {
	p := &Predictor{artifacts: a, metrics: metrics}
	if a == nil {
		p.loadErr = ErrModelUnavailable
		return p
	}
	if metrics != nil && !a.Metadata.TrainedAt.IsZero() {
		metrics.MLModelAgeSet(time.Since(a.Metadata.TrainedAt).Seconds())
	}
	return p
}

// LoadPredictor loads the artifacts in dir. A failed load does not stop the caller: the
// returned predictor reports ErrModelUnavailable on every call.
func LoadPredictor(dir string, metrics MetricsInterface) *Predictor {
	a, err := LoadArtifacts(dir)
	if err != nil {
		log.Warn().Err(err).Str("model_dir", dir).Msg("Model artifacts not loaded, predictions disabled")
		return &Predictor{loadErr: err, metrics: metrics}
	}
	log.Info().
		Str("model_dir", dir).
		Str("version", a.Metadata.Version).
		Float64("test_accuracy", a.Metadata.TestAccuracy).
		Msg("Model artifacts loaded")
	return NewPredictor(a, metrics)
}

// Available reports whether the artifacts loaded.
func (p *Predictor) Available() bool {
	return p != nil && p.artifacts != nil
}

// LoadErr returns why the artifacts did not load, or nil.
func (p *Predictor) LoadErr() error {
	if p == nil {
		return ErrModelUnavailable
	}
	return p.loadErr
}

// Artifacts returns the loaded artifacts, or nil.
func (p *Predictor) Artifacts() *Artifacts {
	if p == nil {
		return nil
	}
	return p.artifacts
}

// Predict validates in and classifies it. Errors are ErrModelUnavailable, a
// *features.ValidationError or an *InferenceError.
func (p *Predictor) Predict(ctx context.Context, in features.Input) (Result, error) {
	if !p.Available() {
		return Result{}, ErrModelUnavailable
	}

	v, err := features.Parse(in)
	if err != nil {
		var verr *features.ValidationError
		if p.metrics != nil && errors.As(err, &verr) {
			p.metrics.MLValidationFailuresInc(verr.Field)
		}
		return Result{}, err
	}
	return p.PredictVector(ctx, v)
}

// PredictVector classifies an already validated vector.
func (p *Predictor) PredictVector(ctx context.Context, v features.Vector) (res Result, err error) {
	if !p.Available() {
		return Result{}, ErrModelUnavailable
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered panic during prediction")
			res, err = Result{}, &InferenceError{Stage: "predict", Err: fmt.Errorf("panic: %v", r)}
		}
		if p.metrics == nil {
			return
		}
		p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			p.metrics.MLFailuresInc()
			return
		}
		p.metrics.MLPredictionsInc(res.Label)
		p.metrics.MLPredictionScoresObserve(res.Probability)
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, &InferenceError{Stage: "predict", Err: err}
	}

	scaled, err := p.artifacts.Scaler.Transform(v.Slice())
	if err != nil {
		return Result{}, &InferenceError{Stage: "scale", Err: err}
	}
	prob, err := p.artifacts.Model.PredictProba(scaled)
	if err != nil {
		return Result{}, &InferenceError{Stage: "classify", Err: err}
	}
	return Result{Label: Label(prob), Probability: prob, Vector: v}, nil
}
