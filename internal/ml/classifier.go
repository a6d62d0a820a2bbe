package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Decision threshold on P(class 1).
const Threshold = 0.5

// TrainConfig controls logistic regression fitting.
type TrainConfig struct {
	// C is the inverse L2 regularization strength.
	C             float64
	MaxIterations int
	// Tolerance is the gradient norm at which the solver stops.
	Tolerance float64
}

// DefaultTrainConfig returns C=1, 1000 iterations and a 1e-4 gradient tolerance.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{C: 1.0, MaxIterations: 1000, Tolerance: 1e-4}
}

// ClassifierParams is the persisted form of a LogisticRegression.
type ClassifierParams struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// FitStats describes how the solver finished.
type FitStats struct {
	Iterations int     `json:"iterations"`
	Loss       float64 `json:"loss"`
	Status     string  `json:"status"`
	Converged  bool    `json:"converged"`
}

// LogisticRegression is a fitted binary classifier. It is immutable once built.
type LogisticRegression struct {
	weights []float64
	bias    float64
}

// NewLogisticRegression builds a classifier from persisted parameters.
func NewLogisticRegression(p ClassifierParams) (*LogisticRegression, error) {
	if len(p.Weights) == 0 {
		return nil, fmt.Errorf("classifier has no weights")
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("classifier weight[%d] is not finite", i)
		}
	}
	if math.IsNaN(p.Bias) || math.IsInf(p.Bias, 0) {
		return nil, fmt.Errorf("classifier bias is not finite")
	}
	w := make([]float64, len(p.Weights))
	copy(w, p.Weights)
	return &LogisticRegression{weights: w, bias: p.Bias}, nil
}

// FitLogisticRegression minimizes the L2-regularized log-loss over the rows of x with
// L-BFGS. The bias is not penalized. Hitting the iteration limit is logged, not returned.
func FitLogisticRegression(x *mat.Dense, y []float64, cfg TrainConfig) (*LogisticRegression, FitStats, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, FitStats{}, fmt.Errorf("no training rows")
	}
	if len(y) != rows {
		return nil, FitStats{}, fmt.Errorf("got %d labels for %d rows", len(y), rows)
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, FitStats{}, fmt.Errorf("label[%d] = %v, want 0 or 1", i, v)
		}
	}
	if cfg.C <= 0 {
		return nil, FitStats{}, fmt.Errorf("C must be positive, got %v", cfg.C)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultTrainConfig().MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTrainConfig().Tolerance
	}

	obj := &logLoss{x: x, y: y, lambda: 1 / cfg.C, rows: rows, cols: cols}
	problem := optimize.Problem{Func: obj.value, Grad: obj.gradient}
	settings := &optimize.Settings{
		GradientThreshold: cfg.Tolerance,
		MajorIterations:   cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 50,
		},
	}

	// theta = [w..., b]
	init := make([]float64, cols+1)
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if res == nil {
		return nil, FitStats{}, fmt.Errorf("logistic regression solver: %w", err)
	}
	if err != nil && !errors.Is(err, optimize.ErrLinesearcherFailure) {
		return nil, FitStats{}, fmt.Errorf("logistic regression solver: %w", err)
	}
	if math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, FitStats{}, fmt.Errorf("logistic regression diverged: loss %v", res.F)
	}

	stats := FitStats{
		Iterations: res.Stats.MajorIterations,
		Loss:       res.F,
		Status:     res.Status.String(),
		Converged:  err == nil && res.Status != optimize.IterationLimit,
	}
	if !stats.Converged {
		ev := log.Warn().
			Int("iterations", stats.Iterations).
			Float64("loss", stats.Loss).
			Str("status", stats.Status)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("Logistic regression did not converge")
	}

	w := make([]float64, cols)
	copy(w, res.X[:cols])
	return &LogisticRegression{weights: w, bias: res.X[cols]}, stats, nil
}

// Width is the number of features the classifier expects.
func (m *LogisticRegression) Width() int { return len(m.weights) }

// PredictProba returns P(class 1) for a scaled feature vector.
func (m *LogisticRegression) PredictProba(x []float64) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("classifier expects %d features, got %d", len(m.weights), len(x))
	}
	p := sigmoid(floats.Dot(m.weights, x) + m.bias)
	if math.IsNaN(p) {
		return 0, fmt.Errorf("probability is NaN")
	}
	return p, nil
}

// Predict returns 1 when P(class 1) >= 0.5, otherwise 0.
func (m *LogisticRegression) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return Label(p), nil
}

// Label applies the decision threshold to a class 1 probability.
func Label(p float64) int {
	if p >= Threshold {
		return 1
	}
	return 0
}

// Params returns a copy of the classifier parameters.
func (m *LogisticRegression) Params() ClassifierParams {
	w := make([]float64, len(m.weights))
	copy(w, m.weights)
	return ClassifierParams{Weights: w, Bias: m.bias}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes log(1 + e^z) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

type logLoss struct {
	x      *mat.Dense
	y      []float64
	lambda float64
	rows   int
	cols   int
}

func (l *logLoss) value(theta []float64) float64 {
	w, b := theta[:l.cols], theta[l.cols]
	var sum float64
	for i := 0; i < l.rows; i++ {
		z := floats.Dot(w, l.x.RawRowView(i)) + b
		sum += log1pExp(z) - l.y[i]*z
	}
	return sum + 0.5*l.lambda*floats.Dot(w, w)
}

func (l *logLoss) gradient(grad, theta []float64) {
	w, b := theta[:l.cols], theta[l.cols]
	for j := range grad {
		grad[j] = 0
	}
	gw := grad[:l.cols]
	for i := 0; i < l.rows; i++ {
		row := l.x.RawRowView(i)
		r := sigmoid(floats.Dot(w, row)+b) - l.y[i]
		floats.AddScaled(gw, r, row)
		grad[l.cols] += r
	}
	floats.AddScaled(gw, l.lambda, w)
}
