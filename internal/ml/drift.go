package ml

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"heart-predictor/internal/features"
)

// Drift severities, from least to most severe.
const (
	SeverityNone     = "none"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// DriftConfig configures a DriftMonitor.
type DriftConfig struct {
	// WindowSize is how many recent requests are compared with the training data.
	WindowSize int
	// AlertThreshold is the score above which a feature is reported as drifting.
	AlertThreshold float64
	// MinSamples is the number of requests needed before scores are computed.
	MinSamples int
}

// DefaultDriftConfig compares the last 500 requests, alerting above 0.1 after 30 requests.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{WindowSize: 500, AlertThreshold: 0.1, MinSamples: 30}
}

// DriftMetrics receives per-feature drift scores.
type DriftMetrics interface {
	FeatureDriftSet(feature string, score float64)
}

// FeatureDrift compares one feature of recent requests with the training distribution.
type FeatureDrift struct {
	Feature        string  `json:"feature"`
	BaselineMean   float64 `json:"baseline_mean"`
	BaselineStd    float64 `json:"baseline_std"`
	CurrentMean    float64 `json:"current_mean"`
	CurrentStd     float64 `json:"current_std"`
	Score          float64 `json:"drift_score"`
	Severity       string  `json:"severity"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// DriftReport is the body of GET /api/drift.
type DriftReport struct {
	Samples   int            `json:"samples"`
	Threshold float64        `json:"threshold"`
	Ready     bool           `json:"ready"`
	Drifting  int            `json:"drifting"`
	Features  []FeatureDrift `json:"features"`
}

// DriftMonitor keeps a sliding window of served feature vectors and scores how far their
// mean and spread have moved from the training data the scaler was fitted on.
type DriftMonitor struct {
	mu      sync.Mutex
	cfg     DriftConfig
	names   []string
	mean    []float64
	std     []float64
	window  [][]float64 // per feature, ring buffer of WindowSize values
	next    int
	count   int
	metrics DriftMetrics
}

// NewDriftMonitor uses the scaler's mean and scale as the training baseline. metrics may be nil.
func NewDriftMonitor(s *Scaler, cfg DriftConfig, metrics DriftMetrics) (*DriftMonitor, error) {
	if s == nil || s.Width() != features.Count {
		return nil, fmt.Errorf("drift monitor: scaler must have %d features", features.Count)
	}
	def := DefaultDriftConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = def.AlertThreshold
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MinSamples > cfg.WindowSize {
		cfg.MinSamples = cfg.WindowSize
	}

	p := s.Params()
	dm := &DriftMonitor{
		cfg:     cfg,
		names:   features.Names(),
		mean:    p.Mean,
		std:     p.Scale,
		window:  make([][]float64, features.Count),
		metrics: metrics,
	}
	for i := range dm.window {
		dm.window[i] = make([]float64, cfg.WindowSize)
	}
	return dm, nil
}

// Observe adds one served vector to the window.
func (dm *DriftMonitor) Observe(v features.Vector) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for i, x := range v {
		dm.window[i][dm.next] = x
	}
	dm.next = (dm.next + 1) % dm.cfg.WindowSize
	if dm.count < dm.cfg.WindowSize {
		dm.count++
	}
}

// Publish observes the features of a served prediction.
func (dm *DriftMonitor) Publish(ev PredictionEvent) {
	var v features.Vector
	for i, name := range dm.names {
		v[i] = ev.Features[name]
	}
	dm.Observe(v)
}

// Report scores every feature. Until MinSamples requests were seen scores are zero and
// Ready is false.
func (dm *DriftMonitor) Report() DriftReport {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	r := DriftReport{
		Samples:   dm.count,
		Threshold: dm.cfg.AlertThreshold,
		Ready:     dm.count >= dm.cfg.MinSamples,
		Features:  make([]FeatureDrift, len(dm.names)),
	}

	for i, name := range dm.names {
		fd := FeatureDrift{
			Feature:      name,
			BaselineMean: dm.mean[i],
			BaselineStd:  dm.std[i],
			Severity:     SeverityNone,
		}
		if r.Ready {
			fd.CurrentMean, fd.CurrentStd = stat.PopMeanStdDev(dm.window[i][:dm.count], nil)
			fd.Score = momentsScore(fd.BaselineMean, fd.BaselineStd, fd.CurrentMean, fd.CurrentStd)
			fd.Severity = severity(fd.Score, dm.cfg.AlertThreshold)
			if fd.Severity != SeverityNone {
				fd.Recommendation = recommendation(fd.Severity, name)
				r.Drifting++
			}
		}
		if dm.metrics != nil {
			dm.metrics.FeatureDriftSet(name, fd.Score)
		}
		r.Features[i] = fd
	}
	return r
}

// momentsScore averages the normalized shifts of mean and standard deviation.
func momentsScore(baseMean, baseStd, curMean, curStd float64) float64 {
	meanShift := math.Abs(baseMean-curMean) / (1 + math.Abs(baseMean))
	stdShift := math.Abs(baseStd-curStd) / (1 + baseStd)
	return (meanShift + stdShift) / 2
}

func severity(score, threshold float64) string {
	switch {
	case score > 3*threshold:
		return SeverityCritical
	case score > 2*threshold:
		return SeverityHigh
	case score > threshold:
		return SeverityMedium
	default:
		return SeverityNone
	}
}

func recommendation(severity, feature string) string {
	switch severity {
	case SeverityCritical:
		return fmt.Sprintf("CRITICAL: Feature '%s' shows severe drift. Retrain the model on recent patients.", feature)
	case SeverityHigh:
		return fmt.Sprintf("HIGH: Feature '%s' shows significant drift. Schedule model retraining.", feature)
	default:
		return fmt.Sprintf("MEDIUM: Feature '%s' shows moderate drift. Monitor closely.", feature)
	}
}
