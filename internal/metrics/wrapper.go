package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the predictor and server hooks
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc(label int) {
	w.m.PredictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) MLValidationFailuresInc(field string) {
	w.m.ValidationFailures.WithLabelValues(field).Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(p float64) {
	w.m.PredictionScores.Observe(p)
}

func (w *MetricsWrapper) MLModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *MetricsWrapper) FeatureDriftSet(feature string, score float64) {
	w.m.FeatureDrift.WithLabelValues(feature).Set(score)
}

func (w *MetricsWrapper) ObserveHTTPRequest(endpoint, method string, status int, seconds float64) {
	w.m.ObserveHTTPRequest(endpoint, method, status, seconds)
}

func (w *MetricsWrapper) FeedClients() MetricsGauge {
	return &GaugeWrapper{w.m.FeedClients}
}

func (w *MetricsWrapper) PredictionsRecorded() MetricsCounter {
	return &CounterWrapper{w.m.PredictionsRecorded}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
