// Package metrics provides Prometheus metrics collection for the heart disease prediction
// service. It covers per-prediction outcomes and latency, validation rejections, model
// state, HTTP traffic and the live prediction feed.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "heart"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   *prometheus.CounterVec // Successful predictions by label
	PredictionFailures prometheus.Counter     // Inference failures
	ValidationFailures *prometheus.CounterVec // Rejected requests by field
	PredictionLatency  prometheus.Histogram   // Pipeline latency in seconds
	PredictionScores   prometheus.Histogram   // Distribution of P(heart disease)

	// Model metrics
	ModelAge     prometheus.Gauge     // Seconds since the served model was trained
	ModelLoaded  prometheus.Gauge     // 1 when artifacts are loaded
	FeatureDrift *prometheus.GaugeVec // Input drift score by feature

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by endpoint, method and status
	HTTPDuration *prometheus.HistogramVec // Request latency by endpoint and method

	// Side channels
	FeedClients         prometheus.Gauge   // Connected websocket clients
	PredictionsRecorded prometheus.Counter // Predictions written to the log
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of successful predictions by predicted label",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of predictions that failed during inference",
		}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of requests rejected by validation, by field",
		}, []string{"field"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Latency of the scale and classify pipeline in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_probability",
			Help:      "Distribution of predicted heart disease probability",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_age_seconds",
			Help:      "Seconds since the served model was trained",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when model artifacts are loaded, 0 otherwise",
		}),
		FeatureDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feature_drift_score",
			Help:      "Drift of recent request features from the training distribution",
		}, []string{"feature"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"endpoint", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Number of connected prediction feed clients",
		}),
		PredictionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_recorded_total",
			Help:      "Total number of predictions written to the prediction log",
		}),
	}
}

// SetModelLoaded updates the model loaded gauge.
func (m *Metrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoaded.Set(1)
		return
	}
	m.ModelLoaded.Set(0)
}

// ObserveHTTPRequest records one finished HTTP request.
func (m *Metrics) ObserveHTTPRequest(endpoint, method string, status int, seconds float64) {
	m.HTTPRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(endpoint, method).Observe(seconds)
}
