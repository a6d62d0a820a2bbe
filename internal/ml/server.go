package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"heart-predictor/internal/common"
	"heart-predictor/internal/features"
)

const maxBodyBytes = 1 << 20

// PredictionEvent describes one served prediction.
type PredictionEvent struct {
	RequestID    string             `json:"request_id"`
	Timestamp    time.Time          `json:"timestamp"`
	Features     map[string]float64 `json:"features"`
	Prediction   int                `json:"prediction"`
	Probability  float64            `json:"disease_probability"`
	Diagnosis    string             `json:"diagnosis"`
	ModelVersion string             `json:"model_version,omitempty"`
	LatencyMs    float64            `json:"latency_ms"`
}

// PredictionRecorder persists served predictions.
type PredictionRecorder interface {
	RecordPrediction(ev PredictionEvent) error
}

// PredictionPublisher streams served predictions to live subscribers. Publish must not block.
type PredictionPublisher interface {
	Publish(ev PredictionEvent)
}

// Publishers fans an event out to several publishers.
type Publishers []PredictionPublisher

func (ps Publishers) Publish(ev PredictionEvent) {
	for _, p := range ps {
		p.Publish(ev)
	}
}

// DriftReporter reports input drift for GET /api/drift.
type DriftReporter interface {
	Report() DriftReport
}

// HTTPMetrics records per-endpoint request counts and latency.
type HTTPMetrics interface {
	ObserveHTTPRequest(endpoint, method string, status int, seconds float64)
}

// ServerOptions configures a ModelServer. Nil handlers and hooks are skipped.
type ServerOptions struct {
	Addr           string
	EnableCORS     bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	IndexHandler   http.Handler
	FeedHandler    http.Handler
	MetricsHandler http.Handler

	Recorder    PredictionRecorder
	Publisher   PredictionPublisher
	HTTPMetrics HTTPMetrics
	Drift       DriftReporter
}

// InfoResponse is the body of GET /api/info.
type InfoResponse struct {
	ModelName         string         `json:"model_name"`
	Algorithm         string         `json:"algorithm"`
	FeaturesCount     int            `json:"features_count"`
	Features          []string       `json:"features"`
	Version           string         `json:"version,omitempty"`
	TrainedAt         *time.Time     `json:"trained_at,omitempty"`
	TestAccuracy      float64        `json:"test_accuracy,omitempty"`
	FeatureImportance []FeatureStats `json:"feature_importance,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
}

type ctxKey int

const requestIDKey ctxKey = 0

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor PredictorInterface
	opts      ServerOptions
	handler   http.Handler
	server    *http.Server
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(predictor PredictorInterface, opts ServerOptions) *ModelServer {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	ms := &ModelServer{
		predictor: predictor,
		opts:      opts,
	}

	r := mux.NewRouter()
	r.Handle("/predict", ms.instrument("predict", ms.handlePredict)).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/info", ms.instrument("info", ms.handleInfo)).Methods(http.MethodGet)
	r.Handle("/health", ms.instrument("health", ms.handleHealth)).Methods(http.MethodGet)
	if opts.Drift != nil {
		r.Handle("/api/drift", ms.instrument("drift", ms.handleDrift)).Methods(http.MethodGet)
	}
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}
	if opts.FeedHandler != nil {
		r.Handle("/ws", opts.FeedHandler).Methods(http.MethodGet)
	}
	if opts.IndexHandler != nil {
		r.Handle("/", ms.instrument("index", opts.IndexHandler.ServeHTTP)).Methods(http.MethodGet)
	}
	r.NotFoundHandler = ms.instrument("not_found", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, common.ErrMsgNotFound)
	})
	r.MethodNotAllowedHandler = ms.instrument("method_not_allowed", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, common.ErrMsgMethodNotAllowed)
	})

	var h http.Handler = r
	if opts.EnableCORS {
		h = cors(h)
	}
	ms.handler = requestID(h)

	ms.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      ms.handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	return ms
}

// Handler returns the routed handler with middleware applied.
func (ms *ModelServer) Handler() http.Handler {
	return ms.handler
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed after Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Bool("model_loaded", ms.predictor.Available()).Msg("Starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// RequestIDFrom returns the request id assigned by the server.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	start := time.Now()
	id := RequestIDFrom(r.Context())

	if !ms.predictor.Available() {
		writeError(w, http.StatusInternalServerError, common.ErrMsgModelNotLoaded)
		return
	}

	in, err := decodeInput(w, r)
	if err != nil {
		log.Debug().Err(err).Str("request_id", id).Msg("Rejected malformed prediction request")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ms.opts.RequestTimeout)
	defer cancel()

	res, err := ms.predictor.Predict(ctx, in)
	if err != nil {
		status, msg := errorStatus(err)
		ev := log.Warn()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Str("request_id", id).Int("status", status).Msg("Prediction failed")
		writeError(w, status, msg)
		return
	}

	resp := FormatResponse(res)
	resp.RequestID = id
	writeJSON(w, http.StatusOK, resp)

	ms.emit(PredictionEvent{
		RequestID:    id,
		Timestamp:    time.Now().UTC(),
		Features:     res.Vector.Map(),
		Prediction:   res.Label,
		Probability:  resp.DiseaseProbability,
		Diagnosis:    resp.Diagnosis,
		ModelVersion: ms.modelVersion(),
		LatencyMs:    float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (ms *ModelServer) emit(ev PredictionEvent) {
	if ms.opts.Recorder != nil {
		if err := ms.opts.Recorder.RecordPrediction(ev); err != nil {
			log.Warn().Err(err).Str("request_id", ev.RequestID).Msg("Failed to record prediction")
		}
	}
	if ms.opts.Publisher != nil {
		ms.opts.Publisher.Publish(ev)
	}
}

func (ms *ModelServer) modelVersion() string {
	if a := ms.predictor.Artifacts(); a != nil {
		return a.Metadata.Version
	}
	return ""
}

// errorStatus maps a predictor error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	var verr *features.ValidationError
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return http.StatusInternalServerError, common.ErrMsgModelNotLoaded
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	default:
		return http.StatusInternalServerError, fmt.Sprintf("%s: %v", common.ErrMsgPrediction, err)
	}
}

// decodeInput reads a JSON or form-encoded body.
func decodeInput(w http.ResponseWriter, r *http.Request) (features.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return features.Input{}, fmt.Errorf("%s: %v", common.ErrMsgInvalidForm, err)
		}
		return features.InputFromForm(r.Form), nil
	}

	var in features.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return features.Input{}, fmt.Errorf("%s: %v", common.ErrMsgInvalidJSON, err)
	}
	return in, nil
}

func (ms *ModelServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := InfoResponse{
		ModelName: common.ModelName,
		Algorithm: common.Algorithm,
		Features:  []string{},
	}
	if a := ms.predictor.Artifacts(); a != nil {
		info.Features = a.FeatureNames
		info.FeaturesCount = len(a.FeatureNames)
		info.Version = a.Metadata.Version
		info.TestAccuracy = a.Metadata.TestAccuracy
		if !a.Metadata.TrainedAt.IsZero() {
			t := a.Metadata.TrainedAt
			info.TrainedAt = &t
		}
		info.FeatureImportance = FeatureImportance(a.Model, a.FeatureNames)
	}
	writeJSON(w, http.StatusOK, info)
}

func (ms *ModelServer) handleDrift(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ms.opts.Drift.Report())
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !ms.predictor.Available() {
		resp := HealthResponse{Status: "unavailable"}
		if err := ms.predictor.LoadErr(); err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		ModelLoaded: true,
		Version:     ms.modelVersion(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// instrument wraps h to report its status and latency under endpoint.
func (ms *ModelServer) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	if ms.opts.HTTPMetrics == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h.ServeHTTP(wrapped, r)
		ms.opts.HTTPMetrics.ObserveHTTPRequest(endpoint, r.Method, wrapped.statusCode, time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestID assigns every request a UUID, keeping a well-formed one supplied by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+common.RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", common.RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
