package ml

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heart-predictor/internal/common"
	"heart-predictor/internal/features"
)

const referenceBody = `{"age":45,"sex":1,"cp":1,"trestbps":130,"chol":200,"fbs":0,"restecg":1,"thalach":150,"exang":0,"oldpeak":1.5,"slope":1,"ca":0,"thal":2}`

type captureHooks struct {
	mu       sync.Mutex
	recorded []PredictionEvent
	events   []PredictionEvent
	requests map[string]int
}

func (c *captureHooks) RecordPrediction(ev PredictionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded = append(c.recorded, ev)
	return nil
}

func (c *captureHooks) Publish(ev PredictionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureHooks) ObserveHTTPRequest(endpoint, method string, status int, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requests == nil {
		c.requests = make(map[string]int)
	}
	c.requests[endpoint+" "+method+" "+http.StatusText(status)]++
}

func newTestServer(t *testing.T, p PredictorInterface, hooks *captureHooks) http.Handler {
	t.Helper()
	opts := ServerOptions{EnableCORS: true}
	if hooks != nil {
		opts.Recorder = hooks
		opts.Publisher = hooks
		opts.HTTPMetrics = hooks
	}
	return NewModelServer(p, opts).Handler()
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestServer_PredictSuccess(t *testing.T) {
	hooks := &captureHooks{}
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), hooks)

	rec, body := do(t, h, http.MethodPost, "/predict", "application/json", referenceBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, true, body["success"])
	prediction := body["prediction"].(float64)
	assert.Contains(t, []float64{0, 1}, prediction)
	disease := body["disease_probability"].(float64)
	noDisease := body["no_disease_probability"].(float64)
	assert.InDelta(t, 100, disease+noDisease, 1e-9)
	assert.Equal(t, disease >= 50, prediction == 1)

	id := rec.Header().Get(common.RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, body["request_id"])

	require.Len(t, hooks.recorded, 1)
	require.Len(t, hooks.events, 1)
	assert.Equal(t, id, hooks.events[0].RequestID)
	assert.Equal(t, 45.0, hooks.events[0].Features[features.Age])
	assert.Equal(t, "20240101-000000", hooks.events[0].ModelVersion)
	assert.Equal(t, 1, hooks.requests["predict POST OK"])
}

func TestServer_PredictKeepsClientRequestID(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(referenceBody))
	req.Header.Set(common.RequestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(common.RequestIDHeader))
}

func TestServer_PredictForm(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)

	form := url.Values{}
	for name, v := range features.Build(referenceInput()).Map() {
		form.Set(name, strconv.FormatFloat(v, 'f', -1, 64))
	}
	rec, body := do(t, h, http.MethodPost, "/predict", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	_, jsonBody := do(t, h, http.MethodPost, "/predict", "application/json", referenceBody)
	assert.Equal(t, jsonBody["disease_probability"], body["disease_probability"])
}

func TestServer_PredictValidationFailure(t *testing.T) {
	hooks := &captureHooks{}
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), hooks)

	body := strings.Replace(referenceBody, `"age":45`, `"age":150`, 1)
	rec, out := do(t, h, http.MethodPost, "/predict", "application/json", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Age must be between 20 and 100", out["error"])
	assert.Empty(t, hooks.events)
	assert.Equal(t, 1, hooks.requests["predict POST Bad Request"])
}

func TestServer_PredictBadPayloads(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"age":`, common.ErrMsgInvalidJSON},
		{"empty body", ``, common.ErrMsgInvalidJSON},
		{"non numeric field", strings.Replace(referenceBody, `"chol":200`, `"chol":"high"`, 1), "Invalid input format: chol must be numeric"},
		{"hex string field", strings.Replace(referenceBody, `"age":45`, `"age":"0x2Dp0"`, 1), "Invalid input format: age must be numeric"},
		{"capitalized keys", strings.Replace(strings.Replace(referenceBody, `"age"`, `"Age"`, 1), `"sex"`, `"SEX"`, 1), "Age must be between 20 and 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPost, "/predict", "application/json", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.Contains(t, out["error"], tt.want)
		})
	}
}

func TestServer_PredictIgnoresCaseVariantKeys(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)

	body := strings.Replace(referenceBody, `"age":45`, `"age":45,"AGE":150`, 1)
	rec, out := do(t, h, http.MethodPost, "/predict", "application/json", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
}

func TestServer_PredictModelNotLoaded(t *testing.T) {
	h := newTestServer(t, LoadPredictor(t.TempDir(), nil), nil)

	rec, out := do(t, h, http.MethodPost, "/predict", "application/json", referenceBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, common.ErrMsgModelNotLoaded, out["error"])
	assert.Contains(t, out["error"], "not loaded")
}

func TestServer_PredictInferenceError(t *testing.T) {
	a := fixtureArtifacts(t)
	a.Model = nil
	h := newTestServer(t, NewPredictor(a, nil), nil)

	rec, out := do(t, h, http.MethodPost, "/predict", "application/json", referenceBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(out["error"].(string), "Error making prediction: "))
}

func TestServer_Info(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	rec, out := do(t, h, http.MethodGet, "/api/info", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.ModelName, out["model_name"])
	assert.Equal(t, common.Algorithm, out["algorithm"])
	assert.Equal(t, float64(features.Count), out["features_count"])
	assert.Len(t, out["features"], features.Count)
	assert.Equal(t, "20240101-000000", out["version"])
	assert.Len(t, out["feature_importance"], features.Count)
}

func TestServer_InfoUnloaded(t *testing.T) {
	h := newTestServer(t, LoadPredictor(t.TempDir(), nil), nil)
	rec, out := do(t, h, http.MethodGet, "/api/info", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, out["features_count"])
	assert.Equal(t, []any{}, out["features"])
}

func TestServer_Health(t *testing.T) {
	ok := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	rec, out := do(t, ok, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["model_loaded"])

	down := newTestServer(t, LoadPredictor(t.TempDir(), nil), nil)
	rec, out = do(t, down, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["model_loaded"])
	assert.NotEmpty(t, out["error"])
}

func TestServer_NotFound(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	rec, out := do(t, h, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Page not found", out["error"])
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	rec, _ := do(t, h, http.MethodGet, "/predict", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)

	rec, _ := do(t, h, http.MethodOptions, "/predict", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec, _ = do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_OptionalHandlers(t *testing.T) {
	index := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<form></form>"))
	})
	h := NewModelServer(NewPredictor(fixtureArtifacts(t), nil), ServerOptions{
		IndexHandler:   index,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	}).Handler()

	rec, _ := do(t, h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form>")

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, "# metrics", rec.Body.String())

	rec, _ = do(t, h, http.MethodGet, "/ws", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Drift(t *testing.T) {
	art := fixtureArtifacts(t)
	drift, err := NewDriftMonitor(art.Scaler, DriftConfig{WindowSize: 10, AlertThreshold: 0.1, MinSamples: 2}, nil)
	require.NoError(t, err)
	hooks := &captureHooks{}
	h := NewModelServer(NewPredictor(art, nil), ServerOptions{
		Publisher:   Publishers{hooks, drift},
		Drift:       drift,
		HTTPMetrics: hooks,
	}).Handler()

	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodPost, "/predict", "application/json", referenceBody)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := do(t, h, http.MethodGet, "/api/drift", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["samples"])
	assert.Equal(t, true, body["ready"])
	assert.Len(t, body["features"], features.Count)
	first := body["features"].([]any)[0].(map[string]any)
	assert.Equal(t, "age", first["feature"])
	assert.Equal(t, float64(45), first["current_mean"])

	hooks.mu.Lock()
	assert.Len(t, hooks.events, 3)
	assert.Equal(t, 1, hooks.requests["drift GET OK"])
	hooks.mu.Unlock()

	rec, _ = do(t, h, http.MethodPost, "/api/drift", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_DriftDisabled(t *testing.T) {
	h := newTestServer(t, NewPredictor(fixtureArtifacts(t), nil), nil)
	rec, _ := do(t, h, http.MethodGet, "/api/drift", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
