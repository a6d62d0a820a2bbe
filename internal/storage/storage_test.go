package storage

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heart-predictor/internal/features"
	"heart-predictor/internal/ml"
)

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, "heart-predictor.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := New(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.FileExists(t, filepath.Join(dir, "heart-predictor.db"))
}

func TestNew_InvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(file)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestPredictions_RangeQuery(t *testing.T) {
	store := newTestStore(t)
	counter := &countingCounter{}
	store.WithRecordedCounter(counter)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.StorePrediction(PredictionRecord{
			RequestID:   "req",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Prediction:  i % 2,
			Probability: float64(i) / 10,
		}))
	}
	assert.Equal(t, 5, counter.n)

	got, err := store.GetPredictionsInRange(base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.True(t, rec.Timestamp.Equal(base.Add(time.Duration(i+1)*time.Minute)))
		assert.NotEmpty(t, rec.ID)
	}

	n, err := store.CountPredictions()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPredictions_SameTimestampKeepsBoth(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.StorePrediction(PredictionRecord{Timestamp: ts, RequestID: "a"}))
	require.NoError(t, store.StorePrediction(PredictionRecord{Timestamp: ts, RequestID: "b"}))

	got, err := store.GetPredictionsInRange(ts, ts)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecordPrediction_FromEvent(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().UTC()
	ev := ml.PredictionEvent{
		RequestID:    "7c4e9d7a-1111-4a4a-8b8b-000000000000",
		Timestamp:    ts,
		Features:     features.Vector{45, 1, 1, 130, 200, 0, 1, 150, 0, 1.5, 1, 0, 2}.Map(),
		Prediction:   1,
		Probability:  71.5,
		Diagnosis:    ml.DiagnosisDisease,
		ModelVersion: "v1",
	}
	require.NoError(t, store.RecordPrediction(ev))

	got, err := store.GetPredictionsInRange(ts.Add(-time.Second), ts.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.RequestID, got[0].RequestID)
	assert.Equal(t, 150.0, got[0].Features[features.Thalach])
	assert.Equal(t, ml.DiagnosisDisease, got[0].Diagnosis)
}

func TestPrunePredictions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, store.StorePrediction(PredictionRecord{Timestamp: base.AddDate(0, 0, i)}))
	}

	removed, err := store.PrunePredictions(base.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	n, err := store.CountPredictions()
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestExportPredictionsCSV(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.StorePrediction(PredictionRecord{
		RequestID:   "r1",
		Timestamp:   ts,
		Features:    features.Vector{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1}.Map(),
		Prediction:  0,
		Probability: 12.3456,
		Diagnosis:   ml.DiagnosisNoDisease,
	}))

	var buf bytes.Buffer
	n, err := store.ExportPredictionsCSV(&buf, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "timestamp", rows[0][0])
	assert.Equal(t, features.Names(), rows[0][2:2+features.Count])
	assert.Equal(t, "63", rows[1][2])
	assert.Equal(t, "2.3", rows[1][2+features.Index(features.Oldpeak)])
	assert.Equal(t, "12.3456", rows[1][2+features.Count+1])
	assert.Equal(t, ml.DiagnosisNoDisease, rows[1][2+features.Count+2])
}

func TestTrainingRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []string{"a", "b", "c"} {
		require.NoError(t, store.StoreTrainingRun(TrainingRun{
			Version:   v,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Accuracy:  0.8,
		}))
	}

	runs, err := store.ListTrainingRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Version)
	assert.Equal(t, "b", runs[1].Version)

	all, err := store.ListTrainingRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
