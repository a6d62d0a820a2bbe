package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"heart-predictor/internal/features"
	"heart-predictor/internal/ml"
)

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID           string             `json:"id"`
	RequestID    string             `json:"request_id"`
	Timestamp    time.Time          `json:"timestamp"`
	Features     map[string]float64 `json:"features"`
	Prediction   int                `json:"prediction"`
	Probability  float64            `json:"disease_probability"`
	Diagnosis    string             `json:"diagnosis"`
	ModelVersion string             `json:"model_version,omitempty"`
	LatencyMs    float64            `json:"latency_ms"`
}

// StorePrediction stores a prediction record. A missing ID or timestamp is filled in.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := s.put(predictionsBucket, recordKey(rec.Timestamp, rec.ID), rec); err != nil {
		return err
	}
	if s.recorded != nil {
		s.recorded.Inc()
	}
	return nil
}

// RecordPrediction stores a served prediction event.
func (s *Store) RecordPrediction(ev ml.PredictionEvent) error {
	return s.StorePrediction(PredictionRecord{
		RequestID:    ev.RequestID,
		Timestamp:    ev.Timestamp,
		Features:     ev.Features,
		Prediction:   ev.Prediction,
		Probability:  ev.Probability,
		Diagnosis:    ev.Diagnosis,
		ModelVersion: ev.ModelVersion,
		LatencyMs:    ev.LatencyMs,
	})
}

// GetPredictionsInRange returns predictions with start <= timestamp <= end, oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := s.scanRange(predictionsBucket, start, end, func(v []byte) error {
		var rec PredictionRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil // Skip malformed records
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// CountPredictions returns the number of stored predictions.
func (s *Store) CountPredictions() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// PrunePredictions deletes predictions older than cutoff.
func (s *Store) PrunePredictions(cutoff time.Time) (int, error) {
	return s.deleteBefore(predictionsBucket, cutoff)
}

// ExportPredictionsCSV writes predictions in [start, end] as CSV with one column per feature
// in canonical order. It returns the number of rows written.
func (s *Store) ExportPredictionsCSV(w io.Writer, start, end time.Time) (int, error) {
	records, err := s.GetPredictionsInRange(start, end)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	header := []string{"timestamp", "request_id"}
	header = append(header, features.Names()...)
	header = append(header, "prediction", "disease_probability", "diagnosis", "model_version")
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		row := []string{rec.Timestamp.Format(time.RFC3339Nano), rec.RequestID}
		for _, name := range features.Names() {
			row = append(row, strconv.FormatFloat(rec.Features[name], 'f', -1, 64))
		}
		row = append(row,
			strconv.Itoa(rec.Prediction),
			strconv.FormatFloat(rec.Probability, 'f', 4, 64),
			rec.Diagnosis,
			rec.ModelVersion,
		)
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(records), nil
}
