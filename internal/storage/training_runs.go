package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// TrainingRun summarizes one training run.
type TrainingRun struct {
	ID           string        `json:"id"`
	Version      string        `json:"version"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Source       string        `json:"source"`
	TrainingRows int           `json:"training_rows"`
	TestRows     int           `json:"test_rows"`
	Accuracy     float64       `json:"accuracy"`
	AUC          float64       `json:"roc_auc"`
	Iterations   int           `json:"iterations"`
	Converged    bool          `json:"converged"`
	Activated    bool          `json:"activated"`
}

// StoreTrainingRun stores a training run summary.
func (s *Store) StoreTrainingRun(run TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return s.put(trainingRunsBucket, recordKey(run.StartedAt, run.ID), run)
}

// ListTrainingRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListTrainingRuns(limit int) ([]TrainingRun, error) {
	var runs []TrainingRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(trainingRunsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run TrainingRun
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	return runs, err
}
