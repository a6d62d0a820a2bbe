// Package storage provides persistent storage for the heart disease prediction service.
// It uses BoltDB to keep a log of served predictions and the history of training runs.
//
// Records are JSON values keyed by a fixed-width nanosecond timestamp, so cursor order is
// time order and range queries are a single seek.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile = "heart-predictor.db"

	predictionsBucket  = "predictions"   // Bucket name for served predictions
	trainingRunsBucket = "training_runs" // Bucket name for training run summaries
)

// Counter is incremented once per stored prediction.
type Counter interface {
	Inc()
}

// Store provides persistent storage using BoltDB.
type Store struct {
	db       *bbolt.DB
	recorded Counter
}

// New opens (or creates) the database under dataPath and creates the buckets.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingRunsBucket)); err != nil {
			return fmt.Errorf("create training runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// WithRecordedCounter sets the counter incremented for every stored prediction.
func (s *Store) WithRecordedCounter(c Counter) *Store {
	s.recorded = c
	return s
}

// Close closes the database. Closing twice is safe.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey is the sortable key prefix for ts.
func timeKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

func recordKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), id))
}

func (s *Store) put(bucket string, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucket, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key, data)
	})
}

// scanRange calls fn for each value with a timestamp in [start, end], oldest first.
// Malformed records are skipped by the callers' unmarshal.
func (s *Store) scanRange(bucket string, start, end time.Time, fn func(v []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		endKey := timeKey(end)

		for k, v := c.Seek(timeKey(start)); k != nil; k, v = c.Next() {
			if bytes.Compare(k[:min(len(k), len(endKey))], endKey) > 0 {
				break
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteBefore removes every record older than cutoff and returns how many were removed.
func (s *Store) deleteBefore(bucket string, cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		limit := timeKey(cutoff)

		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:min(len(k), len(limit))], limit) < 0; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}
