package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu                 sync.Mutex
	predictions        map[int]int
	failures           int
	validationFailures map[string]int
	latencySum         float64
	latencyCount       int
	modelAge           float64
	predictionScores   []float64
}

func (m *MockMetrics) MLPredictionsInc(label int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[int]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLValidationFailuresInc(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validationFailures == nil {
		m.validationFailures = make(map[string]int)
	}
	m.validationFailures[field]++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) totalPredictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.predictions {
		n += c
	}
	return n
}
