package ml

// Diagnosis strings returned to clients.
const (
	DiagnosisDisease   = "Heart Disease Detected"
	DiagnosisNoDisease = "No Heart Disease"
)

// PredictionResponse is the success body of POST /predict. Probabilities are percentages.
type PredictionResponse struct {
	Success              bool    `json:"success"`
	Prediction           int     `json:"prediction"`
	DiseaseProbability   float64 `json:"disease_probability"`
	NoDiseaseProbability float64 `json:"no_disease_probability"`
	Diagnosis            string  `json:"diagnosis"`
	Confidence           float64 `json:"confidence"`
	RequestID            string  `json:"request_id,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FormatResponse converts a result into the client-facing shape.
func FormatResponse(r Result) PredictionResponse {
	p1 := r.Probability
	p0 := r.NoDiseaseProbability()

	resp := PredictionResponse{
		Success:              true,
		Prediction:           r.Label,
		DiseaseProbability:   p1 * 100,
		NoDiseaseProbability: p0 * 100,
		Diagnosis:            DiagnosisNoDisease,
		Confidence:           max(p0, p1) * 100,
	}
	if r.Label == 1 {
		resp.Diagnosis = DiagnosisDisease
	}
	return resp
}
