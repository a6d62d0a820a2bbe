package features

import (
	"errors"
	"fmt"
)

// Validation error kinds, matched with errors.Is.
var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrOutOfRange    = errors.New("out of range")
	ErrInvalidEnum   = errors.New("invalid enum value")
)

// ValidationError rejects a request. Message is safe to return to the caller.
type ValidationError struct {
	Field   string
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

// Rule is the legal domain of one field: a closed interval when Allowed is empty,
// otherwise an enumeration.
type Rule struct {
	Field   string
	Min     float64
	Max     float64
	Allowed []float64
	Message string
}

// Check reports whether x satisfies the rule.
func (r Rule) Check(x float64) bool {
	if len(r.Allowed) == 0 {
		return x >= r.Min && x <= r.Max
	}
	for _, a := range r.Allowed {
		if x == a {
			return true
		}
	}
	return false
}

func (r Rule) kind() error {
	if len(r.Allowed) == 0 {
		return ErrOutOfRange
	}
	return ErrInvalidEnum
}

// rules are checked in this order; the first failure is reported.
// fbs, restecg, exang, oldpeak and slope are accepted as supplied.
var rules = []Rule{
	{Field: Age, Min: 20, Max: 100, Message: "Age must be between 20 and 100"},
	{Field: Sex, Allowed: []float64{0, 1}, Message: "Sex must be 0 (Female) or 1 (Male)"},
	{Field: CP, Allowed: []float64{0, 1, 2, 3}, Message: "Chest pain type must be 0-3"},
	{Field: Trestbps, Min: 80, Max: 200, Message: "Resting blood pressure must be between 80 and 200"},
	{Field: Chol, Min: 100, Max: 600, Message: "Cholesterol must be between 100 and 600"},
	{Field: Thalach, Min: 60, Max: 220, Message: "Max heart rate must be between 60 and 220"},
	{Field: CA, Allowed: []float64{0, 1, 2, 3, 4}, Message: "Major vessels must be 0-4"},
	{Field: Thal, Allowed: []float64{0, 1, 2, 3}, Message: "Thalassemia type must be 0-3"},
}

// Rules returns the validation rules in check order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Validate checks every field format, then every rule, and returns the first failure as a
// *ValidationError. It has no side effects.
func Validate(in Input) error {
	for _, n := range names {
		if v := in.Get(n); !v.Valid() {
			return &ValidationError{
				Field:   n,
				Kind:    ErrInvalidFormat,
				Message: fmt.Sprintf("Invalid input format: %s must be numeric", n),
			}
		}
	}
	for _, r := range rules {
		if !r.Check(in.Get(r.Field).Float()) {
			return &ValidationError{Field: r.Field, Kind: r.kind(), Message: r.Message}
		}
	}
	return nil
}
