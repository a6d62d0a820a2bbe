// Package features defines the clinical feature vector consumed by the scaler and
// classifier, the request schema it is built from, and the validation rules that guard it.
//
// The canonical order of the 13 features is fixed: scaler and classifier parameters are
// positional and are meaningless if the order changes.
package features

// Count is the number of clinical features in a vector.
const Count = 13

// Canonical feature names.
const (
	Age      = "age"
	Sex      = "sex"
	CP       = "cp"
	Trestbps = "trestbps"
	Chol     = "chol"
	FBS      = "fbs"
	RestECG  = "restecg"
	Thalach  = "thalach"
	Exang    = "exang"
	Oldpeak  = "oldpeak"
	Slope    = "slope"
	CA       = "ca"
	Thal     = "thal"
)

var names = [Count]string{Age, Sex, CP, Trestbps, Chol, FBS, RestECG, Thalach, Exang, Oldpeak, Slope, CA, Thal}

// Names returns the feature names in canonical order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Index returns the canonical position of name, or -1 if it is not a feature.
func Index(name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Vector is a feature vector in canonical order.
type Vector [Count]float64

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i, n := range names {
		m[n] = v[i]
	}
	return m
}

// Build maps the input onto a vector in canonical order. It does not validate; callers
// serving requests should use Parse.
func Build(in Input) Vector {
	var v Vector
	for i, n := range names {
		v[i] = in.Get(n).Float()
	}
	return v
}

// Parse validates the input and builds its vector.
func Parse(in Input) (Vector, error) {
	if err := Validate(in); err != nil {
		return Vector{}, err
	}
	return Build(in), nil
}
