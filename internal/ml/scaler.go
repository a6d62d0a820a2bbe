package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minScale is ten times float64 machine epsilon; smaller deviations are treated as constant columns.
const minScale = 10 * 2.220446049250313e-16

// ScalerParams is the persisted form of a Scaler.
type ScalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Scaler standardizes feature vectors column by column. It is immutable once built.
type Scaler struct {
	mean  []float64
	scale []float64
}

// NewScaler builds a scaler from persisted parameters. Degenerate scales are replaced by 1
// so a loaded scaler transforms exactly like the one that was fitted.
func NewScaler(p ScalerParams) (*Scaler, error) {
	if len(p.Mean) == 0 {
		return nil, fmt.Errorf("scaler has no columns")
	}
	if len(p.Mean) != len(p.Scale) {
		return nil, fmt.Errorf("scaler mean has %d columns, scale has %d", len(p.Mean), len(p.Scale))
	}
	s := &Scaler{
		mean:  make([]float64, len(p.Mean)),
		scale: make([]float64, len(p.Scale)),
	}
	for i := range p.Mean {
		if math.IsNaN(p.Mean[i]) || math.IsInf(p.Mean[i], 0) {
			return nil, fmt.Errorf("scaler mean[%d] is not finite", i)
		}
		if math.IsNaN(p.Scale[i]) || math.IsInf(p.Scale[i], 0) {
			return nil, fmt.Errorf("scaler scale[%d] is not finite", i)
		}
		s.mean[i] = p.Mean[i]
		s.scale[i] = guardScale(p.Scale[i])
	}
	return s, nil
}

// FitScaler computes per-column means and population standard deviations of x.
func FitScaler(x *mat.Dense) (*Scaler, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty matrix")
	}
	s := &Scaler{
		mean:  make([]float64, cols),
		scale: make([]float64, cols),
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		m, sd := stat.PopMeanStdDev(col, nil)
		s.mean[j] = m
		s.scale[j] = guardScale(sd)
	}
	return s, nil
}

func guardScale(sd float64) float64 {
	if math.Abs(sd) < minScale {
		return 1
	}
	return sd
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int { return len(s.mean) }

// Transform returns the standardized copy of v.
func (s *Scaler) Transform(v []float64) ([]float64, error) {
	if len(v) != len(s.mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.mean), len(v))
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// TransformMatrix returns a standardized copy of x.
func (s *Scaler) TransformMatrix(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != len(s.mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.mean), cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, x)
	return out, nil
}

// Params returns a copy of the scaler parameters.
func (s *Scaler) Params() ScalerParams {
	p := ScalerParams{
		Mean:  make([]float64, len(s.mean)),
		Scale: make([]float64, len(s.scale)),
	}
	copy(p.Mean, s.mean)
	copy(p.Scale, s.scale)
	return p
}
