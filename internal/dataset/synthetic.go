package dataset

import (
	"math/rand"

	"heart-predictor/internal/features"
)

// intRange is a half-open integer interval [lo, hi).
type intRange struct{ lo, hi int }

// syntheticRanges holds half-open integer ranges keyed by feature name. Rows are drawn by
// walking the features in canonical order. oldpeak is drawn uniformly from [0, 6.2) and is
// not listed.
var syntheticRanges = map[string]intRange{
	features.Age:      {29, 77},
	features.Sex:      {0, 2},
	features.CP:       {0, 4},
	features.Trestbps: {94, 200},
	features.Chol:     {126, 564},
	features.FBS:      {0, 2},
	features.RestECG:  {0, 3},
	features.Thalach:  {60, 203},
	features.Exang:    {0, 2},
	features.Slope:    {0, 3},
	features.CA:       {0, 5},
	features.Thal:     {0, 4},
}

const maxOldpeak = 6.2

// Synthetic generates n random records with uniformly random labels. It is the fallback
// when the UCI file cannot be fetched, so a model trained on it is for demonstration only.
func Synthetic(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	names := features.Names()

	ds := &Dataset{
		Rows:   make([][]float64, n),
		Labels: make([]float64, n),
		Source: "synthetic",
	}
	for i := 0; i < n; i++ {
		row := make([]float64, features.Count)
		for j, name := range names {
			if name == features.Oldpeak {
				row[j] = rng.Float64() * maxOldpeak
				continue
			}
			r := syntheticRanges[name]
			row[j] = float64(r.lo + rng.Intn(r.hi-r.lo))
		}
		ds.Rows[i] = row
		ds.Labels[i] = float64(rng.Intn(2))
	}
	return ds
}
