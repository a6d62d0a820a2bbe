package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FeatureStats ranks one feature.
type FeatureStats struct {
	Name string `json:"name"`
	// Weight is the classifier coefficient on the standardized feature.
	Weight          float64 `json:"weight"`
	ImportanceScore float64 `json:"importance_score"`
	// PermutationScore is the accuracy drop when the feature is shuffled. Zero unless
	// computed with PermutationImportance.
	PermutationScore float64 `json:"permutation_score"`
}

// FeatureImportance ranks features by absolute coefficient, most important first.
// Coefficients are on standardized inputs, so magnitudes are comparable.
func FeatureImportance(m *LogisticRegression, names []string) []FeatureStats {
	if m == nil {
		return nil
	}
	out := make([]FeatureStats, 0, len(m.weights))
	for i, w := range m.weights {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(names) {
			name = names[i]
		}
		out = append(out, FeatureStats{Name: name, Weight: w, ImportanceScore: math.Abs(w)})
	}
	sortStats(out)
	return out
}

// PermutationImportance measures the accuracy drop on scaled rows x when each column is
// shuffled in turn. The returned stats carry both the coefficient and the permutation score.
func PermutationImportance(m *LogisticRegression, names []string, x *mat.Dense, y []float64, seed int64) ([]FeatureStats, error) {
	rows, cols := x.Dims()
	if rows == 0 || rows != len(y) {
		return nil, fmt.Errorf("permutation importance: %d rows, %d labels", rows, len(y))
	}
	if cols != m.Width() {
		return nil, fmt.Errorf("permutation importance: model expects %d features, got %d", m.Width(), cols)
	}

	baseline, err := accuracy(m, x, y)
	if err != nil {
		return nil, err
	}

	stats := FeatureImportance(m, names)
	byName := make(map[string]*FeatureStats, len(stats))
	for i := range stats {
		byName[stats[i].Name] = &stats[i]
	}

	rng := rand.New(rand.NewSource(seed))
	permuted := mat.DenseCopyOf(x)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		rng.Shuffle(rows, func(a, b int) { col[a], col[b] = col[b], col[a] })
		permuted.SetCol(j, col)

		score, err := accuracy(m, permuted, y)
		if err != nil {
			return nil, err
		}
		mat.Col(col, j, x)
		permuted.SetCol(j, col)

		name := fmt.Sprintf("feature_%d", j)
		if j < len(names) {
			name = names[j]
		}
		if s, ok := byName[name]; ok {
			s.PermutationScore = baseline - score
		}
	}
	return stats, nil
}

// GetTopFeatures returns the names of the n most important features.
func GetTopFeatures(stats []FeatureStats, n int) []string {
	sorted := make([]FeatureStats, len(stats))
	copy(sorted, stats)
	sortStats(sorted)
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].Name
	}
	return out
}

func sortStats(s []FeatureStats) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].ImportanceScore > s[j].ImportanceScore
	})
}

func accuracy(m *LogisticRegression, x *mat.Dense, y []float64) (float64, error) {
	rows, _ := x.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		label, err := m.Predict(x.RawRowView(i))
		if err != nil {
			return 0, err
		}
		if float64(label) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}
