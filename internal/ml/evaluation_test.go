package ml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_KnownConfusion(t *testing.T) {
	actual := []float64{0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	predicted := []int{0, 0, 0, 1, 1, 1, 1, 1, 0, 0}
	proba := []float64{0.1, 0.2, 0.3, 0.6, 0.9, 0.8, 0.7, 0.65, 0.4, 0.35}

	r, err := Evaluate(actual, predicted, proba)
	require.NoError(t, err)

	assert.Equal(t, [2][2]int{{3, 1}, {2, 4}}, r.Confusion)
	assert.InDelta(t, 0.7, r.Accuracy, 1e-12)

	assert.InDelta(t, 3.0/5, r.Classes[0].Precision, 1e-12)
	assert.InDelta(t, 3.0/4, r.Classes[0].Recall, 1e-12)
	assert.InDelta(t, 4.0/5, r.Classes[1].Precision, 1e-12)
	assert.InDelta(t, 4.0/6, r.Classes[1].Recall, 1e-12)
	assert.Equal(t, 4, r.Classes[0].Support)
	assert.Equal(t, 6, r.Classes[1].Support)

	f1 := func(p, r float64) float64 { return 2 * p * r / (p + r) }
	assert.InDelta(t, f1(0.8, 4.0/6), r.Classes[1].F1, 1e-12)
	assert.InDelta(t, (r.Classes[0].F1+r.Classes[1].F1)/2, r.Macro.F1, 1e-12)
	assert.InDelta(t, 0.4*r.Classes[0].Recall+0.6*r.Classes[1].Recall, r.Weighted.Recall, 1e-12)

	// Negatives 0.1 0.2 0.3 0.6; positives 0.35 0.4 0.65 0.7 0.8 0.9.
	// Pairs ranked correctly: 3*6 for the low negatives, 4 for 0.6.
	assert.InDelta(t, 22.0/24, r.AUC, 1e-12)
}

func TestEvaluate_AUCTiesCountHalf(t *testing.T) {
	r, err := Evaluate([]float64{0, 1}, []int{1, 1}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.AUC, 1e-12)
	assert.Equal(t, 0.0, r.Classes[0].Precision, "no class 0 predictions")
}

func TestEvaluate_SingleClassAUCIsZero(t *testing.T) {
	r, err := Evaluate([]float64{1, 1}, []int{1, 0}, []float64{0.9, 0.2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.AUC)
}

func TestEvaluate_Rejects(t *testing.T) {
	_, err := Evaluate(nil, nil, nil)
	assert.Error(t, err)
	_, err = Evaluate([]float64{0}, []int{0, 1}, []float64{0})
	assert.Error(t, err)
	_, err = Evaluate([]float64{2}, []int{0}, []float64{0})
	assert.Error(t, err)
}

func TestReport_String(t *testing.T) {
	r, err := Evaluate([]float64{0, 1, 1}, []int{0, 1, 0}, []float64{0.2, 0.9, 0.4})
	require.NoError(t, err)

	out := r.String()
	for _, want := range []string{"precision", "No Disease", "Disease", "macro avg", "weighted avg", "Confusion matrix", "ROC AUC"} {
		assert.True(t, strings.Contains(out, want), "report missing %q:\n%s", want, out)
	}
}
