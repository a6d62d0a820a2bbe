package ml

import (
	"fmt"
	"sort"
	"strings"
)

// ClassMetrics holds per-class scores.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the held-out evaluation of a classifier.
type Report struct {
	Accuracy float64 `json:"accuracy"`
	// Classes is indexed by label: 0 no disease, 1 disease.
	Classes  [2]ClassMetrics `json:"classes"`
	Macro    ClassMetrics    `json:"macro_avg"`
	Weighted ClassMetrics    `json:"weighted_avg"`
	// Confusion[actual][predicted]
	Confusion [2][2]int `json:"confusion_matrix"`
	AUC       float64   `json:"roc_auc"`
	Samples   int       `json:"samples"`
}

// Evaluate scores predicted labels and class 1 probabilities against the true labels.
func Evaluate(actual []float64, predicted []int, proba []float64) (Report, error) {
	n := len(actual)
	if n == 0 {
		return Report{}, fmt.Errorf("no samples to evaluate")
	}
	if len(predicted) != n || len(proba) != n {
		return Report{}, fmt.Errorf("evaluate: %d labels, %d predictions, %d probabilities", n, len(predicted), len(proba))
	}

	var r Report
	r.Samples = n
	correct := 0
	for i := range actual {
		a := int(actual[i])
		p := predicted[i]
		if a < 0 || a > 1 || p < 0 || p > 1 {
			return Report{}, fmt.Errorf("evaluate: non-binary label at row %d", i)
		}
		r.Confusion[a][p]++
		if a == p {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(n)

	for c := 0; c < 2; c++ {
		tp := r.Confusion[c][c]
		predictedC := r.Confusion[0][c] + r.Confusion[1][c]
		actualC := r.Confusion[c][0] + r.Confusion[c][1]
		m := ClassMetrics{
			Precision: ratio(tp, predictedC),
			Recall:    ratio(tp, actualC),
			Support:   actualC,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m

		r.Macro.Precision += m.Precision / 2
		r.Macro.Recall += m.Recall / 2
		r.Macro.F1 += m.F1 / 2

		w := float64(actualC) / float64(n)
		r.Weighted.Precision += m.Precision * w
		r.Weighted.Recall += m.Recall * w
		r.Weighted.F1 += m.F1 * w
	}
	r.Macro.Support = n
	r.Weighted.Support = n
	r.AUC = rocAUC(actual, proba)
	return r, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// rocAUC is the Mann-Whitney estimate with ties counted as one half. It is 0 when only
// one class is present.
func rocAUC(actual, proba []float64) float64 {
	type scored struct {
		p float64
		y float64
	}
	s := make([]scored, len(actual))
	var pos, neg float64
	for i := range actual {
		s[i] = scored{p: proba[i], y: actual[i]}
		if actual[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	sort.Slice(s, func(i, j int) bool { return s[i].p < s[j].p })

	// Sum of positive ranks, averaging ranks over ties.
	var rankSum float64
	for i := 0; i < len(s); {
		j := i
		for j < len(s) && s[j].p == s[i].p {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if s[k].y == 1 {
				rankSum += avg
			}
		}
		i = j
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

var classNames = [2]string{"No Disease", "Disease"}

// String renders a classification report and confusion matrix.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for c, m := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", classNames[c], m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Samples)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "macro avg", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Macro.Support)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "weighted avg", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Weighted.Support)
	b.WriteString("\nConfusion matrix (rows actual, columns predicted):\n")
	fmt.Fprintf(&b, "%14s %10s %10s\n", "", classNames[0], classNames[1])
	for a := 0; a < 2; a++ {
		fmt.Fprintf(&b, "%14s %10d %10d\n", classNames[a], r.Confusion[a][0], r.Confusion[a][1])
	}
	fmt.Fprintf(&b, "\nROC AUC: %.4f\n", r.AUC)
	return b.String()
}
