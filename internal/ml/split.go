package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DefaultSeed is the split seed used when none is configured.
const DefaultSeed = 42

// StratifiedSplit partitions row indices into train and test sets so that each label keeps
// its proportion. The same labels, testSize and seed always produce the same split.
func StratifiedSplit(labels []float64, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	if len(labels) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", len(labels))
	}

	byClass := make(map[float64][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]float64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := int(math.Round(float64(len(idx)) * testSize))
		if n == 0 && len(idx) > 1 {
			n = 1
		}
		if n == len(idx) && n > 1 {
			n--
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split of %d rows at test size %v leaves an empty partition", len(labels), testSize)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}
