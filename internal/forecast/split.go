package forecast

import (
	"math"
	"math/rand"
)

// Split shuffles the indices 0..n-1 with seed and returns the train and
// test index sets. The test set holds ceil(testSize*n) samples, capped so
// that at least one sample is left for training.
func Split(n int, testSize float64, seed int64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}
