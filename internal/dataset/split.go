package dataset

import (
	"math"
	"math/rand"
)

// Split partitions 0..n-1 into training and validation indices. The
// validation set gets ceil(n*valFraction) indices. The same n, valFraction
// and seed always give the same partition.
func Split(n int, valFraction float64, seed int64) (train, val []int) {
	if n <= 0 {
		return nil, nil
	}
	// The epsilon keeps exact products like 100*0.2 from rounding up.
	nVal := int(math.Ceil(float64(n)*valFraction - 1e-9))
	if nVal < 0 {
		nVal = 0
	}
	if nVal > n {
		nVal = n
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	val = append([]int(nil), perm[:nVal]...)
	train = append([]int(nil), perm[nVal:]...)
	return train, val
}
