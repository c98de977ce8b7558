package bb84

import (
	"fmt"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
)

// Distill drops the disclosed positions from both sifted keys, preserving
// order, and returns what remains. It panics on an out-of-range or repeated
// index.
func Distill(alice, bob bitmap.Dense, disclosed []int) (aliceKey, bobKey bitmap.Dense) {
	m := alice.Size()
	if bob.Size() != m {
		panic(fmt.Sprintf("bb84: distilling unequal keys: %d != %d", m, bob.Size()))
	}
	keep := bitmap.Not(bitmap.NewDense(nil, m))
	for _, i := range disclosed {
		if i < 0 || i >= m {
			panic(fmt.Sprintf("bb84: disclosed index %d outside [0, %d)", i, m))
		}
		if !keep.Get(i) {
			panic(fmt.Sprintf("bb84: disclosed index %d repeated", i))
		}
		keep.Set(i, false)
	}
	return bitmap.Select(alice, keep), bitmap.Select(bob, keep)
}
