package bb84

import (
	"fmt"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
)

// A Sifted holds the bits both parties keep after basis reconciliation.
type Sifted struct {
	// Mask is set wherever the parties' bases agreed (and, for rounds with
	// loss, Bob detected the pulse).
	Mask bitmap.Dense
	// Alice and Bob are the masked bits, in their original order.
	Alice bitmap.Dense
	Bob   bitmap.Dense
}

// Size returns the number of sifted bits.
func (s Sifted) Size() int {
	return s.Alice.Size()
}

// Sift compares the parties' bases position by position and keeps only
// the bits where they agree. It panics if the sequences differ in length.
func Sift(basisA, basisB, bitsA, bitsB bitmap.Dense) Sifted {
	n := basisA.Size()
	if basisB.Size() != n || bitsA.Size() != n || bitsB.Size() != n {
		panic(fmt.Sprintf("bb84: sifting sequences of unequal length: %d, %d, %d, %d",
			n, basisB.Size(), bitsA.Size(), bitsB.Size()))
	}
	return siftWith(bitmap.XNor(basisA, basisB), bitsA, bitsB)
}

// Sift sifts r, additionally dropping positions Bob never detected.
func (r Round) Sift() Sifted {
	if r.Lost.Size() != 0 && r.Lost.Size() != r.Size() {
		panic(fmt.Sprintf("bb84: loss mask of length %d for round of %d", r.Lost.Size(), r.Size()))
	}
	s := Sift(r.BasisA, r.BasisB, r.Bits, r.Outcomes)
	if r.Lost.Size() == 0 || bitmap.CountOnes(r.Lost) == 0 {
		return s
	}
	return siftWith(bitmap.And(s.Mask, bitmap.Not(r.Lost)), r.Bits, r.Outcomes)
}

func siftWith(mask, bitsA, bitsB bitmap.Dense) Sifted {
	return Sifted{
		Mask:  mask,
		Alice: bitmap.Select(bitsA, mask),
		Bob:   bitmap.Select(bitsB, mask),
	}
}
