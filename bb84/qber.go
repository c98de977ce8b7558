package bb84

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

// An Estimate is the outcome of publicly comparing a random sample of the
// sifted key.
type Estimate struct {
	// QBER is Mismatches/Sample, or NaN if nothing was sifted.
	QBER float64
	// Disclosed are the sampled positions in the sifted key, ascending.
	Disclosed  []int
	Mismatches int
	Sample     int
}

// Empty reports whether e was computed over no bits at all.
func (e Estimate) Empty() bool {
	return e.Sample == 0
}

// Bounds returns a two-sided Clopper-Pearson interval on the channel's true
// error rate at the given confidence, e.g. 0.95. Both bounds are NaN for an
// empty estimate.
func (e Estimate) Bounds(confidence float64) (lo, hi float64) {
	if e.Empty() {
		return math.NaN(), math.NaN()
	}
	return ErrorRateBounds(e.Mismatches, e.Sample, confidence)
}

// SampleSize returns how many of m sifted bits are disclosed for a sampling
// fraction frac: ceil(frac*m), at least one, at most m.
func SampleSize(m int, frac float64) int {
	if m <= 0 {
		return 0
	}
	p := frac * float64(m)
	// 0.07*100 is 7.000000000000001; snap so it does not round up to 8.
	if r := math.Round(p); math.Abs(p-r) < 1e-9 {
		p = r
	}
	k := int(math.Ceil(p))
	if k < 1 {
		k = 1
	}
	if k > m {
		k = m
	}
	return k
}

// EstimateQBER discloses a random SampleSize(m, sampleFrac) subset of the
// sifted bits, drawn from src, and compares the two sides there. It panics
// if the inputs differ in length or sampleFrac is outside (0, 1].
func EstimateQBER(alice, bob bitmap.Dense, sampleFrac float64, src *rng.Source) Estimate {
	if alice.Size() != bob.Size() {
		panic(fmt.Sprintf("bb84: estimating QBER over unequal keys: %d != %d", alice.Size(), bob.Size()))
	}
	if !(sampleFrac > 0 && sampleFrac <= 1) {
		panic(fmt.Sprintf("bb84: sample fraction %v outside (0, 1]", sampleFrac))
	}
	m := alice.Size()
	if m == 0 {
		return Estimate{QBER: math.NaN(), Disclosed: []int{}}
	}
	k := SampleSize(m, sampleFrac)
	idx := src.Sample(m, k)
	mismatches := 0
	for _, i := range idx {
		if alice.Get(i) != bob.Get(i) {
			mismatches++
		}
	}
	return Estimate{
		QBER:       float64(mismatches) / float64(k),
		Disclosed:  idx,
		Mismatches: mismatches,
		Sample:     k,
	}
}

// ErrorRateBounds returns the Clopper-Pearson interval for a binomial
// proportion after observing errs errors in n trials.
func ErrorRateBounds(errs, n int, confidence float64) (lo, hi float64) {
	if n <= 0 || errs < 0 || errs > n {
		return math.NaN(), math.NaN()
	}
	alpha := 1 - confidence
	lo, hi = 0, 1
	if errs > 0 {
		lo = distuv.Beta{Alpha: float64(errs), Beta: float64(n - errs + 1)}.Quantile(alpha / 2)
	}
	if errs < n {
		hi = distuv.Beta{Alpha: float64(errs + 1), Beta: float64(n - errs)}.Quantile(1 - alpha/2)
	}
	return lo, hi
}
