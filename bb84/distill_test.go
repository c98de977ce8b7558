package bb84

import (
	"testing"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

func TestDistill(t *testing.T) {
	tcs := []struct {
		name       string
		alice, bob string
		disclosed  []int
		ea, eb     string
	}{
		{"nothing disclosed", "1011", "1001", nil, "1011", "1001"},
		{"ends", "1011 0", "1001 1", []int{0, 4}, "011", "001"},
		{"everything", "101", "101", []int{0, 1, 2}, "", ""},
		{"unsorted", "1100 1010 1", "1100 1010 1", []int{8, 1, 4}, "1000 10", "1000 10"},
		{"empty", "", "", []int{}, "", ""},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			a, b := Distill(mustDense(t, tc.alice), mustDense(t, tc.bob), tc.disclosed)
			if !bitmap.Equal(a, mustDense(t, tc.ea)) {
				t.Errorf("alice key == %v, want %v", a, tc.ea)
			}
			if !bitmap.Equal(b, mustDense(t, tc.eb)) {
				t.Errorf("bob key == %v, want %v", b, tc.eb)
			}
		})
	}
}

func TestDistillLength(t *testing.T) {
	src := rng.New(8)
	for _, m := range []int{1, 9, 100, 1000} {
		a, b := src.Bits(m), src.Bits(m)
		e := EstimateQBER(a, b, 0.2, src)
		ka, kb := Distill(a, b, e.Disclosed)
		if ka.Size() != m-len(e.Disclosed) || kb.Size() != ka.Size() {
			t.Errorf("m=%d: keys of %d and %d bits after disclosing %d", m, ka.Size(), kb.Size(), len(e.Disclosed))
		}
	}
}

func TestDistillIdempotent(t *testing.T) {
	src := rng.New(12)
	a, b := src.Bits(400), src.Bits(400)
	d := []int{3, 17, 200, 399}
	a1, b1 := Distill(a, b, d)
	a2, b2 := Distill(a, b, d)
	if !equalBytes(a1, a2) || !equalBytes(b1, b2) {
		t.Errorf("distilling the same inputs twice gave different keys")
	}
	if a.Size() != 400 {
		t.Errorf("Distill modified its input")
	}
}

func TestDistillOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Distill accepted index 4 of a 4-bit key")
		}
	}()
	Distill(mustDense(t, "1010"), mustDense(t, "1010"), []int{4})
}

func TestDistillRepeatedIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Distill accepted index 2 disclosed twice")
		}
	}()
	Distill(mustDense(t, "1010"), mustDense(t, "1010"), []int{2, 0, 2})
}
