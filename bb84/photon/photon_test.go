package photon

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// channelsUnderTest builds each Channel implementation from a seeded source.
var channelsUnderTest = []struct {
	name string
	mk   func(r *rand.Rand) Channel
}{
	{"simulated", func(r *rand.Rand) Channel { return NewSimulatedChannel(r) }},
	{"qubit", func(r *rand.Rand) Channel { return NewQubitChannel(r) }},
}

func TestMatchedBasisRoundTrip(t *testing.T) {
	for _, cut := range channelsUnderTest {
		t.Run(cut.name, func(t *testing.T) {
			ch := cut.mk(rand.New(rand.NewSource(1)))
			for _, basis := range []Basis{Rectilinear, Diagonal} {
				for _, bit := range []bool{false, true} {
					for i := 0; i < 200; i++ {
						s, err := ch.Encode(bit, basis)
						if err != nil {
							t.Fatalf("Encode(%v, %v): %v", bit, basis, err)
						}
						o, err := ch.Measure(s, basis)
						if err != nil {
							t.Fatalf("Measure: %v", err)
						}
						if o != OutcomeOf(bit) {
							t.Fatalf("Measure(Encode(%v, %v), %v) == %v", bit, basis, basis, o)
						}
					}
				}
			}
		})
	}
}

func TestMismatchedBasisUnbiased(t *testing.T) {
	const trials = 20000
	for _, cut := range channelsUnderTest {
		t.Run(cut.name, func(t *testing.T) {
			ch := cut.mk(rand.New(rand.NewSource(2)))
			for _, bit := range []bool{false, true} {
				ones := 0
				for i := 0; i < trials; i++ {
					s, err := ch.Encode(bit, Rectilinear)
					if err != nil {
						t.Fatalf("Encode: %v", err)
					}
					o, err := ch.Measure(s, Diagonal)
					if err != nil {
						t.Fatalf("Measure: %v", err)
					}
					if o == One {
						ones++
					}
				}
				frac := float64(ones) / trials
				if math.Abs(frac-0.5) > 0.02 {
					t.Errorf("bit %v measured in the wrong basis gave 1 with frequency %f", bit, frac)
				}
			}
		})
	}
}

func TestForeignState(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	sim, q := NewSimulatedChannel(r), NewQubitChannel(r)
	s, err := q.Encode(true, Rectilinear)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := sim.Measure(s, Rectilinear); !errors.Is(err, ErrForeignState) {
		t.Errorf("simulated channel accepted a qubit state: %v", err)
	}
	s, err = sim.Encode(true, Rectilinear)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := q.Measure(s, Rectilinear); !errors.Is(err, ErrForeignState) {
		t.Errorf("qubit channel accepted a simulated pulse: %v", err)
	}
}

func TestUnknownBasis(t *testing.T) {
	for _, cut := range channelsUnderTest {
		t.Run(cut.name, func(t *testing.T) {
			ch := cut.mk(rand.New(rand.NewSource(4)))
			if _, err := ch.Encode(false, Basis(7)); err == nil {
				t.Errorf("Encode accepted basis 7")
			}
			s, _ := ch.Encode(false, Rectilinear)
			if _, err := ch.Measure(s, Basis(7)); err == nil {
				t.Errorf("Measure accepted basis 7")
			}
		})
	}
}

func TestSimulatedNoise(t *testing.T) {
	const trials = 20000
	sc := NewSimulatedChannel(rand.New(rand.NewSource(5)))
	sc.ErrorRate = 0.1
	sc.LossRate = 0.2
	var lost, flipped int
	for i := 0; i < trials; i++ {
		s, _ := sc.Encode(false, Diagonal)
		o, err := sc.Measure(s, Diagonal)
		if err != nil {
			t.Fatalf("Measure: %v", err)
		}
		switch o {
		case Lost:
			lost++
		case One:
			flipped++
		}
	}
	if got := float64(lost) / trials; math.Abs(got-0.2) > 0.02 {
		t.Errorf("loss frequency %f, want about 0.2", got)
	}
	if got := float64(flipped) / float64(trials-lost); math.Abs(got-0.1) > 0.02 {
		t.Errorf("error frequency %f, want about 0.1", got)
	}
}

func TestMeasureAllEncodeOrder(t *testing.T) {
	qc := NewQubitChannel(rand.New(rand.NewSource(6)))
	bits := []bool{true, false, false, true, true, false, true, true, false}
	var states []State
	var bases []Basis
	for i, b := range bits {
		basis := BasisOf(i%2 == 1)
		s, err := qc.Encode(b, basis)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		states = append(states, s)
		bases = append(bases, basis)
	}
	out, err := qc.MeasureAll(states, bases)
	if err != nil {
		t.Fatalf("MeasureAll: %v", err)
	}
	if len(out) != len(bits) {
		t.Fatalf("got %d outcomes, want %d", len(out), len(bits))
	}
	for i, b := range bits {
		if out[i] != OutcomeOf(b) {
			t.Errorf("position %d: got %v, want %v", i, out[i], OutcomeOf(b))
		}
	}
	if _, err := qc.MeasureAll(states, bases[:2]); err == nil {
		t.Errorf("MeasureAll accepted mismatched lengths")
	}
}

func TestEavesdropperDisturbance(t *testing.T) {
	const trials = 20000
	r := rand.New(rand.NewSource(8))
	eve := NewEavesdropper(NewSimulatedChannel(r), 1, r)
	errs := 0
	for i := 0; i < trials; i++ {
		bit := i%3 == 0
		basis := BasisOf(i%2 == 0)
		s, err := eve.Encode(bit, basis)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		o, err := eve.Measure(s, basis)
		if err != nil {
			t.Fatalf("Measure: %v", err)
		}
		if o != OutcomeOf(bit) {
			errs++
		}
	}
	if eve.Intercepted() != trials {
		t.Errorf("intercepted %d of %d pulses", eve.Intercepted(), trials)
	}
	if got := float64(errs) / trials; math.Abs(got-0.25) > 0.02 {
		t.Errorf("matched-basis error rate under full interception %f, want about 0.25", got)
	}
}

func TestEavesdropperIdle(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	eve := NewEavesdropper(NewQubitChannel(r), 0, r)
	for i := 0; i < 100; i++ {
		s, _ := eve.Encode(true, Diagonal)
		if o, _ := eve.Measure(s, Diagonal); o != One {
			t.Fatalf("idle eavesdropper disturbed pulse %d", i)
		}
	}
	if eve.Intercepted() != 0 {
		t.Errorf("idle eavesdropper intercepted %d pulses", eve.Intercepted())
	}
}

func TestStringers(t *testing.T) {
	if Rectilinear.String() != "Z" || Diagonal.String() != "X" {
		t.Errorf("basis names: %v %v", Rectilinear, Diagonal)
	}
	if Lost.String() != "lost" || One.String() != "1" || Zero.String() != "0" {
		t.Errorf("outcome names: %v %v %v", Zero, One, Lost)
	}
	if Lost.Bit() {
		t.Errorf("Lost.Bit() == true")
	}
}

func TestNoisyQubitChannel(t *testing.T) {
	const trials = 20000
	r := rand.New(rand.NewSource(10))
	n := NewNoisy(NewQubitChannel(r), 0.05, 0.3, r)
	var lost, flipped int
	for i := 0; i < trials; i++ {
		s, err := n.Encode(true, Rectilinear)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		o, err := n.Measure(s, Rectilinear)
		if err != nil {
			t.Fatalf("Measure: %v", err)
		}
		switch o {
		case Lost:
			lost++
		case Zero:
			flipped++
		}
	}
	if got := float64(lost) / trials; math.Abs(got-0.3) > 0.02 {
		t.Errorf("loss frequency %f, want about 0.3", got)
	}
	if got := float64(flipped) / float64(trials-lost); math.Abs(got-0.05) > 0.015 {
		t.Errorf("error frequency %f, want about 0.05", got)
	}
}

func TestNoisyPropagatesErrors(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	n := NewNoisy(NewSimulatedChannel(r), 0, 0, r)
	if _, err := n.Measure("not a pulse", Rectilinear); !errors.Is(err, ErrForeignState) {
		t.Errorf("got %v, want ErrForeignState", err)
	}
}
