package photon

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"strings"
)

// amplitudes below this are treated as exactly zero when sampling, so that
// rounding in H*H does not leak into matched-basis measurements.
const probEpsilon = 1e-12

// A qubit is a single-qubit pure state alpha|0> + beta|1>.
type qubit struct {
	alpha complex128
	beta  complex128
}

func (q *qubit) applyX() {
	q.alpha, q.beta = q.beta, q.alpha
}

func (q *qubit) applyHadamard() {
	// H = 1/√2 * [1  1]
	//           [1 -1]
	s := complex(math.Sqrt2/2, 0)
	q.alpha, q.beta = (q.alpha+q.beta)*s, (q.alpha-q.beta)*s
}

func (q qubit) probOne() float64 {
	p := math.Pow(cmplx.Abs(q.beta), 2)
	switch {
	case p < probEpsilon:
		return 0
	case p > 1-probEpsilon:
		return 1
	}
	return p
}

// A QubitChannel simulates each pulse as a qubit state vector, encoding with
// an X gate for bit 1 followed by H for the diagonal basis, and measuring
// with H for the diagonal basis followed by a computational basis readout.
type QubitChannel struct {
	rand *rand.Rand
}

// NewQubitChannel returns a QubitChannel drawing measurement outcomes from r.
func NewQubitChannel(r *rand.Rand) *QubitChannel {
	return &QubitChannel{rand: r}
}

// Encode implements Channel.
func (qc *QubitChannel) Encode(bit bool, basis Basis) (State, error) {
	if basis > Diagonal {
		return nil, fmt.Errorf("encoding in unknown basis %v", basis)
	}
	q := &qubit{alpha: 1}
	if bit {
		q.applyX()
	}
	if basis == Diagonal {
		q.applyHadamard()
	}
	return q, nil
}

// Measure implements Channel. The pulse is not consumed; measuring the same
// State twice samples it twice.
func (qc *QubitChannel) Measure(s State, basis Basis) (Outcome, error) {
	q, ok := s.(*qubit)
	if !ok {
		return Lost, ErrForeignState
	}
	if basis > Diagonal {
		return Lost, fmt.Errorf("measuring in unknown basis %v", basis)
	}
	c := *q
	if basis == Diagonal {
		c.applyHadamard()
	}
	return OutcomeOf(qc.rand.Float64() < c.probOne()), nil
}

// MeasureAll implements BatchMeasurer. The register is read out as a single
// bitstring with qubit 0 in the rightmost position, the way circuit
// simulators report counts, and is then put back into encode order.
func (qc *QubitChannel) MeasureAll(states []State, bases []Basis) ([]Outcome, error) {
	if len(states) != len(bases) {
		return nil, fmt.Errorf("measuring %d pulses in %d bases", len(states), len(bases))
	}
	readout, err := qc.readRegister(states, bases)
	if err != nil {
		return nil, err
	}
	n := len(readout)
	r := make([]Outcome, n)
	for i := 0; i < n; i++ {
		r[i] = OutcomeOf(readout[n-1-i] == '1')
	}
	return r, nil
}

func (qc *QubitChannel) readRegister(states []State, bases []Basis) (string, error) {
	var sb strings.Builder
	sb.Grow(len(states))
	for i := len(states) - 1; i >= 0; i-- {
		o, err := qc.Measure(states[i], bases[i])
		if err != nil {
			return "", fmt.Errorf("qubit %d: %w", i, err)
		}
		if o == One {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String(), nil
}
