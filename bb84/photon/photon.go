// Package photon provides the quantum channel abstraction consumed by the BB84
// protocol, along with simulated implementations of it.
package photon

import (
	"errors"
	"fmt"
)

// A Basis is a choice of polarization basis.
type Basis uint8

const (
	// Rectilinear is the Z basis, encoded as 0.
	Rectilinear Basis = 0
	// Diagonal is the X basis, encoded as 1.
	Diagonal Basis = 1
)

// BasisOf maps a bit from a basis sequence to a Basis.
func BasisOf(bit bool) Basis {
	if bit {
		return Diagonal
	}
	return Rectilinear
}

func (b Basis) String() string {
	switch b {
	case Rectilinear:
		return "Z"
	case Diagonal:
		return "X"
	}
	return fmt.Sprintf("Basis(%d)", uint8(b))
}

// An Outcome is the result of measuring a single pulse.
type Outcome uint8

const (
	Zero Outcome = iota
	One
	// Lost marks a pulse which was never detected.
	Lost
)

// OutcomeOf maps a bit value to Zero or One.
func OutcomeOf(bit bool) Outcome {
	if bit {
		return One
	}
	return Zero
}

// Bit returns the bit value of o, and false for Lost.
func (o Outcome) Bit() bool {
	return o == One
}

func (o Outcome) String() string {
	switch o {
	case Zero:
		return "0"
	case One:
		return "1"
	case Lost:
		return "lost"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// A State is whatever a Channel uses to represent a pulse in flight. It is
// opaque to everything but the Channel which produced it.
type State interface{}

// ErrForeignState is returned when a Channel is asked to measure a State it
// did not produce.
var ErrForeignState = errors.New("photon: state was not produced by this channel")

// A Channel encodes bits into pulses and measures them.
//
// Conforming implementations guarantee that, absent noise, measuring in the
// encoding basis returns the encoded bit, and measuring in the other basis
// returns 0 or 1 with equal probability, independent of the encoded bit.
type Channel interface {
	// Encode prepares a pulse carrying bit in basis.
	Encode(bit bool, basis Basis) (State, error)

	// Measure detects a pulse in basis. Undetected pulses yield Lost rather
	// than an error; errors are reserved for failures of the channel itself.
	Measure(s State, basis Basis) (Outcome, error)
}

// A BatchMeasurer measures many pulses at once. Results must be in the same
// order as states, whatever order the implementation reads them out in.
type BatchMeasurer interface {
	MeasureAll(states []State, bases []Basis) ([]Outcome, error)
}
