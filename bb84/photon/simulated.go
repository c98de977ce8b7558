package photon

import (
	"fmt"
	"math/rand"
)

// A SimulatedChannel models a quantum channel classically. Pulses remember
// their bit and basis; measuring in a different basis flips a fair coin.
//
// The zero ErrorRate and LossRate give a noiseless, lossless channel.
type SimulatedChannel struct {
	// ErrorRate is the probability that a pulse measured in its encoding
	// basis is read with the wrong value.
	ErrorRate float64
	// LossRate is the probability that a pulse is never detected.
	LossRate float64

	rand *rand.Rand
}

type pulse struct {
	bit   bool
	basis Basis
}

// NewSimulatedChannel returns a noiseless SimulatedChannel drawing from r.
func NewSimulatedChannel(r *rand.Rand) *SimulatedChannel {
	return &SimulatedChannel{rand: r}
}

// Encode implements Channel.
func (sc *SimulatedChannel) Encode(bit bool, basis Basis) (State, error) {
	if basis > Diagonal {
		return nil, fmt.Errorf("encoding in unknown basis %v", basis)
	}
	return pulse{bit: bit, basis: basis}, nil
}

// Measure implements Channel.
func (sc *SimulatedChannel) Measure(s State, basis Basis) (Outcome, error) {
	p, ok := s.(pulse)
	if !ok {
		return Lost, ErrForeignState
	}
	if basis > Diagonal {
		return Lost, fmt.Errorf("measuring in unknown basis %v", basis)
	}
	if sc.LossRate > 0 && sc.rand.Float64() < sc.LossRate {
		return Lost, nil
	}
	if p.basis != basis {
		return OutcomeOf(sc.rand.Intn(2) == 1), nil
	}
	bit := p.bit
	if sc.ErrorRate > 0 && sc.rand.Float64() < sc.ErrorRate {
		bit = !bit
	}
	return OutcomeOf(bit), nil
}
