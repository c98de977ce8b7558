package bb84

import (
	"fmt"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
	"github.com/qkdsim/bb84/go/bb84/photon"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

// A Round holds the raw material of one BB84 exchange. All of its sequences
// share the same length.
type Round struct {
	// Bits are Alice's raw bits.
	Bits bitmap.Dense
	// BasisA and BasisB are Alice's and Bob's basis choices, 0 for Z and 1
	// for X.
	BasisA bitmap.Dense
	BasisB bitmap.Dense
	// Outcomes are Bob's measurement results, in the same order as Bits.
	// Lost positions read as 0.
	Outcomes bitmap.Dense
	// Lost marks positions Bob never detected.
	Lost bitmap.Dense
}

// Size returns the number of pulses sent in r.
func (r Round) Size() int {
	return r.Bits.Size()
}

// A ChannelError reports a failure of the quantum channel at a particular
// position. A round with a ChannelError cannot be used.
type ChannelError struct {
	Op  string
	Pos int
	Err error
}

func (e *ChannelError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("channel %s at position %d: %v", e.Op, e.Pos, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// RunRound draws n bits and two basis sequences from src, sends every bit
// through ch and collects Bob's outcomes. Draw order is bits, Alice's bases,
// Bob's bases.
func RunRound(n int, src *rng.Source, ch photon.Channel) (Round, error) {
	r := Round{
		Bits:   src.Bits(n),
		BasisA: src.Bits(n),
		BasisB: src.Bits(n),
	}
	states, err := encode(ch, r.Bits, r.BasisA)
	if err != nil {
		return Round{}, err
	}
	outcomes, err := measure(ch, states, r.BasisB)
	if err != nil {
		return Round{}, err
	}
	r.Outcomes = bitmap.NewDense(nil, n)
	r.Lost = bitmap.NewDense(nil, n)
	for i, o := range outcomes {
		switch o {
		case photon.One:
			r.Outcomes.Set(i, true)
		case photon.Lost:
			r.Lost.Set(i, true)
		}
	}
	return r, nil
}

func encode(ch photon.Channel, bits, bases bitmap.Dense) ([]photon.State, error) {
	states := make([]photon.State, bits.Size())
	for i := range states {
		s, err := ch.Encode(bits.Get(i), photon.BasisOf(bases.Get(i)))
		if err != nil {
			return nil, &ChannelError{Op: "encode", Pos: i, Err: err}
		}
		states[i] = s
	}
	return states, nil
}

func measure(ch photon.Channel, states []photon.State, bases bitmap.Dense) ([]photon.Outcome, error) {
	bs := make([]photon.Basis, len(states))
	for i := range bs {
		bs[i] = photon.BasisOf(bases.Get(i))
	}
	if bm, ok := ch.(photon.BatchMeasurer); ok {
		outcomes, err := bm.MeasureAll(states, bs)
		if err != nil {
			return nil, &ChannelError{Op: "measure", Pos: -1, Err: err}
		}
		if len(outcomes) != len(states) {
			return nil, &ChannelError{
				Op:  "measure",
				Pos: -1,
				Err: fmt.Errorf("got %d outcomes for %d pulses", len(outcomes), len(states)),
			}
		}
		return outcomes, nil
	}
	outcomes := make([]photon.Outcome, len(states))
	for i, s := range states {
		o, err := ch.Measure(s, bs[i])
		if err != nil {
			return nil, &ChannelError{Op: "measure", Pos: i, Err: err}
		}
		outcomes[i] = o
	}
	return outcomes, nil
}
