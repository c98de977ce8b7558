// Package bb84 simulates the BB84 quantum key distribution protocol: random
// bit and basis choices, transmission over a photon.Channel, sifting, error
// rate estimation by partial disclosure, and distillation of the remaining
// raw key.
package bb84

import (
	"errors"
	"fmt"
	"math"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
	"github.com/qkdsim/bb84/go/bb84/photon"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

var (
	DefaultNQubits    = 256
	DefaultSampleFrac = 0.25
)

// ErrInsufficientSiftedMaterial is the abort reason for a round in which no
// bits survived sifting. It is not a failure: the caller simply gets no key
// and may run another round.
var ErrInsufficientSiftedMaterial = errors.New("bb84: insufficient sifted material")

// Stats packages together a collection of potentially interesting metrics
// pertaining to a single round.
type Stats struct {
	Sent      int
	Detected  int
	Sifted    int
	Disclosed int
	KeyBits   int
	QBER      float64
}

// Opts packages together the arguments necessary to construct a Protocol.
// Zero values are replaced by defaults.
type Opts struct {
	// NQubits is the number of pulses sent per round. Defaults to
	// DefaultNQubits.
	NQubits int

	// SampleFrac is the fraction of the sifted key disclosed for error
	// estimation, in (0, 1]. Defaults to DefaultSampleFrac.
	SampleFrac float64
}

// A Protocol runs BB84 rounds with fixed parameters. It holds no per-round
// state and may be shared between goroutines.
type Protocol struct {
	nQubits    int
	sampleFrac float64
}

// NewProtocol returns a Protocol configured by opts, or an error if the
// options are nonsensical.
func NewProtocol(opts Opts) (*Protocol, error) {
	if opts.NQubits < 0 {
		return nil, fmt.Errorf("NQubits must be non-negative, got %d", opts.NQubits)
	}
	if opts.SampleFrac < 0 || opts.SampleFrac > 1 || math.IsNaN(opts.SampleFrac) {
		return nil, fmt.Errorf("SampleFrac must lie in (0, 1], got %v", opts.SampleFrac)
	}
	p := &Protocol{
		nQubits:    opts.NQubits,
		sampleFrac: opts.SampleFrac,
	}
	if p.nQubits == 0 {
		p.nQubits = DefaultNQubits
	}
	if p.sampleFrac == 0 {
		p.sampleFrac = DefaultSampleFrac
	}
	return p, nil
}

// NQubits returns the number of pulses p sends per round.
func (p *Protocol) NQubits() int {
	return p.nQubits
}

// SampleFrac returns the fraction of the sifted key p discloses.
func (p *Protocol) SampleFrac() float64 {
	return p.sampleFrac
}

// A Result is everything a round produced.
type Result struct {
	Round    Round
	Sifted   Sifted
	Estimate Estimate
	AliceKey bitmap.Dense
	BobKey   bitmap.Dense

	// State is the terminal state the round reached, and Trace every state
	// it passed through, in order.
	State State
	Trace []State
	// Abort is non-nil iff State is StateAborted.
	Abort error

	Stats Stats
}

// Usable reports whether the round distilled a non-empty key.
func (r Result) Usable() bool {
	return r.State == StateKeyDistilled && r.AliceKey.Size() > 0
}

// Negotiate runs one round over ch, drawing all protocol randomness from src.
// A round with nothing sifted returns normally in StateAborted; only
// channel failures are errors.
func (p *Protocol) Negotiate(src *rng.Source, ch photon.Channel) (res Result, err error) {
	res.Trace = []State{StateInit}
	advance := func(s State) {
		last := res.Trace[len(res.Trace)-1]
		if !last.CanTransition(s) {
			panic(fmt.Sprintf("bb84: illegal transition %v -> %v", last, s))
		}
		res.Trace = append(res.Trace, s)
		res.State = s
	}

	round, err := RunRound(p.nQubits, src, ch)
	if err != nil {
		return Result{}, fmt.Errorf("running round: %w", err)
	}
	advance(StateEncoded)
	advance(StateTransmitted)
	advance(StateMeasured)
	res.Round = round
	res.Stats.Sent = round.Size()
	res.Stats.Detected = round.Size() - bitmap.CountOnes(round.Lost)

	res.Sifted = round.Sift()
	advance(StateSifted)
	res.Stats.Sifted = res.Sifted.Size()
	if res.Sifted.Size() == 0 {
		res.Estimate = Estimate{QBER: math.NaN(), Disclosed: []int{}}
		res.Stats.QBER = math.NaN()
		res.AliceKey, res.BobKey = bitmap.Empty(), bitmap.Empty()
		res.Abort = ErrInsufficientSiftedMaterial
		advance(StateAborted)
		return res, nil
	}

	res.Estimate = EstimateQBER(res.Sifted.Alice, res.Sifted.Bob, p.sampleFrac, src)
	advance(StateQBEREstimated)
	res.Stats.Disclosed = res.Estimate.Sample
	res.Stats.QBER = res.Estimate.QBER

	res.AliceKey, res.BobKey = Distill(res.Sifted.Alice, res.Sifted.Bob, res.Estimate.Disclosed)
	advance(StateKeyDistilled)
	res.Stats.KeyBits = res.AliceKey.Size()
	return res, nil
}
