package photon

import (
	"math/rand"
)

// An Eavesdropper performs an intercept-resend attack on the pulses flowing
// through Channel. Each intercepted pulse is measured in a randomly chosen
// basis and replaced with a fresh pulse encoding Eve's result, which
// disturbs roughly a quarter of the sifted bits.
type Eavesdropper struct {
	Channel Channel
	// Rate is the fraction of pulses intercepted, in [0, 1].
	Rate float64

	rand        *rand.Rand
	intercepted int
}

// NewEavesdropper returns an Eavesdropper intercepting a rate fraction of
// pulses on ch, drawing her choices from r.
func NewEavesdropper(ch Channel, rate float64, r *rand.Rand) *Eavesdropper {
	return &Eavesdropper{Channel: ch, Rate: rate, rand: r}
}

// Encode implements Channel.
func (e *Eavesdropper) Encode(bit bool, basis Basis) (State, error) {
	s, err := e.Channel.Encode(bit, basis)
	if err != nil {
		return nil, err
	}
	if e.Rate <= 0 || e.rand.Float64() >= e.Rate {
		return s, nil
	}
	eveBasis := BasisOf(e.rand.Intn(2) == 1)
	o, err := e.Channel.Measure(s, eveBasis)
	if err != nil {
		return nil, err
	}
	e.intercepted++
	if o == Lost {
		// Eve missed it; the pulse continues undisturbed.
		return s, nil
	}
	return e.Channel.Encode(o.Bit(), eveBasis)
}

// Measure implements Channel.
func (e *Eavesdropper) Measure(s State, basis Basis) (Outcome, error) {
	return e.Channel.Measure(s, basis)
}

// Intercepted returns the number of pulses Eve has measured so far.
func (e *Eavesdropper) Intercepted() int {
	return e.intercepted
}
