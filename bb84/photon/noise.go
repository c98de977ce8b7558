package photon

import "math/rand"

// Noisy adds detector errors and loss to another Channel, for channels like
// QubitChannel which model none themselves.
type Noisy struct {
	Channel   Channel
	ErrorRate float64
	LossRate  float64

	rand *rand.Rand
}

// NewNoisy wraps ch, drawing noise from r.
func NewNoisy(ch Channel, errorRate, lossRate float64, r *rand.Rand) *Noisy {
	return &Noisy{Channel: ch, ErrorRate: errorRate, LossRate: lossRate, rand: r}
}

// Encode implements Channel.
func (n *Noisy) Encode(bit bool, basis Basis) (State, error) {
	return n.Channel.Encode(bit, basis)
}

// Measure implements Channel.
func (n *Noisy) Measure(s State, basis Basis) (Outcome, error) {
	o, err := n.Channel.Measure(s, basis)
	if err != nil || o == Lost {
		return o, err
	}
	if n.LossRate > 0 && n.rand.Float64() < n.LossRate {
		return Lost, nil
	}
	if n.ErrorRate > 0 && n.rand.Float64() < n.ErrorRate {
		return OutcomeOf(!o.Bit()), nil
	}
	return o, nil
}
