package bb84

import (
	"errors"
	"math/rand"

	"github.com/qkdsim/bb84/go/bb84/photon"
)

// A coinChannel is the trivial noiseless channel: matched bases return the
// encoded bit, mismatched bases flip a coin.
type coinChannel struct {
	rand *rand.Rand
}

type coinState struct {
	bit   bool
	basis photon.Basis
}

func newCoinChannel(seed int64) *coinChannel {
	return &coinChannel{rand: rand.New(rand.NewSource(seed))}
}

func (c *coinChannel) Encode(bit bool, basis photon.Basis) (photon.State, error) {
	return coinState{bit, basis}, nil
}

func (c *coinChannel) Measure(s photon.State, basis photon.Basis) (photon.Outcome, error) {
	cs := s.(coinState)
	if cs.basis == basis {
		return photon.OutcomeOf(cs.bit), nil
	}
	return photon.OutcomeOf(c.rand.Intn(2) == 1), nil
}

var errBrokenDetector = errors.New("detector offline")

// A failingChannel fails to measure the pulse at position failAt.
type failingChannel struct {
	coinChannel
	failAt int
	seen   int
}

func (f *failingChannel) Measure(s photon.State, basis photon.Basis) (photon.Outcome, error) {
	defer func() { f.seen++ }()
	if f.seen == f.failAt {
		return photon.Lost, errBrokenDetector
	}
	return f.coinChannel.Measure(s, basis)
}

// A shortBatchChannel drops the last outcome of every batch.
type shortBatchChannel struct {
	coinChannel
}

func (s *shortBatchChannel) MeasureAll(states []photon.State, bases []photon.Basis) ([]photon.Outcome, error) {
	var r []photon.Outcome
	for i := 0; i+1 < len(states); i++ {
		o, _ := s.Measure(states[i], bases[i])
		r = append(r, o)
	}
	return r, nil
}
