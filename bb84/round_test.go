package bb84

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
	"github.com/qkdsim/bb84/go/bb84/photon"
	"github.com/qkdsim/bb84/go/bb84/rng"
)

func TestRunRoundShape(t *testing.T) {
	for _, n := range []int{0, 1, 13, 256} {
		r, err := RunRound(n, rng.New(42), newCoinChannel(1))
		if err != nil {
			t.Fatalf("RunRound(%d): %v", n, err)
		}
		for name, d := range map[string]bitmap.Dense{
			"bits": r.Bits, "basisA": r.BasisA, "basisB": r.BasisB,
			"outcomes": r.Outcomes, "lost": r.Lost,
		} {
			if d.Size() != n {
				t.Errorf("n=%d: %s has length %d", n, name, d.Size())
			}
		}
	}
}

func TestRunRoundReproducible(t *testing.T) {
	a, err := RunRound(512, rng.New(7), newCoinChannel(3))
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	b, err := RunRound(512, rng.New(7), newCoinChannel(3))
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if !bitmap.Equal(a.Bits, b.Bits) || !bitmap.Equal(a.BasisA, b.BasisA) ||
		!bitmap.Equal(a.BasisB, b.BasisB) || !bitmap.Equal(a.Outcomes, b.Outcomes) {
		t.Errorf("same seeds produced different rounds")
	}
}

func TestRunRoundMatchedPositionsAgree(t *testing.T) {
	chans := map[string]photon.Channel{
		"coin":      newCoinChannel(5),
		"simulated": photon.NewSimulatedChannel(rand.New(rand.NewSource(5))),
		"qubit":     photon.NewQubitChannel(rand.New(rand.NewSource(5))),
	}
	for name, ch := range chans {
		t.Run(name, func(t *testing.T) {
			r, err := RunRound(2048, rng.New(11), ch)
			if err != nil {
				t.Fatalf("RunRound: %v", err)
			}
			for i := 0; i < r.Size(); i++ {
				if r.BasisA.Get(i) == r.BasisB.Get(i) && r.Bits.Get(i) != r.Outcomes.Get(i) {
					t.Fatalf("position %d: bases agree but bits differ", i)
				}
			}
		})
	}
}

func TestRunRoundChannelFailure(t *testing.T) {
	ch := &failingChannel{coinChannel: *newCoinChannel(1), failAt: 17}
	_, err := RunRound(64, rng.New(1), ch)
	var ce *ChannelError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want a *ChannelError", err)
	}
	if ce.Op != "measure" || ce.Pos != 17 {
		t.Errorf("got failure %q at %d, want measure at 17", ce.Op, ce.Pos)
	}
	if !errors.Is(err, errBrokenDetector) {
		t.Errorf("ChannelError does not unwrap to the channel's error")
	}
}

func TestRunRoundShortBatch(t *testing.T) {
	ch := &shortBatchChannel{coinChannel: *newCoinChannel(1)}
	_, err := RunRound(10, rng.New(1), ch)
	var ce *ChannelError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want a *ChannelError", err)
	}
}

func TestRunRoundLoss(t *testing.T) {
	sc := photon.NewSimulatedChannel(rand.New(rand.NewSource(9)))
	sc.LossRate = 0.5
	r, err := RunRound(4000, rng.New(2), sc)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	lost := bitmap.CountOnes(r.Lost)
	if lost < 1800 || lost > 2200 {
		t.Errorf("lost %d of 4000 pulses at a 50%% loss rate", lost)
	}
	if bitmap.CountOnes(bitmap.And(r.Lost, r.Outcomes)) != 0 {
		t.Errorf("lost positions carry outcome bits")
	}
	s := r.Sift()
	if bitmap.CountOnes(bitmap.And(s.Mask, r.Lost)) != 0 {
		t.Errorf("sift kept lost positions")
	}
	if !bitmap.Equal(s.Alice, s.Bob) {
		t.Errorf("lossy but noiseless round sifted to different keys")
	}
}
