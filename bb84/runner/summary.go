package runner

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/qkdsim/bb84/go/bb84"
)

// A Summary aggregates the outcomes of a batch.
type Summary struct {
	Rounds   int
	Accepted int
	Rejected int
	Aborted  int

	// MeanQBER and StdQBER are taken over the per-round estimates of every
	// round that reached estimation. StdQBER is NaN with fewer than two.
	MeanQBER float64
	StdQBER  float64

	// PooledQBER is total mismatches over total disclosed bits, with its
	// Clopper-Pearson interval at the batch's confidence (0.95 if unset).
	PooledQBER float64
	PooledLo   float64
	PooledHi   float64

	SentBits        int
	SiftedBits      int
	DisclosedBits   int
	KeyBits         int
	AcceptedKeyBits int

	// SiftRate is sifted over sent bits; KeyRate is accepted key bits over
	// sent bits.
	SiftRate float64
	KeyRate  float64
}

// Summarize aggregates outcomes. Rounds missing from a cancelled batch
// should not be passed in.
func Summarize(outcomes []Outcome, confidence float64) Summary {
	if confidence <= 0 {
		confidence = 0.95
	}
	s := Summary{Rounds: len(outcomes)}
	var (
		qbers      []float64
		mismatches int
	)
	for _, o := range outcomes {
		st := o.Result.Stats
		s.SentBits += st.Sent
		s.SiftedBits += st.Sifted
		s.DisclosedBits += st.Disclosed
		s.KeyBits += st.KeyBits
		switch o.Verdict {
		case Accepted:
			s.Accepted++
			s.AcceptedKeyBits += st.KeyBits
		case Rejected:
			s.Rejected++
		case Aborted:
			s.Aborted++
		}
		if o.Result.State == bb84.StateKeyDistilled {
			qbers = append(qbers, o.Result.Estimate.QBER)
			mismatches += o.Result.Estimate.Mismatches
		}
	}

	s.MeanQBER, s.StdQBER = math.NaN(), math.NaN()
	switch len(qbers) {
	case 0:
	case 1:
		s.MeanQBER = qbers[0]
	default:
		s.MeanQBER, s.StdQBER = stat.MeanStdDev(qbers, nil)
	}

	s.PooledQBER = math.NaN()
	s.PooledLo, s.PooledHi = bb84.ErrorRateBounds(mismatches, s.DisclosedBits, confidence)
	if s.DisclosedBits > 0 {
		s.PooledQBER = float64(mismatches) / float64(s.DisclosedBits)
	}

	s.SiftRate, s.KeyRate = math.NaN(), math.NaN()
	if s.SentBits > 0 {
		s.SiftRate = float64(s.SiftedBits) / float64(s.SentBits)
		s.KeyRate = float64(s.AcceptedKeyBits) / float64(s.SentBits)
	}
	return s
}
