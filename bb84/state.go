package bb84

import "fmt"

// A State is a stage in the life of a round.
type State int

const (
	StateInit State = iota
	StateEncoded
	StateTransmitted
	StateMeasured
	StateSifted
	StateQBEREstimated
	StateKeyDistilled
	// StateAborted is terminal. It only follows StateSifted when nothing was
	// sifted.
	StateAborted
)

var stateNames = [...]string{
	StateInit:          "INIT",
	StateEncoded:       "ENCODED",
	StateTransmitted:   "TRANSMITTED",
	StateMeasured:      "MEASURED",
	StateSifted:        "SIFTED",
	StateQBEREstimated: "QBER_ESTIMATED",
	StateKeyDistilled:  "KEY_DISTILLED",
	StateAborted:       "ABORTED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateKeyDistilled || s == StateAborted
}

// next lists the legal successors of each state.
var next = map[State][]State{
	StateInit:          {StateEncoded},
	StateEncoded:       {StateTransmitted},
	StateTransmitted:   {StateMeasured},
	StateMeasured:      {StateSifted},
	StateSifted:        {StateQBEREstimated, StateAborted},
	StateQBEREstimated: {StateKeyDistilled},
}

// CanTransition reports whether a round may move from s to t.
func (s State) CanTransition(t State) bool {
	for _, n := range next[s] {
		if n == t {
			return true
		}
	}
	return false
}
