package spatialsim

import (
	"strings"

	"github.com/pkg/errors"
)

// State is a compartmental epidemiological status. The full status space is
// S, E, C, D, I, R plus the terminal Culled sink reachable only via a cull
// event. A concrete run uses an ordered subset of S E C D I R, the "Model
// chain", configured by the Epidemiology.Model key.
type State byte

// The recognised compartment letters, in the canonical SECDIR ordering used
// to validate a configured Model string.
const (
	Susceptible State = 'S'
	Exposed     State = 'E'
	Carrier     State = 'C'
	Dead        State = 'D'
	Infectious  State = 'I'
	Removed     State = 'R'
	Culled      State = 'X'
)

// NoState is the sentinel returned by NextState when a state has no
// successor in the configured Model chain (the chain's terminal state).
const NoState State = 0

func (s State) String() string {
	if s == Culled {
		return "Culled"
	}
	if s == NoState {
		return "None"
	}
	return string(rune(s))
}

// infectious reports compartments that contribute infection pressure to
// susceptible hosts/cells. Per spec.md §4.4, pressure is added on entry to C
// or I and removed on exit.
func (s State) infectious() bool {
	return s == Carrier || s == Infectious
}

// hasAdvanceRate reports whether a host in this state can carry an Advance
// rate (E, C, D and I; never Susceptible, Removed or the sinks).
func (s State) hasAdvanceRate() bool {
	switch s {
	case Exposed, Carrier, Dead, Infectious:
		return true
	default:
		return false
	}
}

// Model is the ordered compartment chain parsed from the configuration's
// Model key, e.g. "SEIR" or "SCDIR". It is validated to be a subset of
// S E C D I R appearing in a legal order, and it builds the next_state
// lookup table once at setup (spec.md §9 Design Notes: "closure for
// next_state" -> a lookup table built from the Model string).
type Model struct {
	chain []State
	next  map[State]State
}

// canonicalOrder is the only legal relative ordering of compartment letters;
// the configured Model must be a subsequence of it (S always first).
var canonicalOrder = []State{Susceptible, Exposed, Carrier, Dead, Infectious, Removed}

// NewModel parses a Model configuration string (e.g. "SIR", "SEDIR") into an
// ordered chain and builds its next-state table. The chain always starts
// with S and only records the forward next_state() successor chain; the
// last state's successor is NoState, and there is no R->S wraparound.
func NewModel(spec string) (*Model, error) {
	spec = strings.ToUpper(strings.TrimSpace(spec))
	if spec == "" {
		return nil, errors.Errorf(MissingRequiredKeyError, "Model", "Epidemiology")
	}
	seen := make(map[State]bool, len(spec))
	var chain []State
	orderIdx := 0
	for _, r := range spec {
		st := State(r)
		if !isCanonicalLetter(st) {
			return nil, errors.Errorf(UnrecognizedKeywordError, string(r), "Model")
		}
		if seen[st] {
			return nil, errors.Errorf(UnrecognizedKeywordError, spec, "Model (duplicate letter)")
		}
		// Enforce canonical relative order: each new letter must appear no
		// earlier than the last one in canonicalOrder.
		idx := indexOf(canonicalOrder, st)
		if idx < orderIdx {
			return nil, errors.Errorf(UnrecognizedKeywordError, spec, "Model (out-of-order chain)")
		}
		orderIdx = idx
		seen[st] = true
		chain = append(chain, st)
	}
	if chain[0] != Susceptible {
		return nil, errors.Errorf(UnrecognizedKeywordError, spec, "Model (must start with S)")
	}

	next := make(map[State]State, len(chain))
	for i, st := range chain {
		if i+1 < len(chain) {
			next[st] = chain[i+1]
		} else {
			next[st] = NoState
		}
	}
	return &Model{chain: chain, next: next}, nil
}

func isCanonicalLetter(s State) bool {
	return indexOf(canonicalOrder, s) >= 0
}

func indexOf(chain []State, s State) int {
	for i, c := range chain {
		if c == s {
			return i
		}
	}
	return -1
}

// NextState returns the successor of s in the configured chain, or NoState
// if s is terminal (or Culled, which has no successor).
func (m *Model) NextState(s State) State {
	if s == Culled {
		return NoState
	}
	return m.next[s]
}

// Contains reports whether the chain includes the given compartment.
func (m *Model) Contains(s State) bool {
	return indexOf(m.chain, s) >= 0
}

// Chain returns the ordered compartment letters (excluding Culled).
func (m *Model) Chain() []State {
	out := make([]State, len(m.chain))
	copy(out, m.chain)
	return out
}
