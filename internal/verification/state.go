package verification

import "fmt"

// State is the result of a verification.
// All states except Processing are terminal.
type State int

const (
	Processing State = iota
	Succeeded
	Failed
	// Ignored means the verifier is not responsible for the commit, the
	// commit is not tracked further.
	Ignored
)

var stateNames = map[State]string{
	Processing: "processing",
	Succeeded:  "succeeded",
	Failed:     "failed",
	Ignored:    "ignored",
}

func (s State) String() string {
	if name, exist := stateNames[s]; exist {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) IsTerminal() bool {
	return s != Processing
}

func (s State) MarshalText() ([]byte, error) {
	name, exist := stateNames[s]
	if !exist {
		return nil, fmt.Errorf("invalid state value: %d", int(s))
	}

	return []byte(name), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for k, v := range stateNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}

	return fmt.Errorf("invalid state: %q", string(text))
}
