package attempt

type State int

const (
	NotStarted State = iota
	Confirming
	Running
	TimedOut
	Submitting
	Completed
	// Abandoned is terminal: the attempt was discarded without a record.
	Abandoned
)

var stateNames = [...]string{
	NotStarted: "not_started",
	Confirming: "confirming",
	Running:    "running",
	TimedOut:   "timed_out",
	Submitting: "submitting",
	Completed:  "completed",
	Abandoned:  "abandoned",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Abandoned }
