package audiocore

// State is the pipeline lifecycle state
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON status output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
