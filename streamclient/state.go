package streamclient

// State is the lifecycle state of a stream connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	// StateExhausted is terminal: reconnect attempts ran out.
	StateExhausted
	// StateClosed is terminal: closed by the caller or cleanly by the server.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateClosed
}
