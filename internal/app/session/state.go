package session

// State is the phase of one session's connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StatePolling:
		return "Polling"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
