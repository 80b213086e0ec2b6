package render

// State is the render state machine's current mode.
type State uint8

const (
	Init State = iota
	WaitingForConnection
	Connected
	Black
	InAnimation
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case WaitingForConnection:
		return "waiting_for_connection"
	case Connected:
		return "connected"
	case Black:
		return "black"
	case InAnimation:
		return "in_animation"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON health reports.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
