// Package event carries typed messages from the link side to the render loop.
package event

// Event is one message delivered to the render loop. The concrete types below
// are the only implementations.
type Event interface {
	isEvent()
}

// Hello is a link handshake request.
type Hello struct{}

// AnimationBegin starts a new animation. Speed selects the column rate.
type AnimationBegin struct {
	Speed uint8
}

// AnimationColumn is one column of pixels, 3 bytes per LED in LED order.
// The receiver owns Pixels.
type AnimationColumn struct {
	Pixels []byte
}

// AnimationEnd marks the end of the column stream.
type AnimationEnd struct {
	Aborted bool
}

// LinkConnected is injected by the transport when a peer attaches.
type LinkConnected struct {
	Session string
}

// LinkDisconnected is injected by the transport when the peer goes away.
type LinkDisconnected struct {
	Session string
}

// Stop is an explicit request to blank the strip.
type Stop struct{}

func (Hello) isEvent()            {}
func (AnimationBegin) isEvent()   {}
func (AnimationColumn) isEvent()  {}
func (AnimationEnd) isEvent()     {}
func (LinkConnected) isEvent()    {}
func (LinkDisconnected) isEvent() {}
func (Stop) isEvent()             {}

// Name returns a short label for logs.
func Name(ev Event) string {
	switch ev.(type) {
	case Hello:
		return "hello"
	case AnimationBegin:
		return "animation_begin"
	case AnimationColumn:
		return "animation_column"
	case AnimationEnd:
		return "animation_end"
	case LinkConnected:
		return "link_connected"
	case LinkDisconnected:
		return "link_disconnected"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}
