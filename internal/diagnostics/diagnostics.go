// Package diagnostics turns link and playback faults into structured reports
// for operators.
package diagnostics

import (
	"errors"

	"github.com/coreman2200/pixelstick/internal/anim"
	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/protocol"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics. Implementations must not block.
type Sink func(Diagnostic)

// FromError classifies err. evidence may be nil.
func FromError(err error, evidence map[string]any) Diagnostic {
	d := Diagnostic{Severity: Err, Code: "LINK.ERROR", Summary: "Link error", Evidence: evidence}
	if err != nil {
		d.Detail = err.Error()
	}
	switch {
	case errors.Is(err, protocol.ErrBufferOverrun):
		d.Severity, d.Code, d.Summary = Warn, "PROTO.OVERRUN", "Receive buffer overrun, chunk discarded"
		d.LikelyCauses = []string{"sender ignores ack credit", "transport delivers more than the receive buffer between reads"}
		d.SuggestedFixes = []string{"only send columns covered by granted credit", "raise recv_buffer in config.yaml"}
	case errors.Is(err, protocol.ErrMalformedFrame):
		d.Code, d.Summary = "PROTO.MALFORMED", "Malformed frame, receive buffer cleared"
		d.LikelyCauses = []string{"sender and receiver disagree on the length prefix", "stream corruption"}
		d.SuggestedFixes = []string{"check the sender counts the kind byte in the length", "reconnect to resynchronize"}
	case errors.Is(err, protocol.ErrUnknownMessageKind):
		d.Severity, d.Code, d.Summary = Warn, "PROTO.UNKNOWN_KIND", "Unknown or unexpected message kind"
		d.LikelyCauses = []string{"sender uses a newer protocol", "reply-only kind sent to the device"}
	case errors.Is(err, event.ErrEventDropped):
		d.Severity, d.Code, d.Summary = Warn, "EVENT.DROPPED", "Event queue full, event dropped"
		d.LikelyCauses = []string{"render loop stalled", "sender floods columns faster than they play"}
		d.SuggestedFixes = []string{"honor ack credit", "raise queue_size"}
	case errors.Is(err, anim.ErrRingBufferOverrun):
		d.Severity, d.Code, d.Summary = Warn, "ANIM.OVERRUN", "Column dropped, ring buffer full"
		d.LikelyCauses = []string{"sender ignores ack credit"}
		d.SuggestedFixes = []string{"only send columns covered by granted credit"}
	case errors.Is(err, anim.ErrInvalidSpeed):
		d.Severity, d.Code, d.Summary = Warn, "ANIM.SPEED", "Animation begin with zero speed ignored"
		d.SuggestedFixes = []string{"send a speed between 1 and 255"}
	case errors.Is(err, anim.ErrColumnSize):
		d.Severity, d.Code, d.Summary = Warn, "ANIM.COLUMN_SIZE", "Column size does not match the strip"
		d.SuggestedFixes = []string{"send led_count*3 bytes per column; ask with hello first"}
	}
	return d
}
