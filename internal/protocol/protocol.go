// Package protocol implements the length-prefixed wire format spoken with the
// sender: frame encoding, stream reassembly and message decoding.
//
// Every frame is
//
//	[4B] length (LE), counting the kind byte and the payload
//	[1B] kind
//	[NB] payload, N = length-1
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coreman2200/pixelstick/internal/event"
)

// HeaderSize is the size of the length prefix.
const HeaderSize = 4

// Kind identifies a message.
type Kind uint8

const (
	KindHello      Kind = 0
	KindPixelCount Kind = 1 // reply only
	KindPixelData  Kind = 2
	KindBegin      Kind = 3
	KindAck        Kind = 4 // reply only
	KindEnd        Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindPixelCount:
		return "pixel_count"
	case KindPixelData:
		return "pixel_data"
	case KindBegin:
		return "begin"
	case KindAck:
		return "ack"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrBufferOverrun      = errors.New("protocol: receive buffer overrun")
	ErrMalformedFrame     = errors.New("protocol: malformed frame")
	ErrUnknownMessageKind = errors.New("protocol: unknown message kind")
)

// Frame is one reassembled message. Payload excludes the kind byte.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// AppendFrame appends the wire form of a frame to dst.
func AppendFrame(dst []byte, kind Kind, payload []byte) []byte {
	var hdr [HeaderSize + 1]byte
	binary.LittleEndian.PutUint32(hdr[:HeaderSize], uint32(len(payload)+1))
	hdr[HeaderSize] = byte(kind)
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// EncodeFrame returns the wire form of a frame.
func EncodeFrame(kind Kind, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+1+len(payload)), kind, payload)
}

func encodeU32(kind Kind, v uint32) []byte {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], v)
	return EncodeFrame(kind, p[:])
}

// EncodePixelCount builds the reply to a Hello.
func EncodePixelCount(leds uint32) []byte { return encodeU32(KindPixelCount, leds) }

// EncodeAck builds a credit grant for credit more columns.
func EncodeAck(credit uint32) []byte { return encodeU32(KindAck, credit) }

// EncodeEvent returns the wire form of an event that has a frame
// representation. Link and stop events are local only.
func EncodeEvent(ev event.Event) ([]byte, error) {
	switch ev := ev.(type) {
	case event.Hello:
		return EncodeFrame(KindHello, nil), nil
	case event.AnimationBegin:
		return EncodeFrame(KindBegin, []byte{ev.Speed}), nil
	case event.AnimationColumn:
		return EncodeFrame(KindPixelData, ev.Pixels), nil
	case event.AnimationEnd:
		var b byte
		if ev.Aborted {
			b = 1
		}
		return EncodeFrame(KindEnd, []byte{b}), nil
	default:
		return nil, fmt.Errorf("protocol: %s has no wire form", event.Name(ev))
	}
}

// Decode turns an inbound frame into an event. Column payloads must be
// exactly ledCount*3 bytes and are copied, so the returned event does not
// alias f.Payload.
func Decode(f Frame, ledCount int) (event.Event, error) {
	switch f.Kind {
	case KindHello:
		return event.Hello{}, nil
	case KindBegin:
		if len(f.Payload) < 1 {
			return nil, fmt.Errorf("%w: begin without speed", ErrMalformedFrame)
		}
		return event.AnimationBegin{Speed: f.Payload[0]}, nil
	case KindPixelData:
		if len(f.Payload) != ledCount*3 {
			return nil, fmt.Errorf("%w: column of %d bytes, want %d", ErrMalformedFrame, len(f.Payload), ledCount*3)
		}
		px := make([]byte, len(f.Payload))
		copy(px, f.Payload)
		return event.AnimationColumn{Pixels: px}, nil
	case KindEnd:
		if len(f.Payload) < 1 {
			return nil, fmt.Errorf("%w: end without abort flag", ErrMalformedFrame)
		}
		return event.AnimationEnd{Aborted: f.Payload[0] != 0}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageKind, f.Kind)
	}
}

// DecodeU32 reads the u32 payload of a PixelCount or Ack reply.
func DecodeU32(f Frame, kind Kind) (uint32, error) {
	if f.Kind != kind {
		return 0, fmt.Errorf("%w: got %s, want %s", ErrUnknownMessageKind, f.Kind, kind)
	}
	if len(f.Payload) != 4 {
		return 0, fmt.Errorf("%w: %s payload of %d bytes", ErrMalformedFrame, kind, len(f.Payload))
	}
	return binary.LittleEndian.Uint32(f.Payload), nil
}
