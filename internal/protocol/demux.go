package protocol

import (
	"encoding/binary"
	"fmt"
)

// DefaultMaxRecvBuffer is the receive buffer size of one link session.
const DefaultMaxRecvBuffer = 4000

// Demuxer reassembles frames from arbitrarily split byte chunks.
//
// The payload handed to the handler aliases the internal buffer and is only
// valid for the duration of the call.
type Demuxer struct {
	buf    []byte
	n      int
	handle func(Frame)
}

// NewDemuxer returns a demuxer with a buffer of size bytes that calls handle
// for each complete frame, in stream order.
func NewDemuxer(size int, handle func(Frame)) *Demuxer {
	if size <= HeaderSize {
		size = DefaultMaxRecvBuffer
	}
	return &Demuxer{buf: make([]byte, size), handle: handle}
}

// Feed appends chunk and extracts every frame that is now complete.
//
// A chunk that does not fit is discarded whole and ErrBufferOverrun is
// returned; bytes already buffered are kept. A length prefix of zero, or one
// that could never fit the buffer, yields ErrMalformedFrame and clears the
// buffer since the stream cannot be resynchronized.
func (d *Demuxer) Feed(chunk []byte) error {
	if d.n+len(chunk) > len(d.buf) {
		return fmt.Errorf("%w: %d buffered + %d incoming > %d", ErrBufferOverrun, d.n, len(chunk), len(d.buf))
	}
	d.n += copy(d.buf[d.n:], chunk)

	pos := 0
	for d.n-pos >= HeaderSize {
		length := binary.LittleEndian.Uint32(d.buf[pos:])
		if length == 0 || uint64(length)+HeaderSize > uint64(len(d.buf)) {
			d.n = 0
			return fmt.Errorf("%w: declared length %d", ErrMalformedFrame, length)
		}
		end := pos + HeaderSize + int(length)
		if end > d.n {
			break
		}
		if d.handle != nil {
			d.handle(Frame{Kind: Kind(d.buf[pos+HeaderSize]), Payload: d.buf[pos+HeaderSize+1 : end]})
		}
		pos = end
	}

	if pos > 0 {
		d.n = copy(d.buf, d.buf[pos:d.n])
	}
	return nil
}

// Buffered is the number of bytes held for an incomplete frame.
func (d *Demuxer) Buffered() int { return d.n }

// Cap is the buffer capacity.
func (d *Demuxer) Cap() int { return len(d.buf) }

// Reset drops any partial frame.
func (d *Demuxer) Reset() { d.n = 0 }
