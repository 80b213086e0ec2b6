package anim

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultBaseRate divided by the animation speed gives ticks per column.
	DefaultBaseRate = 125
	// LowWater is the hysteresis, in columns, for granting credit.
	LowWater = 8
)

var (
	ErrInvalidSpeed      = errors.New("anim: animation speed must be > 0")
	ErrRingBufferOverrun = errors.New("anim: ring buffer overrun")
	ErrColumnSize        = errors.New("anim: column size mismatch")
)

// Playback is the position of the current animation. All column counters
// are unbounded and mapped into the ring by modulo.
type Playback struct {
	Step           uint64 `json:"step"`
	FramesPerPixel uint32 `json:"frames_per_pixel"`
	MaxWritten     uint64 `json:"max_written"`
	AckColumn      uint64 `json:"ack_column"`
	StreamingEnded bool   `json:"streaming_ended"`
}

// Played is the column being displayed.
func (p Playback) Played() uint64 { return p.Step / uint64(p.FramesPerPixel) }

// ahead returns a-b, or 0 when b has passed a.
func ahead(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}

// Controller owns the ring and the playback position of one animation at a
// time, and decides when the sender gets more credit.
//
// The sender may only transmit columns below AckColumn. AckColumn never
// exceeds Played()+Columns(), so at most Columns() columns are outstanding.
type Controller struct {
	ring     *Ring
	baseRate uint32
	low      uint64
	pb       Playback
}

// NewController wraps ring. A zero baseRate selects DefaultBaseRate.
func NewController(ring *Ring, baseRate uint32) *Controller {
	if baseRate == 0 {
		baseRate = DefaultBaseRate
	}
	return &Controller{
		ring:     ring,
		baseRate: baseRate,
		low:      LowWater,
		pb:       Playback{FramesPerPixel: 1},
	}
}

// Ring exposes the underlying ring.
func (c *Controller) Ring() *Ring { return c.ring }

// Playback returns a copy of the current position.
func (c *Controller) Playback() Playback { return c.pb }

// FramesPerPixel converts a speed into ticks per column, never less than one.
func (c *Controller) FramesPerPixel(speed uint8) uint32 {
	fpp := c.baseRate / uint32(speed)
	if fpp == 0 {
		fpp = 1
	}
	return fpp
}

// Begin resets playback for a new animation. A zero speed is rejected and
// leaves the current playback untouched.
func (c *Controller) Begin(speed uint8) error {
	if speed == 0 {
		return ErrInvalidSpeed
	}
	c.pb = Playback{FramesPerPixel: c.FramesPerPixel(speed)}
	return nil
}

// Write stores the next column. A column that would overwrite one not yet
// played is dropped with ErrRingBufferOverrun.
func (c *Controller) Write(px []byte) error {
	if len(px) != c.ring.Width() {
		return fmt.Errorf("%w: %d bytes, want %d", ErrColumnSize, len(px), c.ring.Width())
	}
	if ahead(c.pb.MaxWritten, c.pb.Played()) >= uint64(c.ring.Columns()) {
		return fmt.Errorf("%w: column %d with column %d still playing", ErrRingBufferOverrun, c.pb.MaxWritten, c.pb.Played())
	}
	c.ring.Put(c.pb.MaxWritten, px)
	c.pb.MaxWritten++
	return nil
}

// End marks the column stream finished. No more credit is granted.
func (c *Controller) End() { c.pb.StreamingEnded = true }

// Abandon forgets the current animation and blanks its buffered columns.
func (c *Controller) Abandon() {
	c.pb = Playback{FramesPerPixel: 1}
	c.ring.Clear()
}

// Current returns the ring slot for the played column. When the sender has
// fallen behind this is whatever the slot last held.
func (c *Controller) Current() []byte { return c.ring.Slot(c.pb.Played()) }

// Grant computes new credit for the sender. It returns ok=false when no
// acknowledgement is due; otherwise AckColumn has already been advanced by
// credit.
func (c *Controller) Grant() (credit uint32, ok bool) {
	if c.pb.StreamingEnded {
		return 0, false
	}
	played := c.pb.Played()
	limit := played + uint64(c.ring.Columns())
	grant := ahead(limit, c.pb.AckColumn)
	if grant == 0 {
		return 0, false
	}
	available := ahead(c.pb.MaxWritten, played)
	if grant <= c.low && available >= c.low {
		return 0, false
	}
	if grant > math.MaxUint32 {
		grant = math.MaxUint32
	}
	c.pb.AckColumn += grant
	return uint32(grant), true
}

// Advance moves playback forward one tick.
func (c *Controller) Advance() { c.pb.Step++ }

// Done reports whether a finished stream has been fully played.
func (c *Controller) Done() bool {
	return c.pb.StreamingEnded && c.pb.Played() >= c.pb.MaxWritten
}
