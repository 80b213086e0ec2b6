package event

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

const (
	DefaultCapacity    = 16
	DefaultSendTimeout = 100 * time.Millisecond
)

// ErrEventDropped is returned by Send when the channel stayed full for the
// whole send timeout.
var ErrEventDropped = errors.New("event: channel full, event dropped")

// Stats counts channel traffic.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Channel is a bounded FIFO between any number of producers and the single
// render consumer. Producers wait at most the send timeout; the consumer
// never waits.
type Channel struct {
	ch      chan Event
	timeout time.Duration

	sent    uint64
	dropped uint64
}

// NewChannel builds a channel. Non-positive arguments fall back to the defaults.
func NewChannel(capacity int, timeout time.Duration) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Channel{
		ch:      make(chan Event, capacity),
		timeout: timeout,
	}
}

// Send enqueues ev, waiting up to the send timeout for space.
func (c *Channel) Send(ctx context.Context, ev Event) error {
	select {
	case c.ch <- ev:
		atomic.AddUint64(&c.sent, 1)
		return nil
	default:
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case c.ch <- ev:
		atomic.AddUint64(&c.sent, 1)
		return nil
	case <-timer.C:
		atomic.AddUint64(&c.dropped, 1)
		return ErrEventDropped
	case <-ctx.Done():
		atomic.AddUint64(&c.dropped, 1)
		return ctx.Err()
	}
}

// TryRecv returns the oldest queued event without blocking.
func (c *Channel) TryRecv() (Event, bool) {
	select {
	case ev := <-c.ch:
		return ev, true
	default:
		return nil, false
	}
}

// Len is the number of queued events.
func (c *Channel) Len() int { return len(c.ch) }

// Cap is the channel capacity.
func (c *Channel) Cap() int { return cap(c.ch) }

// Stats returns a snapshot of the counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Sent:    atomic.LoadUint64(&c.sent),
		Dropped: atomic.LoadUint64(&c.dropped),
	}
}
