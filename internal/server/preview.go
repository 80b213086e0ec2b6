package server

import (
	"sync"
	"time"

	"github.com/coreman2200/pixelstick/internal/render"
)

// Preview sits between the render machine and the real strip and keeps a
// throttled copy of what was shown for websocket viewers.
type Preview struct {
	inner    render.Strip
	throttle time.Duration

	frame    []byte
	lastEmit time.Time
	frameID  uint64

	mu     sync.Mutex
	latest []byte
	notify chan struct{}
}

// NewPreview wraps inner for count logical pixels. A zero throttle selects
// 50ms.
func NewPreview(inner render.Strip, count int, throttle time.Duration) *Preview {
	if throttle <= 0 {
		throttle = 50 * time.Millisecond
	}
	return &Preview{
		inner:    inner,
		throttle: throttle,
		frame:    make([]byte, count*3),
		notify:   make(chan struct{}, 1),
	}
}

func (p *Preview) SetPixel(i int, r, g, b uint8) {
	if i >= 0 && i*3+2 < len(p.frame) {
		p.frame[i*3], p.frame[i*3+1], p.frame[i*3+2] = r, g, b
	}
	p.inner.SetPixel(i, r, g, b)
}

func (p *Preview) Refresh() error {
	err := p.inner.Refresh()
	now := time.Now()
	if p.lastEmit.Add(p.throttle).After(now) {
		return err
	}
	p.lastEmit = now
	p.mu.Lock()
	p.latest = append(p.latest[:0], p.frame...)
	p.frameID++
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return err
}

// Latest returns a copy of the last published frame and its id.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.latest...), p.frameID
}

// Updates signals when a new frame is published.
func (p *Preview) Updates() <-chan struct{} { return p.notify }
