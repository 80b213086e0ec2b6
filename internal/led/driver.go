// Package led pushes rendered frames to LED hardware or a stand-in.
package led

import (
	"github.com/coreman2200/pixelstick/internal/layout"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Output adapts a Driver to per-pixel writes, placing each logical pixel at
// its physical position on the strip.
type Output struct {
	drv Driver
	lay layout.Strip
	buf []byte
}

// NewOutput sizes the frame for lay.Total() physical LEDs.
func NewOutput(drv Driver, lay layout.Strip) *Output {
	return &Output{drv: drv, lay: lay, buf: make([]byte, lay.Total()*3)}
}

// SetPixel stages one logical pixel. Indices outside the strip are ignored.
func (o *Output) SetPixel(i int, r, g, b uint8) {
	p := o.lay.Physical(i)
	if p < 0 || p*3+2 >= len(o.buf) {
		return
	}
	o.buf[p*3], o.buf[p*3+1], o.buf[p*3+2] = r, g, b
}

// Refresh writes the staged frame.
func (o *Output) Refresh() error { return o.drv.Write(o.buf) }

func (o *Output) Close() error { return o.drv.Close() }
