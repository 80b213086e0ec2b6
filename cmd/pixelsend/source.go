package main

import (
	"fmt"
	"math"
	"os"
)

// Source yields the columns of one animation. The returned slice may be
// reused by the next call.
type Source interface {
	Next() ([]byte, bool)
}

// Aurora is a procedural gradient drifting along the stick.
type Aurora struct {
	Count   int
	Columns int
	// Brightness scales every channel, 0..1.
	Brightness float64

	col int
	buf []byte
}

func NewAurora(count, columns int, brightness float64) *Aurora {
	return &Aurora{Count: count, Columns: columns, Brightness: brightness, buf: make([]byte, count*3)}
}

func (a *Aurora) Next() ([]byte, bool) {
	if a.col >= a.Columns {
		return nil, false
	}
	phase := float64(a.col) / float64(max(1, a.Columns))
	for i := 0; i < a.Count; i++ {
		u := float64(i) / float64(max(1, a.Count-1))
		h := math.Mod(0.33+0.25*u+phase, 1.0)
		v := a.Brightness * (0.55 + 0.45*math.Sin(2*math.Pi*(u*1.5+phase*2)))
		r, g, b := hsvToRGB(h, 0.85, v)
		a.buf[i*3+0] = byte(r * 255)
		a.buf[i*3+1] = byte(g * 255)
		a.buf[i*3+2] = byte(b * 255)
	}
	a.col++
	return a.buf, true
}

// RawFile plays a file of packed RGB columns, count*3 bytes each.
type RawFile struct {
	data  []byte
	width int
	off   int
}

func OpenRawFile(path string, count int) (*RawFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	width := count * 3
	if width == 0 || len(data)%width != 0 {
		return nil, fmt.Errorf("%s: %d bytes is not a whole number of %d LED columns", path, len(data), count)
	}
	return &RawFile{data: data, width: width}, nil
}

func (f *RawFile) Columns() int { return len(f.data) / f.width }

func (f *RawFile) Next() ([]byte, bool) {
	if f.off+f.width > len(f.data) {
		return nil, false
	}
	px := f.data[f.off : f.off+f.width]
	f.off += f.width
	return px, true
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
