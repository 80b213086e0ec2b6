// Package anim holds the column ring buffer and the credit-based flow
// control that keeps the sender from outrunning playback.
package anim

// DefaultColumns is the ring capacity in columns.
const DefaultColumns = 64

// Ring is a fixed set of column slots addressed by an unbounded column
// index modulo the capacity.
type Ring struct {
	cols  int
	width int
	data  []byte
}

// NewRing allocates columns slots of ledCount RGB pixels each.
func NewRing(columns, ledCount int) *Ring {
	if columns <= 0 {
		columns = DefaultColumns
	}
	width := ledCount * 3
	return &Ring{cols: columns, width: width, data: make([]byte, columns*width)}
}

// Columns is the capacity in columns.
func (r *Ring) Columns() int { return r.cols }

// Width is the size of one column in bytes.
func (r *Ring) Width() int { return r.width }

// Slot returns the storage for column index i.
func (r *Ring) Slot(i uint64) []byte {
	off := int(i%uint64(r.cols)) * r.width
	return r.data[off : off+r.width : off+r.width]
}

// Put copies px into the slot for column index i.
func (r *Ring) Put(i uint64, px []byte) {
	copy(r.Slot(i), px)
}

// Clear zeroes every slot.
func (r *Ring) Clear() {
	for i := range r.data {
		r.data[i] = 0
	}
}
