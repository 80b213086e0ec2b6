// Package layout maps logical LED indices onto the physical strip.
package layout

// Strip describes how the logical pixels sit on the wired strip.
type Strip struct {
	// Count is the number of logical pixels.
	Count int `yaml:"-"`
	// Reverse flips the strip when it is fed from the far end.
	Reverse bool `yaml:"reverse"`
	// Offset skips leading physical LEDs, e.g. a lead-in before the stick.
	Offset int `yaml:"offset"`
}

// Physical maps logical index i -> physical LED index, or -1 when i is out
// of range.
func (s Strip) Physical(i int) int {
	if i < 0 || i >= s.Count {
		return -1
	}
	if s.Reverse {
		i = s.Count - 1 - i
	}
	return s.Offset + i
}

// Total is the number of physical LEDs that must be driven.
func (s Strip) Total() int {
	if s.Offset < 0 {
		return s.Count
	}
	return s.Count + s.Offset
}

// Identity reports whether Physical is a no-op.
func (s Strip) Identity() bool {
	return !s.Reverse && s.Offset == 0
}
