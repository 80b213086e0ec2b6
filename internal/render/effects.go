package render

import "github.com/coreman2200/pixelstick/internal/envelope"

// Timing holds the lengths of the built-in animations, in ticks.
type Timing struct {
	InitTicks      uint64 `yaml:"init_ticks"`
	PulseStepTicks uint64 `yaml:"pulse_step_ticks"`
	PulseSpan      int    `yaml:"pulse_span"`
	FlashTicks     uint64 `yaml:"flash_ticks"`
}

// DefaultTiming suits the default 200µs tick: a 2s boot sweep, a 50ms pulse
// step over 16 LEDs and a 1s connection flash.
func DefaultTiming() Timing {
	return Timing{
		InitTicks:      10000,
		PulseStepTicks: 250,
		PulseSpan:      16,
		FlashTicks:     5000,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.InitTicks == 0 {
		t.InitTicks = d.InitTicks
	}
	if t.PulseStepTicks == 0 {
		t.PulseStepTicks = d.PulseStepTicks
	}
	if t.PulseSpan <= 0 {
		t.PulseSpan = d.PulseSpan
	}
	if t.FlashTicks == 0 {
		t.FlashTicks = d.FlashTicks
	}
	return t
}

type rgb struct{ r, g, b uint8 }

var (
	initColor  = rgb{0x2f, 0x2f, 0x2f}
	pulseColor = rgb{0x00, 0x00, 0x2f}
	flashColor = rgb{0x00, 0x2f, 0x00}
)

func set(frame []byte, i int, c rgb, level float64) {
	frame[i*3] = byte(float64(c.r) * level)
	frame[i*3+1] = byte(float64(c.g) * level)
	frame[i*3+2] = byte(float64(c.b) * level)
}

func blank(frame []byte) {
	for i := range frame {
		frame[i] = 0
	}
}

// breathe lights a band growing outward from the middle of the strip while
// its brightness follows env.
func breathe(frame []byte, env envelope.Envelope, progress float64) {
	blank(frame)
	n := len(frame) / 3
	center := float64(n-1) / 2
	radius := progress * (center + 1)
	level := env.Eval(progress)
	for i := 0; i < n; i++ {
		d := float64(i) - center
		if d < 0 {
			d = -d
		}
		if d <= radius {
			set(frame, i, initColor, level)
		}
	}
}

// pulsePosition bounces between 0 and span-1, moving one LED every
// stepTicks.
func pulsePosition(ticks, stepTicks uint64, span int) int {
	if span <= 1 {
		return 0
	}
	period := uint64(2 * (span - 1))
	k := (ticks / stepTicks) % period
	if k < uint64(span) {
		return int(k)
	}
	return int(period - k)
}

func pulse(frame []byte, ticks uint64, t Timing) {
	blank(frame)
	n := len(frame) / 3
	span := t.PulseSpan
	if span > n {
		span = n
	}
	if span == 0 {
		return
	}
	pos := pulsePosition(ticks, t.PulseStepTicks, span)
	set(frame, pos, pulseColor, 1)
	if pos > 0 {
		set(frame, pos-1, pulseColor, 0.25)
	}
	if pos+1 < span {
		set(frame, pos+1, pulseColor, 0.25)
	}
}

func flash(frame []byte, env envelope.Envelope, progress float64) {
	level := env.Eval(progress)
	n := len(frame) / 3
	for i := 0; i < n; i++ {
		set(frame, i, flashColor, level)
	}
}
