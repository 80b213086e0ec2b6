// Package selftest drives fixed patterns onto the strip to check wiring,
// ordering and color channels without a sender attached.
package selftest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/pixelstick/internal/render"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	Fill       Kind = "fill"
)

// ParseKind accepts the names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case IndexSweep, RGBTest, Fill:
		return k, nil
	default:
		return None, fmt.Errorf("selftest: unknown test %q", s)
	}
}

type Plan struct {
	Kind Kind
	// Level is the channel value used for lit pixels; 0 means 255.
	Level uint8
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner {
	if plan.Level == 0 {
		plan.Level = 255
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step fills rgb for n = len(rgb)/3 pixels; returns false when complete.
func (r *Runner) Step(rgb []byte) bool {
	n := len(rgb) / 3
	for i := range rgb {
		rgb[i] = 0
	}
	v := r.plan.Level

	switch r.plan.Kind {
	case IndexSweep:
		idx := r.step
		if idx >= n {
			return false
		}
		rgb[idx*3+0], rgb[idx*3+1], rgb[idx*3+2] = v, v, v
	case RGBTest:
		phase := r.step
		if phase >= 3 {
			return false
		}
		for i := 0; i < n; i++ {
			rgb[i*3+phase] = v
		}
	case Fill:
		if r.step >= 1 {
			return false
		}
		for i := range rgb {
			rgb[i] = v
		}
	default:
		return false
	}
	r.step++
	return true
}

// Run shows each step of plan for hold, then blanks the strip.
func Run(ctx context.Context, strip render.Strip, count int, plan Plan, hold time.Duration) error {
	r := NewRunner(plan)
	rgb := make([]byte, count*3)
	log.Info().Str("test", string(plan.Kind)).Int("leds", count).Dur("hold", hold).Msg("self test starting")

	ticker := time.NewTicker(hold)
	defer ticker.Stop()
	steps := 0
	for r.Step(rgb) {
		if err := show(strip, rgb); err != nil {
			return fmt.Errorf("selftest step %d: %w", steps, err)
		}
		steps++
		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = show(strip, make([]byte, count*3))
			return ctx.Err()
		}
	}
	log.Info().Str("test", string(plan.Kind)).Int("steps", steps).Msg("self test complete")
	return show(strip, make([]byte, count*3))
}

func show(strip render.Strip, rgb []byte) error {
	for i := 0; i*3+2 < len(rgb); i++ {
		strip.SetPixel(i, rgb[i*3], rgb[i*3+1], rgb[i*3+2])
	}
	return strip.Refresh()
}
