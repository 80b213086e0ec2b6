package render

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run ticks the machine every period until ctx is done. Refresh errors are
// logged by Tick and do not stop the loop.
func (m *Machine) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultTick
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Info().Dur("period", period).Int("leds", m.opts.LEDCount).Msg("render loop started")
	for {
		select {
		case <-ticker.C:
			_ = m.Tick()
		case <-ctx.Done():
			log.Info().Uint64("ticks", m.Stats().Ticks).Msg("render loop stopped")
			return
		}
	}
}
