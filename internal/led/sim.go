package led

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Sim keeps the last frame in memory. Useful for headless runs and tests.
type Sim struct {
	mu     sync.Mutex
	frames uint64
	last   []byte
}

func NewSim() *Sim { return &Sim{} }

func (s *Sim) Write(rgb []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.last = append(s.last[:0], rgb...)
	if s.frames%5000 == 0 {
		var sum uint64
		for _, v := range rgb {
			sum += uint64(v)
		}
		n := uint64(len(rgb))
		if n == 0 {
			n = 1
		}
		log.Debug().Uint64("frame", s.frames).Uint64("avg", sum/n).Msg("sim frame")
	}
	return nil
}

func (s *Sim) Close() error { return nil }

// Frames returns the number of frames written.
func (s *Sim) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Last returns a copy of the most recent frame.
func (s *Sim) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}
