// Package render owns the LED strip. A Machine is ticked at a fixed rate;
// each tick it takes at most one event, advances its state and pushes one
// frame to the strip.
package render

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/pixelstick/internal/anim"
	"github.com/coreman2200/pixelstick/internal/envelope"
	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/protocol"
)

// DefaultTick is the render period at which DefaultTiming and the animation
// base rate are calibrated.
const DefaultTick = 200 * time.Microsecond

// Strip is the pixel sink the machine draws into.
type Strip interface {
	SetPixel(i int, r, g, b uint8)
	Refresh() error
}

// Events is the consuming side of the event channel.
type Events interface {
	TryRecv() (event.Event, bool)
}

type Options struct {
	LEDCount int
	// Columns is the ring capacity; 0 selects anim.DefaultColumns.
	Columns int
	// BaseRate is divided by the animation speed to get ticks per column.
	BaseRate uint32
	Timing   Timing
	Power    Power
	// Fault, when set, is told about rejected animation input. It runs on
	// the render goroutine and must not block.
	Fault func(error)
}

// Stats is a snapshot published after every tick.
type Stats struct {
	State         State         `json:"state"`
	Ticks         uint64        `json:"ticks"`
	Events        uint64        `json:"events"`
	Acks          uint64        `json:"acks"`
	Credit        uint64        `json:"credit"`
	Overruns      uint64        `json:"overruns"`
	Rejected      uint64        `json:"rejected"`
	RefreshErrors uint64        `json:"refresh_errors"`
	Playback      anim.Playback `json:"playback"`
}

type Machine struct {
	opts   Options
	strip  Strip
	events Events
	out    protocol.Sender
	ctrl   *anim.Controller
	frame  []byte

	breath envelope.Envelope
	flash  envelope.Envelope

	state      State
	stateTicks uint64
	linkUp     bool
	cur        Stats

	// sampled logger for errors that can repeat every tick
	tickLog zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewMachine builds a machine in the Init state. out receives Ack frames
// and may be nil.
func NewMachine(opts Options, strip Strip, events Events, out protocol.Sender) (*Machine, error) {
	if opts.LEDCount <= 0 {
		return nil, errors.New("render: led count must be > 0")
	}
	if strip == nil {
		return nil, errors.New("render: nil strip")
	}
	if events == nil {
		return nil, errors.New("render: nil event source")
	}
	if opts.Columns <= 0 {
		opts.Columns = anim.DefaultColumns
	}
	opts.Timing = opts.Timing.withDefaults()

	ring := anim.NewRing(opts.Columns, opts.LEDCount)
	return &Machine{
		opts:    opts,
		strip:   strip,
		events:  events,
		out:     out,
		ctrl:    anim.NewController(ring, opts.BaseRate),
		frame:   make([]byte, opts.LEDCount*3),
		breath:  envelope.Breath(),
		flash:   envelope.Flash(),
		state:   Init,
		tickLog: log.Logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second}),
	}, nil
}

// State is safe to call from any goroutine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.State
}

// Stats is safe to call from any goroutine.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Tick runs one render period. Only the render goroutine may call it. The
// returned error comes from the strip refresh; the machine keeps going.
func (m *Machine) Tick() error {
	if ev, ok := m.events.TryRecv(); ok {
		m.cur.Events++
		m.handle(ev)
	}
	m.step()
	m.opts.Power.Apply(m.frame)
	err := m.flush()
	if err != nil {
		m.cur.RefreshErrors++
		m.tickLog.Warn().Err(err).Msg("strip refresh")
	}
	m.cur.Ticks++
	m.publish()
	return err
}

func (m *Machine) handle(ev event.Event) {
	switch e := ev.(type) {
	case event.LinkConnected:
		m.linkUp = true
		if m.state == WaitingForConnection {
			m.enter(Connected)
		}
	case event.LinkDisconnected:
		m.linkUp = false
		if m.state == InAnimation {
			log.Info().Uint64("played", m.ctrl.Playback().Played()).Msg("link lost, abandoning animation")
		}
		m.ctrl.Abandon()
		m.enter(WaitingForConnection)
	case event.AnimationBegin:
		switch m.state {
		case Connected, Black, InAnimation:
		default:
			m.reject(ev)
			return
		}
		if err := m.ctrl.Begin(e.Speed); err != nil {
			m.cur.Rejected++
			m.fault(err)
			m.tickLog.Warn().Err(err).Uint8("speed", e.Speed).Msg("animation begin")
			return
		}
		log.Info().Uint8("speed", e.Speed).Uint32("fpp", m.ctrl.Playback().FramesPerPixel).Msg("animation begin")
		m.enter(InAnimation)
	case event.AnimationColumn:
		if m.state != InAnimation {
			m.reject(ev)
			return
		}
		if err := m.ctrl.Write(e.Pixels); err != nil {
			if errors.Is(err, anim.ErrRingBufferOverrun) {
				m.cur.Overruns++
			} else {
				m.cur.Rejected++
			}
			m.fault(err)
			m.tickLog.Warn().Err(err).Msg("animation column")
		}
	case event.AnimationEnd:
		if m.state != InAnimation {
			m.reject(ev)
			return
		}
		if e.Aborted {
			log.Info().Msg("animation aborted by sender")
			m.ctrl.Abandon()
			m.enter(Black)
			return
		}
		m.ctrl.End()
	case event.Stop:
		m.ctrl.Abandon()
		m.enter(Black)
	default:
		m.reject(ev)
	}
}

func (m *Machine) fault(err error) {
	if m.opts.Fault != nil {
		m.opts.Fault(err)
	}
}

func (m *Machine) reject(ev event.Event) {
	m.cur.Rejected++
	log.Debug().Str("event", event.Name(ev)).Stringer("state", m.state).Msg("event ignored")
}

func (m *Machine) enter(s State) {
	if s != m.state {
		log.Info().Stringer("from", m.state).Stringer("to", s).Msg("render state")
	}
	m.state = s
	m.stateTicks = 0
}

func (m *Machine) step() {
	t := m.opts.Timing
	switch m.state {
	case Init:
		breathe(m.frame, m.breath, float64(m.stateTicks)/float64(t.InitTicks))
		m.stateTicks++
		if m.stateTicks >= t.InitTicks {
			if m.linkUp {
				m.enter(Connected)
			} else {
				m.enter(WaitingForConnection)
			}
		}
	case WaitingForConnection:
		pulse(m.frame, m.stateTicks, t)
		m.stateTicks++
	case Connected:
		flash(m.frame, m.flash, float64(m.stateTicks)/float64(t.FlashTicks))
		m.stateTicks++
		if m.stateTicks >= t.FlashTicks {
			m.enter(Black)
		}
	case Black:
		blank(m.frame)
	case InAnimation:
		copy(m.frame, m.ctrl.Current())
		if credit, ok := m.ctrl.Grant(); ok {
			m.ack(credit)
		}
		m.ctrl.Advance()
		if m.ctrl.Done() {
			log.Info().Uint64("columns", m.ctrl.Playback().MaxWritten).Msg("animation finished")
			m.enter(Black)
		}
	}
}

func (m *Machine) ack(credit uint32) {
	m.cur.Acks++
	m.cur.Credit += uint64(credit)
	if m.out == nil {
		return
	}
	if err := m.out.SendFrame(protocol.EncodeAck(credit)); err != nil {
		m.tickLog.Warn().Err(err).Uint32("credit", credit).Msg("send ack")
	}
}

func (m *Machine) flush() error {
	f := m.frame
	for i := 0; i < m.opts.LEDCount; i++ {
		m.strip.SetPixel(i, f[i*3], f[i*3+1], f[i*3+2])
	}
	return m.strip.Refresh()
}

func (m *Machine) publish() {
	m.cur.State = m.state
	m.cur.Playback = m.ctrl.Playback()
	m.mu.Lock()
	m.stats = m.cur
	m.mu.Unlock()
}
