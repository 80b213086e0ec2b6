package link

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/pixelstick/internal/diagnostics"
	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/protocol"
)

var (
	ErrBusy           = errors.New("link: another session is active")
	ErrNoSession      = errors.New("link: no session")
	ErrSessionClosed  = errors.New("link: session closed")
	ErrWriteQueueFull = errors.New("link: write queue full")
)

const (
	DefaultWriteQueue   = 64
	DefaultWriteTimeout = time.Second
)

type Options struct {
	LEDCount     int
	RecvBuffer   int
	WriteQueue   int
	WriteTimeout time.Duration
	// Diag receives protocol faults. It must not block.
	Diag diagnostics.Sink
}

// Stats is a snapshot of hub activity.
type Stats struct {
	Active   string `json:"active,omitempty"`
	Remote   string `json:"remote,omitempty"`
	Sessions uint64 `json:"sessions"`
	Refused  uint64 `json:"refused"`
	Faults   uint64 `json:"faults"`
	Dropped  uint64 `json:"dropped_writes"`
}

// Hub admits one session at a time and routes replies to it. It implements
// protocol.Sender so the render loop can address whoever is attached.
type Hub struct {
	opts Options
	sink protocol.Sink

	base   context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	cur *Session

	sessions uint64
	refused  uint64
	faults   uint64
	dropped  uint64

	faultLog zerolog.Logger
}

func NewHub(opts Options, sink protocol.Sink) *Hub {
	if opts.RecvBuffer <= 0 {
		opts.RecvBuffer = protocol.DefaultMaxRecvBuffer
	}
	if opts.WriteQueue <= 0 {
		opts.WriteQueue = DefaultWriteQueue
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Hub{
		opts:     opts,
		sink:     sink,
		base:     base,
		cancel:   cancel,
		faultLog: log.Logger.Sample(&zerolog.BurstSampler{Burst: 10, Period: time.Second}),
	}
}

// Close ends the active session and stops retrying link events.
func (h *Hub) Close() error {
	h.cancel()
	h.mu.Lock()
	s := h.cur
	h.mu.Unlock()
	if s != nil {
		return s.conn.Close()
	}
	return nil
}

// SendFrame queues frame for the active session.
func (h *Hub) SendFrame(frame []byte) error {
	h.mu.Lock()
	s := h.cur
	h.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}
	return s.SendFrame(frame)
}

// Active reports whether a session is attached.
func (h *Hub) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur != nil
}

func (h *Hub) Stats() Stats {
	st := Stats{
		Sessions: atomic.LoadUint64(&h.sessions),
		Refused:  atomic.LoadUint64(&h.refused),
		Faults:   atomic.LoadUint64(&h.faults),
		Dropped:  atomic.LoadUint64(&h.dropped),
	}
	h.mu.Lock()
	if h.cur != nil {
		st.Active = h.cur.id
		st.Remote = h.cur.conn.RemoteAddr()
	}
	h.mu.Unlock()
	return st
}

// Serve runs a session on c until the peer hangs up or ctx is done. A
// second peer is refused with ErrBusy and c is closed.
func (h *Hub) Serve(ctx context.Context, c Conn) error {
	h.mu.Lock()
	if h.cur != nil {
		h.mu.Unlock()
		atomic.AddUint64(&h.refused, 1)
		log.Info().Str("remote", c.RemoteAddr()).Msg("refusing link, session active")
		_ = c.Close()
		return ErrBusy
	}
	s := newSession(h, c)
	h.cur = s
	h.mu.Unlock()
	atomic.AddUint64(&h.sessions, 1)

	l := log.With().Str("session", s.id).Str("remote", c.RemoteAddr()).Logger()
	l.Info().Msg("link up")
	h.deliverLink(event.LinkConnected{Session: s.id})

	go s.writeLoop()
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	err := s.readLoop(ctx)
	close(stop)
	s.close()

	// Disconnect is delivered while the slot is still held so a new session's
	// LinkConnected cannot overtake it.
	h.deliverLink(event.LinkDisconnected{Session: s.id})
	h.mu.Lock()
	h.cur = nil
	h.mu.Unlock()

	if err != nil {
		l.Warn().Err(err).Msg("link down")
		return err
	}
	l.Info().Msg("link down")
	return nil
}

// deliverLink retries until the event is queued or the hub is closed. Link
// events are rare and must not be lost.
func (h *Hub) deliverLink(ev event.Event) {
	for {
		err := h.sink.Send(h.base, ev)
		if err == nil || h.base.Err() != nil {
			return
		}
		h.faultLog.Warn().Err(err).Str("event", event.Name(ev)).Msg("event queue full, retrying")
	}
}

func (h *Hub) fault(s *Session, err error) {
	atomic.AddUint64(&h.faults, 1)
	h.faultLog.Warn().Err(err).Str("session", s.id).Msg("link fault")
	if h.opts.Diag != nil {
		h.opts.Diag(diagnostics.FromError(err, map[string]any{
			"session":  s.id,
			"buffered": s.demux.Buffered(),
		}))
	}
}

// ServeListener accepts stream connections until ctx is done.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("link listener starting")
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			_ = h.Serve(ctx, NewStreamConn(c, h.opts.WriteTimeout))
		}()
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// HandleWebsocket attaches a sender over a websocket.
func (h *Hub) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	if h.Active() {
		atomic.AddUint64(&h.refused, 1)
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_ = h.Serve(r.Context(), NewWebsocketConn(conn, h.opts.WriteTimeout))
}

// Session is one attached sender.
type Session struct {
	id    string
	hub   *Hub
	conn  Conn
	demux *protocol.Demuxer
	disp  *protocol.Dispatcher
	out   chan []byte
	done  chan struct{}
	once  sync.Once
}

func newSession(h *Hub, c Conn) *Session {
	s := &Session{
		id:   uuid.NewString(),
		hub:  h,
		conn: c,
		out:  make(chan []byte, h.opts.WriteQueue),
		done: make(chan struct{}),
	}
	s.disp = protocol.NewDispatcher(h.opts.LEDCount, s, h.sink)
	return s
}

func (s *Session) ID() string { return s.id }

// SendFrame queues frame without blocking. When the peer is not draining
// fast enough the frame is dropped.
func (s *Session) SendFrame(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- frame:
		return nil
	default:
		atomic.AddUint64(&s.hub.dropped, 1)
		return ErrWriteQueueFull
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case f := <-s.out:
			if err := s.conn.WriteFrame(f); err != nil {
				log.Debug().Err(err).Str("session", s.id).Msg("write frame")
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	s.demux = protocol.NewDemuxer(s.hub.opts.RecvBuffer, func(f protocol.Frame) {
		if err := s.disp.Dispatch(ctx, f); err != nil {
			s.hub.fault(s, err)
		}
	})
	for {
		chunk, err := s.conn.ReadChunk()
		if err != nil {
			if closedNormally(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.demux.Feed(chunk); err != nil {
			s.hub.fault(s, err)
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
