// Package server exposes the device over HTTP: the websocket link, a live
// preview of the strip, diagnostics, control and health.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/pixelstick/internal/diagnostics"
	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/link"
	"github.com/coreman2200/pixelstick/internal/protocol"
	"github.com/coreman2200/pixelstick/internal/render"
)

// Machine is the part of the render machine the server reports on.
type Machine interface {
	Stats() render.Stats
}

// Queue is the event channel as seen by the server.
type Queue interface {
	protocol.Sink
	Stats() event.Stats
	Len() int
}

type Server struct {
	LEDCount int
	Driver   string

	machine Machine
	hub     *link.Hub
	queue   Queue
	preview *Preview

	mu          sync.RWMutex
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	diags       chan diagnostics.Diagnostic
}

func New(ledCount int, machine Machine, hub *link.Hub, queue Queue, preview *Preview) *Server {
	return &Server{
		LEDCount:    ledCount,
		machine:     machine,
		hub:         hub,
		queue:       queue,
		preview:     preview,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		diags:       make(chan diagnostics.Diagnostic, 32),
	}
}

// PushDiag queues d for diagnostics viewers. It never blocks; when viewers
// fall behind the report is dropped.
func (s *Server) PushDiag(d diagnostics.Diagnostic) {
	select {
	case s.diags <- d:
	default:
	}
}

// Routes returns the HTTP handler for all endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/link", s.hub.HandleWebsocket)
	mux.HandleFunc("/preview", s.HandlePreviewWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return withCORS(mux)
}

// Run fans preview frames and diagnostics out to viewers until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var updates <-chan struct{}
	if s.preview != nil {
		updates = s.preview.Updates()
	}
	for {
		select {
		case <-updates:
			rgb, id := s.preview.Latest()
			s.broadcastFrame(rgb, id)
		case d := <-s.diags:
			s.broadcastDiag(d)
		case <-ctx.Done():
			s.closeClients()
			return
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) HandlePreviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.sendTopology(conn)
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	go s.drain(conn, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go s.drain(conn, s.diagClients)
}

// drain reads until the viewer goes away, then forgets it.
func (s *Server) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ControlMsg is accepted on /control.
type ControlMsg struct {
	Stop     bool   `json:"stop,omitempty"`
	LogLevel string `json:"log_level,omitempty"`
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			s.PushDiag(diagnostics.Diagnostic{
				Severity: diagnostics.Warn, Code: "CONTROL.BAD_JSON", Summary: "Control message is not valid JSON",
				Detail: err.Error(),
			})
			continue
		}
		s.applyControl(r.Context(), msg)
		s.sendHealth(conn)
	}
}

func (s *Server) applyControl(ctx context.Context, msg ControlMsg) {
	if msg.Stop {
		if err := s.queue.Send(ctx, event.Stop{}); err != nil {
			s.PushDiag(diagnostics.FromError(err, map[string]any{"control": "stop"}))
		} else {
			s.PushDiag(diagnostics.Diagnostic{Severity: diagnostics.Info, Code: "CONTROL.STOP", Summary: "Stop requested"})
		}
	}
	if msg.LogLevel != "" {
		lvl, err := zerolog.ParseLevel(msg.LogLevel)
		if err != nil {
			s.PushDiag(diagnostics.Diagnostic{
				Severity: diagnostics.Warn, Code: "CONTROL.LOG_LEVEL", Summary: "Unknown log level",
				Evidence: map[string]any{"level": msg.LogLevel},
			})
			return
		}
		zerolog.SetGlobalLevel(lvl)
		log.Info().Stringer("level", lvl).Msg("log level changed")
	}
}

// Health is the /health response.
type Health struct {
	State    render.State `json:"state"`
	UptimeS  float64      `json:"uptime_s"`
	LEDCount int          `json:"led_count"`
	Driver   string       `json:"driver"`
	Render   render.Stats `json:"render"`
	Link     link.Stats   `json:"link"`
	Events   event.Stats  `json:"events"`
	Queued   int          `json:"queued"`
}

func (s *Server) health() Health {
	st := s.machine.Stats()
	return Health{
		State:    st.State,
		UptimeS:  time.Since(s.startTime).Seconds(),
		LEDCount: s.LEDCount,
		Driver:   s.Driver,
		Render:   st,
		Link:     s.hub.Stats(),
		Events:   s.queue.Stats(),
		Queued:   s.queue.Len(),
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

func (s *Server) sendHealth(conn *websocket.Conn) {
	b, _ := json.Marshal(s.health())
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) sendTopology(conn *websocket.Conn) {
	top := map[string]any{
		"count":  s.LEDCount,
		"driver": s.Driver,
	}
	b, _ := json.Marshal(top)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) broadcastFrame(rgb []byte, id uint64) {
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, RGB: rgb})
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *Server) broadcastDiag(d diagnostics.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	for c := range s.diagClients {
		c.Close()
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
