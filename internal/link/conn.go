// Package link attaches a sender to the device over TCP or a websocket and
// runs the protocol session for it.
package link

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one attached peer's byte stream.
type Conn interface {
	// ReadChunk blocks for the next piece of the inbound stream. The slice
	// is only valid until the following call.
	ReadChunk() ([]byte, error)
	// WriteFrame writes one complete outbound frame.
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

// DefaultReadChunk is the read size for stream transports.
const DefaultReadChunk = 1024

type streamConn struct {
	c            net.Conn
	buf          []byte
	writeTimeout time.Duration
}

// NewStreamConn wraps a byte stream such as a TCP connection.
func NewStreamConn(c net.Conn, writeTimeout time.Duration) Conn {
	return &streamConn{c: c, buf: make([]byte, DefaultReadChunk), writeTimeout: writeTimeout}
}

func (s *streamConn) ReadChunk() ([]byte, error) {
	n, err := s.c.Read(s.buf)
	if n > 0 {
		return s.buf[:n], nil
	}
	return nil, err
}

func (s *streamConn) WriteFrame(frame []byte) error {
	if s.writeTimeout > 0 {
		_ = s.c.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	_, err := s.c.Write(frame)
	return err
}

func (s *streamConn) Close() error { return s.c.Close() }

func (s *streamConn) RemoteAddr() string {
	if a := s.c.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
}

// NewWebsocketConn wraps an upgraded websocket. Inbound binary messages are
// treated as stream chunks; each outbound frame is one binary message.
func NewWebsocketConn(c *websocket.Conn, writeTimeout time.Duration) Conn {
	return &wsConn{c: c, writeTimeout: writeTimeout}
}

func (w *wsConn) ReadChunk() ([]byte, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteFrame(frame []byte) error {
	if w.writeTimeout > 0 {
		_ = w.c.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.c.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *wsConn) Close() error { return w.c.Close() }

func (w *wsConn) RemoteAddr() string { return w.c.RemoteAddr().String() }

// closedNormally reports whether a read error is an ordinary hang-up.
func closedNormally(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
