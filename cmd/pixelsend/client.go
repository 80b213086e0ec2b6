package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/protocol"
)

var ErrNoCredit = errors.New("pixelsend: timed out waiting for credit")

// Client speaks the sender side of the protocol over one connection.
type Client struct {
	conn    io.ReadWriteCloser
	timeout time.Duration

	mu     sync.Mutex
	credit uint64
	acked  uint64
	notify chan struct{}
	counts chan uint32
	done   chan struct{}
	err    error
}

// NewClient starts reading replies from conn. timeout bounds every wait for
// the device.
func NewClient(conn io.ReadWriteCloser, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		conn:    conn,
		timeout: timeout,
		notify:  make(chan struct{}, 1),
		counts:  make(chan uint32, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) readLoop() {
	defer close(c.done)
	d := protocol.NewDemuxer(protocol.DefaultMaxRecvBuffer, c.handle)
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if ferr := d.Feed(buf[:n]); ferr != nil {
				log.Warn().Err(ferr).Msg("reply stream")
			}
		}
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
	}
}

func (c *Client) handle(f protocol.Frame) {
	switch f.Kind {
	case protocol.KindPixelCount:
		n, err := protocol.DecodeU32(f, protocol.KindPixelCount)
		if err != nil {
			log.Warn().Err(err).Msg("pixel count reply")
			return
		}
		select {
		case c.counts <- n:
		default:
		}
	case protocol.KindAck:
		n, err := protocol.DecodeU32(f, protocol.KindAck)
		if err != nil {
			log.Warn().Err(err).Msg("ack")
			return
		}
		c.mu.Lock()
		c.credit += uint64(n)
		c.acked += uint64(n)
		c.mu.Unlock()
		log.Debug().Uint32("credit", n).Msg("ack")
		select {
		case c.notify <- struct{}{}:
		default:
		}
	default:
		log.Warn().Stringer("kind", f.Kind).Msg("unexpected reply")
	}
}

func (c *Client) send(ev event.Event) error {
	b, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(b)
	return err
}

// Hello asks the device for its LED count.
func (c *Client) Hello(ctx context.Context) (int, error) {
	if err := c.send(event.Hello{}); err != nil {
		return 0, err
	}
	select {
	case n := <-c.counts:
		return int(n), nil
	case <-c.done:
		return 0, fmt.Errorf("pixelsend: connection closed: %w", c.readErr())
	case <-time.After(c.timeout):
		return 0, errors.New("pixelsend: no reply to hello")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Client) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// take consumes one column of credit, waiting for an ack if needed.
func (c *Client) take(ctx context.Context) error {
	if err := c.awaitCredit(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.credit--
	c.mu.Unlock()
	return nil
}

// awaitCredit returns once at least one column of credit is available.
func (c *Client) awaitCredit(ctx context.Context) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	for {
		c.mu.Lock()
		ok := c.credit > 0
		c.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-c.notify:
		case <-c.done:
			return fmt.Errorf("pixelsend: connection closed: %w", c.readErr())
		case <-timer.C:
			return ErrNoCredit
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// begin starts an animation and waits for the first grant. A device that
// is still booting drops Begin, so it is sent a second time before giving up.
func (c *Client) begin(ctx context.Context, speed uint8) error {
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		c.credit = 0
		c.mu.Unlock()
		if err := c.send(event.AnimationBegin{Speed: speed}); err != nil {
			return err
		}
		err := c.awaitCredit(ctx)
		if !errors.Is(err, ErrNoCredit) {
			return err
		}
		if attempt == 2 {
			return fmt.Errorf("%w after begin, device may not be ready", err)
		}
		log.Warn().Dur("waited", c.timeout).Msg("no credit after begin, device may still be booting; sending begin again")
	}
}

// Play streams src as one animation, never sending a column the device has
// not granted.
func (c *Client) Play(ctx context.Context, speed uint8, src Source) (int, error) {
	if err := c.begin(ctx, speed); err != nil {
		return 0, err
	}
	sent := 0
	for {
		px, ok := src.Next()
		if !ok {
			break
		}
		if err := c.take(ctx); err != nil {
			_ = c.send(event.AnimationEnd{Aborted: true})
			return sent, err
		}
		if err := c.send(event.AnimationColumn{Pixels: px}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, c.send(event.AnimationEnd{})
}

// Abort ends the current animation early.
func (c *Client) Abort() error { return c.send(event.AnimationEnd{Aborted: true}) }

// wsStream presents a websocket as a byte stream: every write is one binary
// message and reads drain messages in order.
type wsStream struct {
	c *websocket.Conn
	r io.Reader
}

func dialWebsocket(url string) (*wsStream, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &wsStream{c: c}, nil
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.r == nil {
			mt, r, err := w.c.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			w.r = r
		}
		n, err := w.r.Read(p)
		if err == io.EOF {
			w.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) Close() error { return w.c.Close() }
