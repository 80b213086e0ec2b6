package main

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/pixelstick/internal/protocol"
)

// bootingDevice ignores the first dropBegins Begin frames, the way a device
// still in its boot sweep does, then grants credit for later ones.
type bootingDevice struct {
	conn       net.Conn
	dropBegins int32
	begins     int32
	columns    int32
}

func startBootingDevice(t *testing.T, dropBegins int32) (*bootingDevice, *Client) {
	t.Helper()
	devSide, hostSide := net.Pipe()
	d := &bootingDevice{conn: devSide, dropBegins: dropBegins}
	go d.serve()
	c := NewClient(hostSide, 50*time.Millisecond)
	t.Cleanup(func() {
		c.Close()
		devSide.Close()
	})
	return d, c
}

func (d *bootingDevice) serve() {
	dm := protocol.NewDemuxer(0, func(f protocol.Frame) {
		switch f.Kind {
		case protocol.KindBegin:
			if atomic.AddInt32(&d.begins, 1) > d.dropBegins {
				go d.conn.Write(protocol.EncodeAck(4))
			}
		case protocol.KindPixelData:
			atomic.AddInt32(&d.columns, 1)
		}
	})
	buf := make([]byte, 512)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			_ = dm.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func TestPlayResendsBeginToBootingDevice(t *testing.T) {
	d, c := startBootingDevice(t, 1)
	n, err := c.Play(context.Background(), 25, NewAurora(2, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&d.begins))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&d.columns) == 3 }, time.Second, time.Millisecond)
}

func TestPlayReportsDeviceNotReady(t *testing.T) {
	d, c := startBootingDevice(t, 2)
	n, err := c.Play(context.Background(), 25, NewAurora(2, 3, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCredit))
	assert.Contains(t, err.Error(), "may not be ready")
	assert.Zero(t, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&d.begins))
	assert.Zero(t, atomic.LoadInt32(&d.columns))
}
