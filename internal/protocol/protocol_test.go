package protocol

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/pixelstick/internal/event"
)

const testLEDs = 144

func column(seed byte) []byte {
	px := make([]byte, testLEDs*3)
	for i := range px {
		px[i] = seed + byte(i)
	}
	return px
}

func TestEncodeFrameLayout(t *testing.T) {
	got := EncodeFrame(KindBegin, []byte{25})
	assert.Equal(t, []byte{2, 0, 0, 0, 3, 25}, got)

	hello := EncodeFrame(KindHello, nil)
	assert.Equal(t, []byte{1, 0, 0, 0, 0}, hello)
}

func TestEncodeReplies(t *testing.T) {
	assert.Equal(t, []byte{5, 0, 0, 0, 1, 144, 0, 0, 0}, EncodePixelCount(144))
	assert.Equal(t, []byte{5, 0, 0, 0, 4, 0x40, 0, 0, 0}, EncodeAck(64))
}

func TestRoundTrip(t *testing.T) {
	events := []event.Event{
		event.Hello{},
		event.AnimationBegin{Speed: 25},
		event.AnimationBegin{Speed: 255},
		event.AnimationColumn{Pixels: column(7)},
		event.AnimationEnd{Aborted: false},
		event.AnimationEnd{Aborted: true},
	}
	for _, ev := range events {
		t.Run(event.Name(ev), func(t *testing.T) {
			wire, err := EncodeEvent(ev)
			require.NoError(t, err)

			var frames []Frame
			d := NewDemuxer(DefaultMaxRecvBuffer, func(f Frame) {
				frames = append(frames, Frame{Kind: f.Kind, Payload: bytes.Clone(f.Payload)})
			})
			require.NoError(t, d.Feed(wire))
			require.Len(t, frames, 1)

			got, err := Decode(frames[0], testLEDs)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestEncodeEventRejectsLocalEvents(t *testing.T) {
	_, err := EncodeEvent(event.LinkConnected{})
	assert.Error(t, err)
	_, err = EncodeEvent(event.Stop{})
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
		want error
	}{
		{"short column", Frame{Kind: KindPixelData, Payload: make([]byte, testLEDs*3-1)}, ErrMalformedFrame},
		{"long column", Frame{Kind: KindPixelData, Payload: make([]byte, testLEDs*3+3)}, ErrMalformedFrame},
		{"begin no speed", Frame{Kind: KindBegin}, ErrMalformedFrame},
		{"end no flag", Frame{Kind: KindEnd}, ErrMalformedFrame},
		{"unknown", Frame{Kind: 42}, ErrUnknownMessageKind},
		{"inbound ack", Frame{Kind: KindAck, Payload: []byte{1, 0, 0, 0}}, ErrUnknownMessageKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.f, testLEDs)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeColumnDoesNotAlias(t *testing.T) {
	payload := column(1)
	ev, err := Decode(Frame{Kind: KindPixelData, Payload: payload}, testLEDs)
	require.NoError(t, err)
	payload[0] = 0xFF
	assert.Equal(t, byte(1), ev.(event.AnimationColumn).Pixels[0])
}

func TestDecodeU32(t *testing.T) {
	v, err := DecodeU32(Frame{Kind: KindAck, Payload: []byte{9, 1, 0, 0}}, KindAck)
	require.NoError(t, err)
	assert.Equal(t, uint32(265), v)

	_, err = DecodeU32(Frame{Kind: KindAck, Payload: []byte{9}}, KindAck)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeU32(Frame{Kind: KindPixelCount, Payload: []byte{9, 0, 0, 0}}, KindAck)
	assert.ErrorIs(t, err, ErrUnknownMessageKind)
}

type captureSender struct{ frames [][]byte }

func (c *captureSender) SendFrame(b []byte) error {
	c.frames = append(c.frames, b)
	return nil
}

func TestDispatchHelloRepliesWithPixelCount(t *testing.T) {
	out := &captureSender{}
	ch := event.NewChannel(4, 0)
	d := NewDispatcher(testLEDs, out, ch)

	var dispatchErr error
	demux := NewDemuxer(DefaultMaxRecvBuffer, func(f Frame) {
		dispatchErr = d.Dispatch(context.Background(), f)
	})
	require.NoError(t, demux.Feed([]byte{1, 0, 0, 0, 0}))
	require.NoError(t, dispatchErr)

	require.Len(t, out.frames, 1)
	assert.Equal(t, EncodePixelCount(testLEDs), out.frames[0])
	assert.Equal(t, 0, ch.Len(), "hello is answered, not queued")
}

func TestDispatchQueuesEvents(t *testing.T) {
	out := &captureSender{}
	ch := event.NewChannel(4, 0)
	d := NewDispatcher(testLEDs, out, ch)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, Frame{Kind: KindBegin, Payload: []byte{25}}))
	require.NoError(t, d.Dispatch(ctx, Frame{Kind: KindPixelData, Payload: column(3)}))
	assert.ErrorIs(t, d.Dispatch(ctx, Frame{Kind: 9}), ErrUnknownMessageKind)

	ev, ok := ch.TryRecv()
	require.True(t, ok)
	assert.Equal(t, event.AnimationBegin{Speed: 25}, ev)
	ev, ok = ch.TryRecv()
	require.True(t, ok)
	assert.Equal(t, column(3), ev.(event.AnimationColumn).Pixels)
	assert.Empty(t, out.frames)
}

func TestDispatchReportsDroppedEvents(t *testing.T) {
	ch := event.NewChannel(1, 1)
	d := NewDispatcher(testLEDs, &captureSender{}, ch)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, Frame{Kind: KindEnd, Payload: []byte{0}}))
	err := d.Dispatch(ctx, Frame{Kind: KindEnd, Payload: []byte{0}})
	assert.ErrorIs(t, err, event.ErrEventDropped)
}
