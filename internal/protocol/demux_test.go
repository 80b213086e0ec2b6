package protocol

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct{ frames []Frame }

func (c *collector) handle(f Frame) {
	c.frames = append(c.frames, Frame{Kind: f.Kind, Payload: bytes.Clone(f.Payload)})
}

func stream() []byte {
	var b []byte
	b = AppendFrame(b, KindHello, nil)
	b = AppendFrame(b, KindBegin, []byte{25})
	for i := 0; i < 5; i++ {
		b = AppendFrame(b, KindPixelData, column(byte(i)))
	}
	b = AppendFrame(b, KindEnd, []byte{0})
	return b
}

func feedChunks(t *testing.T, data []byte, sizes func() int) []Frame {
	t.Helper()
	c := &collector{}
	d := NewDemuxer(DefaultMaxRecvBuffer, c.handle)
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		require.NoError(t, d.Feed(data[:n]))
		data = data[n:]
	}
	assert.Zero(t, d.Buffered())
	return c.frames
}

func TestReassemblyIsChunkBoundaryInvariant(t *testing.T) {
	data := stream()
	whole := feedChunks(t, data, func() int { return len(data) })
	require.Len(t, whole, 8)

	byteAtATime := feedChunks(t, data, func() int { return 1 })
	assert.Equal(t, whole, byteAtATime)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		random := feedChunks(t, data, func() int { return 1 + rng.Intn(700) })
		assert.Equal(t, whole, random)
	}
}

func TestFrameHeldUntilComplete(t *testing.T) {
	c := &collector{}
	d := NewDemuxer(DefaultMaxRecvBuffer, c.handle)
	f := EncodeFrame(KindBegin, []byte{25})

	require.NoError(t, d.Feed(f[:3]))
	assert.Empty(t, c.frames)
	require.NoError(t, d.Feed(f[3:5]))
	assert.Empty(t, c.frames)
	assert.Equal(t, 5, d.Buffered())

	require.NoError(t, d.Feed(f[5:]))
	require.Len(t, c.frames, 1)
	assert.Equal(t, KindBegin, c.frames[0].Kind)
	assert.Zero(t, d.Buffered())
}

func TestBufferOverrunKeepsPartialFrame(t *testing.T) {
	c := &collector{}
	d := NewDemuxer(DefaultMaxRecvBuffer, c.handle)
	col := EncodeFrame(KindPixelData, column(9))

	// Half a column is pending when an oversized chunk arrives.
	half := len(col) / 2
	require.NoError(t, d.Feed(col[:half]))

	err := d.Feed(make([]byte, DefaultMaxRecvBuffer))
	assert.ErrorIs(t, err, ErrBufferOverrun)
	assert.Equal(t, half, d.Buffered())

	require.NoError(t, d.Feed(col[half:]))
	require.Len(t, c.frames, 1)
	assert.Equal(t, column(9), c.frames[0].Payload)

	require.NoError(t, d.Feed(EncodeFrame(KindEnd, []byte{1})))
	require.Len(t, c.frames, 2)
	assert.Equal(t, KindEnd, c.frames[1].Kind)
}

func TestCumulativeOverrun(t *testing.T) {
	d := NewDemuxer(16, nil)
	// A frame declaring 10 bytes stays pending.
	require.NoError(t, d.Feed([]byte{10, 0, 0, 0, 2, 1, 2, 3}))
	require.NoError(t, d.Feed([]byte{4, 5, 6}))
	assert.ErrorIs(t, d.Feed(make([]byte, 6)), ErrBufferOverrun)
	assert.Equal(t, 11, d.Buffered())
}

func TestMalformedLengthClearsBuffer(t *testing.T) {
	c := &collector{}
	d := NewDemuxer(64, c.handle)

	err := d.Feed([]byte{0xFF, 0xFF, 0xFF, 0x7F, 2})
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Zero(t, d.Buffered())

	err = d.Feed([]byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	require.NoError(t, d.Feed(EncodeFrame(KindBegin, []byte{5})))
	require.Len(t, c.frames, 1)
}

func TestFramesBeforeMalformedAreDelivered(t *testing.T) {
	c := &collector{}
	d := NewDemuxer(64, c.handle)
	data := EncodeFrame(KindBegin, []byte{5})
	data = append(data, 0xFF, 0xFF, 0, 0)

	assert.ErrorIs(t, d.Feed(data), ErrMalformedFrame)
	assert.Len(t, c.frames, 1)
}

func TestReset(t *testing.T) {
	d := NewDemuxer(0, nil)
	assert.Equal(t, DefaultMaxRecvBuffer, d.Cap())
	require.NoError(t, d.Feed([]byte{9, 0, 0}))
	d.Reset()
	assert.Zero(t, d.Buffered())
}
