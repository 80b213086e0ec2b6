package anim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leds = 4

func col(v byte) []byte {
	px := make([]byte, leds*3)
	for i := range px {
		px[i] = v
	}
	return px
}

func TestRingSlotsWrap(t *testing.T) {
	r := NewRing(4, leds)
	assert.Equal(t, 4, r.Columns())
	assert.Equal(t, leds*3, r.Width())

	r.Put(1, col(1))
	r.Put(5, col(5))
	assert.Equal(t, col(5), r.Slot(1), "index 5 maps onto slot 1")

	r.Clear()
	assert.Equal(t, col(0), r.Slot(5))
}

func TestFramesPerPixel(t *testing.T) {
	c := NewController(NewRing(0, leds), 0)
	assert.Equal(t, uint32(5), c.FramesPerPixel(25))
	assert.Equal(t, uint32(125), c.FramesPerPixel(1))
	assert.Equal(t, uint32(1), c.FramesPerPixel(200), "fast speeds clamp to one tick per column")
}

func TestBeginRejectsZeroSpeed(t *testing.T) {
	c := NewController(NewRing(0, leds), 0)
	require.NoError(t, c.Begin(25))
	require.NoError(t, c.Write(col(1)))

	assert.ErrorIs(t, c.Begin(0), ErrInvalidSpeed)
	pb := c.Playback()
	assert.Equal(t, uint32(5), pb.FramesPerPixel)
	assert.Equal(t, uint64(1), pb.MaxWritten, "playback survives a rejected begin")
}

func TestBeginResetsPlayback(t *testing.T) {
	c := NewController(NewRing(0, leds), 0)
	require.NoError(t, c.Begin(25))
	require.NoError(t, c.Write(col(1)))
	c.Grant()
	c.Advance()
	c.End()

	require.NoError(t, c.Begin(125))
	assert.Equal(t, Playback{FramesPerPixel: 1}, c.Playback())
}

func TestPlaybackAdvancesEveryFramesPerPixel(t *testing.T) {
	c := NewController(NewRing(0, leds), 0)
	require.NoError(t, c.Begin(25))
	for i := 0; i < 4; i++ {
		c.Advance()
		assert.Equal(t, uint64(0), c.Playback().Played())
	}
	c.Advance()
	assert.Equal(t, uint64(1), c.Playback().Played())
}

func TestWriteRejectsWrongSize(t *testing.T) {
	c := NewController(NewRing(0, leds), 0)
	assert.ErrorIs(t, c.Write(make([]byte, 5)), ErrColumnSize)
}

func TestWriteRejectsOverrun(t *testing.T) {
	c := NewController(NewRing(8, leds), 0)
	require.NoError(t, c.Begin(125))
	for i := 0; i < 8; i++ {
		require.NoError(t, c.Write(col(byte(i))))
	}
	err := c.Write(col(99))
	assert.ErrorIs(t, err, ErrRingBufferOverrun)
	assert.Equal(t, col(0), c.Current(), "the unplayed column survives")
	assert.Equal(t, uint64(8), c.Playback().MaxWritten)

	c.Advance()
	assert.NoError(t, c.Write(col(8)), "space frees once playback moves on")
	assert.Equal(t, col(8), c.Ring().Slot(8))
}

func TestInitialGrantOpensWindow(t *testing.T) {
	c := NewController(NewRing(64, leds), 0)
	require.NoError(t, c.Begin(25))

	credit, ok := c.Grant()
	require.True(t, ok)
	assert.Equal(t, uint32(64), credit)

	_, ok = c.Grant()
	assert.False(t, ok, "credit is never granted twice")
}

func TestFullWindowGrantsNothing(t *testing.T) {
	c := NewController(NewRing(64, leds), 0)
	require.NoError(t, c.Begin(25))
	_, ok := c.Grant()
	require.True(t, ok)
	for i := 0; i < 64; i++ {
		require.NoError(t, c.Write(col(byte(i))))
	}
	// ack column sits exactly one ring ahead of playback
	assert.Equal(t, c.Playback().AckColumn, c.Playback().Played()+64)
	_, ok = c.Grant()
	assert.False(t, ok, "a full window must not wrap into a fresh grant")
	assert.ErrorIs(t, c.Write(col(1)), ErrRingBufferOverrun)
}

func TestNoGrantAfterEnd(t *testing.T) {
	c := NewController(NewRing(64, leds), 0)
	require.NoError(t, c.Begin(25))
	c.End()
	_, ok := c.Grant()
	assert.False(t, ok)
}

func TestDone(t *testing.T) {
	c := NewController(NewRing(64, leds), 0)
	require.NoError(t, c.Begin(125))
	require.NoError(t, c.Write(col(1)))
	require.NoError(t, c.Write(col(2)))
	assert.False(t, c.Done())

	c.End()
	c.Advance()
	assert.False(t, c.Done())
	c.Advance()
	assert.True(t, c.Done())
}

func TestAbandon(t *testing.T) {
	c := NewController(NewRing(64, leds), 0)
	require.NoError(t, c.Begin(25))
	require.NoError(t, c.Write(col(1)))
	c.Abandon()
	assert.Equal(t, Playback{FramesPerPixel: 1}, c.Playback())
	assert.Equal(t, col(0), c.Current(), "abandoned columns are not replayed")
}

// sender transmits as many columns as it has been granted.
type sender struct {
	credit uint64
	sent   uint64
	total  uint64
}

func (s *sender) pump(t *testing.T, c *Controller) {
	for s.sent < s.credit && s.sent < s.total {
		require.NoError(t, c.Write(col(byte(s.sent))), "column %d", s.sent)
		s.sent++
	}
}

func TestCreditBoundsOutstandingColumns(t *testing.T) {
	const columns = 64
	c := NewController(NewRing(columns, leds), 0)
	require.NoError(t, c.Begin(25))
	s := &sender{total: 70}

	var acks int
	firstAckAt := uint64(0)
	for tick := 0; tick < 2000; tick++ {
		if credit, ok := c.Grant(); ok {
			if acks == 0 {
				firstAckAt = s.sent
			}
			acks++
			s.credit += uint64(credit)
		}
		pb := c.Playback()
		require.LessOrEqual(t, ahead(pb.AckColumn, pb.Played()), uint64(columns))
		require.GreaterOrEqual(t, pb.AckColumn, pb.Played())
		require.LessOrEqual(t, ahead(pb.MaxWritten, pb.Played()), uint64(columns))

		s.pump(t, c)
		c.Advance()
	}

	assert.Equal(t, uint64(70), s.sent)
	assert.Zero(t, firstAckAt, "credit is granted before any column is accepted")
	assert.GreaterOrEqual(t, acks, 2, "the 65th column needs a second grant")
}

func TestSlowSenderStillBounded(t *testing.T) {
	const columns = 16
	c := NewController(NewRing(columns, leds), 0)
	require.NoError(t, c.Begin(125))
	s := &sender{total: 1000}

	for tick := 0; tick < 500; tick++ {
		if credit, ok := c.Grant(); ok {
			s.credit += uint64(credit)
		}
		pb := c.Playback()
		require.LessOrEqual(t, ahead(pb.AckColumn, pb.Played()), uint64(columns))
		if tick%3 == 0 && s.sent < s.credit {
			require.NoError(t, c.Write(col(1)))
			s.sent++
		}
		c.Advance()
	}
	assert.LessOrEqual(t, s.sent, s.credit)
}
