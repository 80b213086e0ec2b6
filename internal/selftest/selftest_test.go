package selftest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recStrip struct {
	px     []byte
	frames [][]byte
}

func (s *recStrip) SetPixel(i int, r, g, b uint8) {
	s.px[i*3], s.px[i*3+1], s.px[i*3+2] = r, g, b
}

func (s *recStrip) Refresh() error {
	s.frames = append(s.frames, bytes.Clone(s.px))
	return nil
}

func TestIndexSweep(t *testing.T) {
	r := NewRunner(Plan{Kind: IndexSweep})
	rgb := make([]byte, 9)
	for i := 0; i < 3; i++ {
		require.True(t, r.Step(rgb))
		for j := 0; j < 3; j++ {
			want := byte(0)
			if j == i {
				want = 255
			}
			assert.Equal(t, []byte{want, want, want}, rgb[j*3:j*3+3], "step %d pixel %d", i, j)
		}
	}
	assert.False(t, r.Step(rgb))
}

func TestRGBChannels(t *testing.T) {
	r := NewRunner(Plan{Kind: RGBTest, Level: 10})
	rgb := make([]byte, 6)
	require.True(t, r.Step(rgb))
	assert.Equal(t, []byte{10, 0, 0, 10, 0, 0}, rgb)
	require.True(t, r.Step(rgb))
	assert.Equal(t, []byte{0, 10, 0, 0, 10, 0}, rgb)
	require.True(t, r.Step(rgb))
	assert.Equal(t, []byte{0, 0, 10, 0, 0, 10}, rgb)
	assert.False(t, r.Step(rgb))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("fill")
	require.NoError(t, err)
	assert.Equal(t, Fill, k)
	_, err = ParseKind("plane_z")
	assert.Error(t, err)
}

func TestRunEndsBlank(t *testing.T) {
	s := &recStrip{px: make([]byte, 6)}
	require.NoError(t, Run(context.Background(), s, 2, Plan{Kind: IndexSweep}, time.Millisecond))
	require.Len(t, s.frames, 3)
	assert.Equal(t, []byte{255, 255, 255, 0, 0, 0}, s.frames[0])
	assert.Equal(t, []byte{0, 0, 0, 255, 255, 255}, s.frames[1])
	assert.Equal(t, make([]byte, 6), s.frames[2])
}

func TestRunCancelled(t *testing.T) {
	s := &recStrip{px: make([]byte, 3)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, s, 1, Plan{Kind: Fill}, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, make([]byte, 3), s.frames[len(s.frames)-1])
}
