package led

import (
	"image"
	"image/color"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"
)

// Console prints the strip as a row of ANSI colored cells, for hosts
// without an SPI port. Output is throttled so a fast render loop does not
// flood the terminal.
type Console struct {
	mu       sync.Mutex
	drawer   display.Drawer
	img      *image.NRGBA
	throttle time.Duration
	lastEmit time.Time
}

func NewConsole(count int, throttle time.Duration) *Console {
	if throttle <= 0 {
		throttle = 50 * time.Millisecond
	}
	return &Console{
		drawer:   screen.New(count),
		img:      image.NewNRGBA(image.Rect(0, 0, count, 1)),
		throttle: throttle,
	}
}

func (c *Console) Write(rgb []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if c.lastEmit.Add(c.throttle).After(now) {
		return nil
	}
	c.lastEmit = now
	n := c.img.Bounds().Dx()
	for i := 0; i < n && i*3+2 < len(rgb); i++ {
		c.img.SetNRGBA(i, 0, color.NRGBA{R: rgb[i*3], G: rgb[i*3+1], B: rgb[i*3+2], A: 255})
	}
	return c.drawer.Draw(c.drawer.Bounds(), c.img, image.Point{})
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawer.Halt()
}
