package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/pixelstick/internal/layout"
	"github.com/coreman2200/pixelstick/internal/render"
)

type PowerCfg struct {
	BudgetMA  float64 `yaml:"budget_ma"`
	LEDChanMA float64 `yaml:"led_chan_ma"`
	WhiteCap  float64 `yaml:"white_cap"`
}

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. SPI0.0, empty for the first port
	FreqKHz int    `yaml:"freq_khz"` // e.g. 2500
}

type LinkCfg struct {
	TCPAddr      string        `yaml:"tcp_addr"`
	RecvBuffer   int           `yaml:"recv_buffer"`
	QueueSize    int           `yaml:"queue_size"`
	QueueTimeout time.Duration `yaml:"queue_timeout"`
	WriteQueue   int           `yaml:"write_queue"`
}

type Config struct {
	LEDCount   int           `yaml:"led_count"`
	MaxColumns int           `yaml:"max_columns"`
	BaseRate   uint32        `yaml:"base_rate"`
	Tick       time.Duration `yaml:"tick"`
	Driver     string        `yaml:"driver"` // "spi" | "console" | "sim"
	HTTPAddr   string        `yaml:"http_addr"`
	LogLevel   string        `yaml:"log_level"`

	Link   LinkCfg       `yaml:"link"`
	SPI    SPI           `yaml:"spi,omitempty"`
	Layout layout.Strip  `yaml:"layout"`
	Power  PowerCfg      `yaml:"power"`
	Timing render.Timing `yaml:"timing"`
}

// Default is a 144 LED stick on the first SPI port.
func Default() *Config {
	return &Config{
		LEDCount:   144,
		MaxColumns: 64,
		BaseRate:   125,
		Tick:       200 * time.Microsecond,
		Driver:     "spi",
		HTTPAddr:   ":8080",
		LogLevel:   "info",
		Link: LinkCfg{
			TCPAddr:      ":7777",
			RecvBuffer:   4000,
			QueueSize:    16,
			QueueTimeout: 100 * time.Millisecond,
			WriteQueue:   64,
		},
		SPI:    SPI{FreqKHz: 2500},
		Power:  PowerCfg{LEDChanMA: 20},
		Timing: render.DefaultTiming(),
	}
}

// Overlay copies every field set in src over dst. Booleans are copied when
// true.
func Overlay(dst, src *Config) {
	if src == nil {
		return
	}
	setInt(&dst.LEDCount, src.LEDCount)
	setInt(&dst.MaxColumns, src.MaxColumns)
	if src.BaseRate != 0 {
		dst.BaseRate = src.BaseRate
	}
	setDur(&dst.Tick, src.Tick)
	setStr(&dst.Driver, src.Driver)
	setStr(&dst.HTTPAddr, src.HTTPAddr)
	setStr(&dst.LogLevel, src.LogLevel)

	setStr(&dst.Link.TCPAddr, src.Link.TCPAddr)
	setInt(&dst.Link.RecvBuffer, src.Link.RecvBuffer)
	setInt(&dst.Link.QueueSize, src.Link.QueueSize)
	setDur(&dst.Link.QueueTimeout, src.Link.QueueTimeout)
	setInt(&dst.Link.WriteQueue, src.Link.WriteQueue)

	setStr(&dst.SPI.Dev, src.SPI.Dev)
	setInt(&dst.SPI.FreqKHz, src.SPI.FreqKHz)

	if src.Layout.Reverse {
		dst.Layout.Reverse = true
	}
	setInt(&dst.Layout.Offset, src.Layout.Offset)

	setFloat(&dst.Power.BudgetMA, src.Power.BudgetMA)
	setFloat(&dst.Power.LEDChanMA, src.Power.LEDChanMA)
	setFloat(&dst.Power.WhiteCap, src.Power.WhiteCap)

	if src.Timing.InitTicks != 0 {
		dst.Timing.InitTicks = src.Timing.InitTicks
	}
	if src.Timing.PulseStepTicks != 0 {
		dst.Timing.PulseStepTicks = src.Timing.PulseStepTicks
	}
	setInt(&dst.Timing.PulseSpan, src.Timing.PulseSpan)
	if src.Timing.FlashTicks != 0 {
		dst.Timing.FlashTicks = src.Timing.FlashTicks
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks the values the rest of the program relies on.
func (c *Config) Validate() error {
	if c.LEDCount <= 0 {
		return fmt.Errorf("config: led_count must be > 0, got %d", c.LEDCount)
	}
	if c.MaxColumns <= 0 {
		return fmt.Errorf("config: max_columns must be > 0, got %d", c.MaxColumns)
	}
	// A whole column frame has to fit the receive buffer.
	if need := 5 + c.LEDCount*3; c.Link.RecvBuffer < need {
		return fmt.Errorf("config: link.recv_buffer %d cannot hold a %d LED column (%d bytes)", c.Link.RecvBuffer, c.LEDCount, need)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("config: tick must be > 0")
	}
	switch c.Driver {
	case "spi", "console", "sim":
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.Layout.Offset < 0 {
		return fmt.Errorf("config: layout.offset must be >= 0")
	}
	if c.Power.WhiteCap < 0 || c.Power.WhiteCap > 1 {
		return fmt.Errorf("config: power.white_cap must be within 0..1")
	}
	return nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
