package protocol

import (
	"context"
	"fmt"

	"github.com/coreman2200/pixelstick/internal/event"
)

// Sender hands a fully framed message to the transport.
type Sender interface {
	SendFrame(frame []byte) error
}

// Sink receives decoded events. *event.Channel implements it.
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
}

// Dispatcher decodes frames into events. Hello is answered directly with the
// configured LED count; everything else goes to the sink.
type Dispatcher struct {
	ledCount int
	out      Sender
	sink     Sink
}

func NewDispatcher(ledCount int, out Sender, sink Sink) *Dispatcher {
	return &Dispatcher{ledCount: ledCount, out: out, sink: sink}
}

// Dispatch decodes and routes one frame.
func (d *Dispatcher) Dispatch(ctx context.Context, f Frame) error {
	ev, err := Decode(f, d.ledCount)
	if err != nil {
		return err
	}
	if _, ok := ev.(event.Hello); ok {
		if err := d.out.SendFrame(EncodePixelCount(uint32(d.ledCount))); err != nil {
			return fmt.Errorf("protocol: pixel count reply: %w", err)
		}
		return nil
	}
	if err := d.sink.Send(ctx, ev); err != nil {
		return fmt.Errorf("protocol: deliver %s: %w", event.Name(ev), err)
	}
	return nil
}
