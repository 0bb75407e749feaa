package camera

import (
	"fmt"
	"time"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/hw/gpio"
)

// remoteLine is one active-low wire of the MC-DC2 style remote connector.
type remoteLine struct {
	name string
	pin  int
	g    gpio.Driver
}

func (l remoteLine) press() error {
	debug.Verbose("Camera: %s line pressed (pin %d)", l.name, l.pin)
	if err := l.g.WritePin(l.pin, gpio.Low); err != nil {
		return gpioError(l.name, l.pin, err)
	}
	return nil
}

func (l remoteLine) release() error {
	if err := l.g.WritePin(l.pin, gpio.High); err != nil {
		return gpioError(l.name+" release", l.pin, err)
	}
	return nil
}

// NikonD90GPIO fires a Nikon D90 through its remote connector. Both FOCUS and
// SHUTTER are pulled low to activate, GND goes to the Pi ground.
//
// The connector gives no feedback, so focus and exposure are reported locked
// once the autofocus delay has elapsed with FOCUS held.
type NikonD90GPIO struct {
	focus, shutter remoteLine
	afSettle       time.Duration
	hold           time.Duration
}

// NewNikonD90GPIO configures both lines as outputs and leaves them released.
func NewNikonD90GPIO(g gpio.Driver, focusPin, shutterPin int, afSettle, hold time.Duration) *NikonD90GPIO {
	n := &NikonD90GPIO{
		focus:    remoteLine{name: "focus", pin: focusPin, g: g},
		shutter:  remoteLine{name: "shutter", pin: shutterPin, g: g},
		afSettle: afSettle,
		hold:     hold,
	}
	for _, l := range []remoteLine{n.focus, n.shutter} {
		if err := g.SetupPin(l.pin, gpio.Output); err != nil {
			debug.Errorf(err, "camera: setup %s pin %d", l.name, l.pin)
		}
		_ = l.release()
	}
	return n
}

// Trigger half-presses, waits for autofocus, then fully presses for the hold
// time. It reports focusing then combinedLocked, or focusFailed/exposureFailed
// when the matching line cannot be driven. FOCUS is released whenever the
// shutter line fails.
func (n *NikonD90GPIO) Trigger(fe FocusExposureEmitter) error {
	debug.Printf("Camera: triggering shot (focus=%d, shutter=%d)", n.focus.pin, n.shutter.pin)

	fe.Emit(events.Focusing)
	if err := n.focus.press(); err != nil {
		fe.Emit(events.FocusFailed)
		return err
	}
	time.Sleep(n.afSettle)
	fe.Emit(events.CombinedLocked)

	if err := n.shutter.press(); err != nil {
		_ = n.focus.release()
		fe.Emit(events.ExposureFailed)
		return err
	}
	time.Sleep(n.hold)

	if err := n.shutter.release(); err != nil {
		_ = n.focus.release()
		fe.Emit(events.ExposureFailed)
		return err
	}
	if err := n.focus.release(); err != nil {
		return err
	}
	debug.Live("Camera: shot triggered")
	return nil
}

// gpioError wraps a line failure into the detail carried by the lifecycle
// error payload.
func gpioError(line string, pin int, err error) error {
	return fmt.Errorf("%w: %w", &events.ErrorDetail{
		Code:    "gpio",
		Message: fmt.Sprintf("%s line (pin %d): %v", line, pin, err),
	}, err)
}
