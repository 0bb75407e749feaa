// Package tally drives a recording lamp from the camera lifecycle.
package tally

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/hw/gpio"
)

// Emitter receives lifecycle decisions. *events.StateHandler satisfies it.
type Emitter interface {
	Emit(state events.LifecycleState, err error)
}

// Lamp sits between the camera session and the lifecycle handler. It lights
// a GPIO lamp while the session is running, then forwards the transition
// unchanged. It does not subscribe to the handler, so transports keep the
// channel's only subscription.
type Lamp struct {
	gpio gpio.Driver
	pin  int
	next Emitter

	mu  sync.Mutex
	lit bool
}

// NewLamp configures pin as an output, switches it off and returns a lamp
// forwarding to next.
func NewLamp(g gpio.Driver, pin int, next Emitter) (*Lamp, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("tally: setup pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("tally: reset pin %d: %w", pin, err)
	}
	return &Lamp{gpio: g, pin: pin, next: next}, nil
}

// Emit updates the lamp and forwards the transition. A GPIO failure is
// logged; the transition is still forwarded.
func (l *Lamp) Emit(state events.LifecycleState, err error) {
	l.set(state == events.LifecycleRunning)
	l.next.Emit(state, err)
}

// Lit reports whether the lamp is on.
func (l *Lamp) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lit
}

func (l *Lamp) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if on == l.lit {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := l.gpio.WritePin(l.pin, level); err != nil {
		debug.Errorf(err, "tally: pin %d", l.pin)
		return
	}
	l.lit = on
	debug.Verbose("Tally: lamp %s", level)
}
