package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/iriscam/internal/debug"
)

// RPiDriver drives the Raspberry Pi header through go-rpio (/dev/gpiomem).
// The camera trigger and the tally lamp share one driver from different
// goroutines.
type RPiDriver struct {
	mu     sync.Mutex
	lines  map[int]*line
	closed bool
}

// line remembers how a header pin was configured so that Close can put it
// back in a harmless state.
type line struct {
	pin  rpio.Pin
	mode PinMode
}

// NewRPiRealDriver maps the GPIO registers. It fails off-target or without
// access to /dev/gpiomem.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: open: %w (are you running on a Raspberry Pi?)", err)
	}
	return &RPiDriver{lines: make(map[int]*line)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	_, err := r.configure(pin, mode)
	return err
}

// configure must be called with r.mu held.
func (r *RPiDriver) configure(pin int, mode PinMode) (*line, error) {
	l := &line{pin: rpio.Pin(pin), mode: mode}
	switch mode {
	case Input:
		l.pin.Input()
	case Output:
		l.pin.Output()
	default:
		return nil, fmt.Errorf("gpio: pin %d: unknown mode %d", pin, mode)
	}
	r.lines[pin] = l
	return l, nil
}

// lookup returns the configured line, configuring it with mode on first use.
// It must be called with r.mu held.
func (r *RPiDriver) lookup(pin int, mode PinMode) (*line, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if l, ok := r.lines[pin]; ok {
		return l, nil
	}
	return r.configure(pin, mode)
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.lookup(pin, Output)
	if err != nil {
		return err
	}
	if l.mode != Output {
		return fmt.Errorf("%w: pin %d", ErrNotOutput, pin)
	}
	if level == High {
		l.pin.High()
	} else {
		l.pin.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.lookup(pin, Input)
	if err != nil {
		return Low, err
	}
	return l.pin.Read() == rpio.High, nil
}

// Close returns every line to input, which releases the camera remote and
// switches the tally lamp off, then unmaps the registers.
func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	for pin, l := range r.lines {
		debug.Verbose("Releasing pin %d", pin)
		l.pin.Input()
	}
	return rpio.Close()
}
