// Package gpio abstracts the header pins driving the camera remote and the
// tally lamp.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("gpio: driver closed")

	// ErrNotOutput is returned when writing a pin configured as input.
	ErrNotOutput = errors.New("gpio: pin not configured as output")
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// String returns "high" or "low".
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// Driver is implemented by the Raspberry Pi driver and by MockDriver for
// development on a PC. A pin used before SetupPin is configured on first
// use: as output for WritePin, as input for ReadPin.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns a MockDriver when mock is set, the go-rpio driver
// otherwise.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// MockDriver keeps pin modes and levels in memory, so ReadPin shows what the
// camera remote or the tally lamp would see. It follows the same mode and
// close rules as the real driver.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	closed bool
}

// NewMockDriver creates an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if mode != Input && mode != Output {
		return fmt.Errorf("gpio: pin %d: unknown mode %d", pin, mode)
	}
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	mode, ok := m.modes[pin]
	if !ok {
		m.modes[pin] = Output
	} else if mode != Output {
		return fmt.Errorf("%w: pin %d", ErrNotOutput, pin)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Low, ErrClosed
	}
	if _, ok := m.modes[pin]; !ok {
		m.modes[pin] = Input
	}
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
