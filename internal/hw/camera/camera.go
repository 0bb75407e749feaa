package camera

import (
	"errors"

	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/lens"
)

// ErrNotRunning is returned by Shoot when the session has not been started.
var ErrNotRunning = errors.New("camera: session not running")

// ErrDisposed is returned by operations on a disposed session that cannot
// restart it implicitly.
var ErrDisposed = errors.New("camera: session disposed")

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract camera session, regardless of how the body is
// controlled (GPIO, USB, network protocol, etc.). Implementations decide
// when state changes and report them through the event handlers.
type Camera interface {
	Start() error
	Stop() error
	Dispose() error
	// Shoot triggers a single photo capture.
	Shoot() error
}

// Trigger fires the shutter of a physical body and reports the
// focus/exposure negotiation while doing so.
type Trigger interface {
	Trigger(fe FocusExposureEmitter) error
}

// LifecycleEmitter receives lifecycle decisions. *events.StateHandler
// satisfies it.
type LifecycleEmitter interface {
	Emit(state events.LifecycleState, err error)
}

// FocusExposureEmitter receives focus/exposure decisions.
// *events.FocusExposureHandler satisfies it.
type FocusExposureEmitter interface {
	Emit(state events.FocusExposureState)
}

// StaticDevices is a fixed inventory of camera inputs, typically loaded from
// configuration. It satisfies registry.DeviceSource.
type StaticDevices []lens.Descriptor

// Devices returns a copy of the inventory.
func (s StaticDevices) Devices() []lens.Descriptor {
	out := make([]lens.Descriptor, len(s))
	copy(out, s)
	return out
}
