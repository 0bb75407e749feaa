// Package registry owns the camera event channels and the lens enumeration
// entry point, and attaches them to outbound transports.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/lens"
)

// Channel names as seen by transports.
const (
	ChannelState         = "iris_camera/state"
	ChannelFocusExposure = "iris_camera/focus_exposure"
)

// ErrAttach is returned when a transport refuses a channel.
var ErrAttach = errors.New("registry: attach failed")

// ErrUnknownChannel is returned by Handler for names that are not registered.
var ErrUnknownChannel = errors.New("registry: unknown channel")

// DeviceSource enumerates the camera inputs currently present.
type DeviceSource interface {
	Devices() []lens.Descriptor
}

// DeviceSourceFunc adapts a function to DeviceSource.
type DeviceSourceFunc func() []lens.Descriptor

// Devices calls f().
func (f DeviceSourceFunc) Devices() []lens.Descriptor { return f() }

// Transport exposes stream handlers under channel names.
type Transport interface {
	SetStreamHandler(channel string, h events.StreamHandler) error
}

// Registry is created once per session by its owner and holds the two
// channel handlers. It has no package-level state.
type Registry struct {
	lifecycle     *events.StateHandler
	focusExposure *events.FocusExposureHandler
	source        DeviceSource
	classifier    lens.Classifier

	fanouts map[string]*fanout

	mu         sync.Mutex
	transports int
}

// Option configures a Registry.
type Option func(*Registry)

// WithClassifier replaces the default classification policies.
func WithClassifier(c lens.Classifier) Option {
	return func(r *Registry) { r.classifier = c }
}

// New creates a registry over source. A nil source enumerates no devices.
func New(source DeviceSource, opts ...Option) *Registry {
	r := &Registry{
		lifecycle:     events.NewStateHandler(),
		focusExposure: events.NewFocusExposureHandler(),
		source:        source,
	}
	r.fanouts = map[string]*fanout{
		ChannelState:         newFanout(ChannelState, r.lifecycle),
		ChannelFocusExposure: newFanout(ChannelFocusExposure, r.focusExposure),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lifecycle returns the lifecycle handler. Drivers call Emit on it.
func (r *Registry) Lifecycle() *events.StateHandler { return r.lifecycle }

// FocusExposure returns the focus/exposure handler.
func (r *Registry) FocusExposure() *events.FocusExposureHandler { return r.focusExposure }

// Channels lists the channel names in registration order.
func (r *Registry) Channels() []string {
	return []string{ChannelState, ChannelFocusExposure}
}

// Handler looks up a channel's handler by name. Subscribing on it directly
// bypasses the transport slots and replaces every attached subscriber.
func (r *Registry) Handler(channel string) (events.StreamHandler, error) {
	switch channel {
	case ChannelState:
		return r.lifecycle, nil
	case ChannelFocusExposure:
		return r.focusExposure, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
}

// Attach registers both channels on t. Every transport gets its own
// subscriber slot per channel: a subscriber installed through t replaces
// only t's previous one, and all transports receive every emission. The
// first failure is returned and later channels are not attempted.
func (r *Registry) Attach(t Transport) error {
	r.mu.Lock()
	slot := r.transports
	r.transports++
	r.mu.Unlock()

	for _, ch := range r.Channels() {
		if err := t.SetStreamHandler(ch, r.fanouts[ch].port(slot)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrAttach, ch, err)
		}
		debug.Info("registry: channel %s attached", ch)
	}
	return nil
}

// ListAvailableLenses enumerates live devices and classifies them.
func (r *Registry) ListAvailableLenses(includeFront bool) []lens.Record {
	var devices []lens.Descriptor
	if r.source != nil {
		devices = r.source.Devices()
	}
	records := r.classifier.Classify(devices, includeFront)
	debug.Verbose("registry: %d of %d devices listed (includeFront=%t)", len(records), len(devices), includeFront)
	return records
}
