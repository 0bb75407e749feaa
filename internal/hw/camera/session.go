package camera

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
)

// Session drives a Trigger through the lifecycle and reports every
// transition. It is the component that decides when state changes; the
// event handlers only relay those decisions.
//
// Transitions:
//
//	disposed|idle|error --Start--> running
//	running --Stop--> stopping --> idle
//	any --Dispose--> (stop if running) --> disposed
//	running --Shoot failure--> error
type Session struct {
	trigger   Trigger
	lifecycle LifecycleEmitter
	fe        FocusExposureEmitter

	mu    sync.Mutex
	state events.LifecycleState
}

// NewSession creates a session in the disposed state. Nothing is emitted
// until the first transition.
func NewSession(t Trigger, lifecycle LifecycleEmitter, fe FocusExposureEmitter) *Session {
	return &Session{
		trigger:   t,
		lifecycle: lifecycle,
		fe:        fe,
		state:     events.LifecycleDisposed,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() events.LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the session. Starting a running session is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == events.LifecycleRunning {
		return nil
	}
	s.set(events.LifecycleRunning, nil)
	s.fe.Emit(events.FocusExposureUnknown)
	return nil
}

// Stop closes a running session. Stopping an idle or disposed session is a
// no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}

// stop must be called with s.mu held.
func (s *Session) stop() {
	if s.state != events.LifecycleRunning {
		return
	}
	s.set(events.LifecycleStopping, nil)
	s.set(events.LifecycleIdle, nil)
}

// Dispose stops the session if needed and releases it.
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == events.LifecycleDisposed {
		return nil
	}
	s.stop()
	s.set(events.LifecycleDisposed, nil)
	return nil
}

// Shoot triggers one capture. The session must be running. A trigger
// failure moves the session to the error state with the failure attached.
func (s *Session) Shoot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case events.LifecycleRunning:
	case events.LifecycleDisposed:
		return ErrDisposed
	default:
		return ErrNotRunning
	}

	if err := s.trigger.Trigger(s.fe); err != nil {
		s.set(events.LifecycleError, err)
		return fmt.Errorf("shoot: %w", err)
	}
	return nil
}

// set must be called with s.mu held.
func (s *Session) set(state events.LifecycleState, err error) {
	debug.Live("Camera: session %s -> %s", s.state, state)
	s.state = state
	s.lifecycle.Emit(state, err)
}

var _ Camera = (*Session)(nil)
