package events

// StateHandler publishes camera lifecycle changes to a single subscriber.
// Before any Emit, a new subscriber receives {"state":"disposed"}.
type StateHandler struct {
	s *stream
}

// NewStateHandler creates a lifecycle handler.
func NewStateHandler() *StateHandler {
	return &StateHandler{s: newStream("state", lifecyclePayload(LifecycleDisposed, nil))}
}

// Listen installs sink, replacing any previous subscriber, and delivers the
// last emitted state. args is accepted for transport compatibility and ignored.
func (h *StateHandler) Listen(_ any, sink Sink) error { return h.s.listen(sink) }

// Cancel removes the current subscriber. It is a no-op without one.
func (h *StateHandler) Cancel(_ any) error { return h.s.cancel() }

// Emit remembers state and delivers it to the subscriber, if any.
// err is only reported when state is LifecycleError.
func (h *StateHandler) Emit(state LifecycleState, err error) {
	h.s.emit(lifecyclePayload(state, err))
}

// Current returns a copy of the remembered payload.
func (h *StateHandler) Current() Payload { return h.s.current() }

// Active reports whether a subscriber is installed.
func (h *StateHandler) Active() bool { return h.s.active() }

// FocusExposureHandler publishes focus/exposure changes to a single subscriber.
// Before any Emit, a new subscriber receives {"state":"unknown"}.
type FocusExposureHandler struct {
	s *stream
}

// NewFocusExposureHandler creates a focus/exposure handler.
func NewFocusExposureHandler() *FocusExposureHandler {
	return &FocusExposureHandler{s: newStream("focus_exposure", focusExposurePayload(FocusExposureUnknown))}
}

// Listen installs sink, replacing any previous subscriber, and delivers the
// last emitted state.
func (h *FocusExposureHandler) Listen(_ any, sink Sink) error { return h.s.listen(sink) }

// Cancel removes the current subscriber. It is a no-op without one.
func (h *FocusExposureHandler) Cancel(_ any) error { return h.s.cancel() }

// Emit remembers state and delivers it to the subscriber, if any.
func (h *FocusExposureHandler) Emit(state FocusExposureState) {
	h.s.emit(focusExposurePayload(state))
}

// Current returns a copy of the remembered payload.
func (h *FocusExposureHandler) Current() Payload { return h.s.current() }

// Active reports whether a subscriber is installed.
func (h *FocusExposureHandler) Active() bool { return h.s.active() }

var (
	_ StreamHandler = (*StateHandler)(nil)
	_ StreamHandler = (*FocusExposureHandler)(nil)
)
