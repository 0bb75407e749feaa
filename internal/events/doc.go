// Package events provides single-subscriber push channels for camera state.
//
// Two handlers exist, one for the session lifecycle and one for the
// focus/exposure negotiation. Each keeps at most one Sink. Installing a new
// sink replaces the previous one, and the new sink immediately receives the
// last remembered state. Emit delivers exactly once, synchronously, when a
// sink is installed; otherwise the emission is dropped. Nothing is queued.
//
// # Basic Usage
//
//	h := events.NewStateHandler()
//	_ = h.Listen(nil, events.SinkFunc(func(p events.Payload) {
//	    fmt.Println(p.State())
//	}))
//	// prints "disposed"
//	h.Emit(events.LifecycleRunning, nil)
//	// prints "running"
//	h.Emit(events.LifecycleError, events.NewError("gpio", "shutter line stuck"))
//	// prints "error", payload also carries errorCode and errorMessage
//
// # Thread Safety
//
// Handlers are safe for concurrent use. Deliveries for one handler are
// serialized in Emit order; there is no ordering between handlers.
package events
