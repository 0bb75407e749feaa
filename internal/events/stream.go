package events

import (
	"reflect"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
)

// Sink receives payloads for one channel. Deliver is called synchronously
// from Emit and Listen, with the handler's lock held, so a Sink must not
// call back into the handler that feeds it.
type Sink interface {
	Deliver(p Payload)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p Payload)

// Deliver calls f(p).
func (f SinkFunc) Deliver(p Payload) { f(p) }

// Opener is implemented by sinks whose transport may refuse installation.
// Listen calls Open, with the handler's lock held, before installing the
// sink and returns its error. Open is not called again for a sink that is
// already installed.
type Opener interface {
	Open() error
}

// Closer is implemented by sinks that hold transport resources. Close is
// called when the sink is replaced or cancelled.
type Closer interface {
	Close() error
}

// Replayer is implemented by sinks that tell the subscribe-time replay
// apart from emissions. Listen calls Replay instead of Deliver on them.
type Replayer interface {
	Replay(p Payload)
}

// StreamHandler is the transport-facing side of a channel.
type StreamHandler interface {
	// Listen installs sink as the only subscriber and replays the current state.
	Listen(args any, sink Sink) error
	// Cancel removes the subscriber, if any.
	Cancel(args any) error
}

// stream is the single-subscriber core shared by both handlers.
type stream struct {
	name string

	mu   sync.Mutex
	sink Sink
	last Payload
}

func newStream(name string, initial Payload) *stream {
	return &stream{name: name, last: initial}
}

func (s *stream) listen(sink Sink) error {
	if sink == nil {
		return s.cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Listening again with the installed sink only replays.
	if !SameSink(s.sink, sink) {
		if o, ok := sink.(Opener); ok {
			if err := o.Open(); err != nil {
				return err
			}
		}
		if s.sink != nil {
			closeSink(s.sink)
		}
		s.sink = sink
	}
	debug.Info("%s: subscriber installed, replaying %q", s.name, s.last.State())
	if r, ok := sink.(Replayer); ok {
		r.Replay(s.last.clone())
	} else {
		sink.Deliver(s.last.clone())
	}
	return nil
}

func (s *stream) cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return nil
	}
	closeSink(s.sink)
	s.sink = nil
	debug.Info("%s: subscriber removed", s.name)
	return nil
}

func (s *stream) emit(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = p
	if s.sink == nil {
		debug.Emit(s.name, p.State(), false)
		return
	}
	s.sink.Deliver(p.clone())
	debug.Emit(s.name, p.State(), true)
}

func (s *stream) current() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.clone()
}

func (s *stream) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink != nil
}

func closeSink(sink Sink) {
	if c, ok := sink.(Closer); ok {
		if err := c.Close(); err != nil {
			debug.Error(err)
		}
	}
}

// SameSink reports whether a and b are the same subscriber. Sinks of
// uncomparable types, such as SinkFunc, are never the same.
func SameSink(a, b Sink) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
