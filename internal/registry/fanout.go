package registry

import (
	"maps"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
)

// fanout is the single sink a channel handler sees once transports are
// attached. Each transport owns one slot; a subscriber installed through a
// transport replaces only that transport's slot, so a web client never
// evicts the MQTT bridge. The handler loses the fanout when the last slot
// empties, and emissions are dropped again.
//
// Lock order: opMu, then the handler's lock, then mu.
type fanout struct {
	channel string
	handler events.StreamHandler

	// opMu serializes slot changes; it is held across calls into handler.
	opMu sync.Mutex

	// mu guards slots and joining. Deliver, Replay and Close take it under
	// the handler's lock.
	mu      sync.Mutex
	slots   map[int]events.Sink
	joining *joiner
}

// joiner is a subscriber waiting for the handler's replay. It enters its
// slot at that moment, under the handler's lock, so it neither misses nor
// duplicates an emission. Emissions racing the join reach the other slots
// only.
type joiner struct {
	slot int
	sink events.Sink
}

func newFanout(channel string, h events.StreamHandler) *fanout {
	return &fanout{channel: channel, handler: h, slots: make(map[int]events.Sink)}
}

// Deliver forwards p to every slot.
func (f *fanout) Deliver(p events.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		s.Deliver(maps.Clone(p))
	}
}

// Replay answers the handler's subscribe-time replay. Only the joining slot
// receives it.
func (f *fanout) Replay(p events.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j := f.joining
	if j == nil {
		return
	}
	f.joining = nil
	if old, ok := f.slots[j.slot]; ok && !events.SameSink(old, j.sink) {
		closeSink(old)
	}
	f.slots[j.slot] = j.sink
	j.sink.Deliver(p)
}

// Close runs when something outside the registry replaced the fanout on the
// handler. Every transport subscriber is closed.
func (f *fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for slot, s := range f.slots {
		closeSink(s)
		delete(f.slots, slot)
	}
	f.joining = nil
	return nil
}

// port returns the StreamHandler a transport uses for its slot.
func (f *fanout) port(slot int) *port {
	return &port{f: f, slot: slot}
}

// port is one transport's view of a channel. It has the handler's
// subscribe semantics, restricted to the transport's slot.
type port struct {
	f    *fanout
	slot int
}

func (p *port) Listen(args any, sink events.Sink) error {
	if sink == nil {
		return p.Cancel(args)
	}
	f := p.f
	f.opMu.Lock()
	defer f.opMu.Unlock()

	f.mu.Lock()
	installed := events.SameSink(f.slots[p.slot], sink)
	f.mu.Unlock()
	if !installed {
		if o, ok := sink.(events.Opener); ok {
			if err := o.Open(); err != nil {
				return err
			}
		}
	}

	f.mu.Lock()
	f.joining = &joiner{slot: p.slot, sink: sink}
	f.mu.Unlock()

	if err := f.handler.Listen(args, f); err != nil {
		f.mu.Lock()
		f.joining = nil
		f.mu.Unlock()
		if !installed {
			closeSink(sink)
		}
		return err
	}
	debug.Info("registry: %s slot %d subscribed", f.channel, p.slot)
	return nil
}

func (p *port) Cancel(args any) error {
	f := p.f
	f.opMu.Lock()
	defer f.opMu.Unlock()

	f.mu.Lock()
	s, ok := f.slots[p.slot]
	delete(f.slots, p.slot)
	empty := len(f.slots) == 0
	f.mu.Unlock()

	if !ok {
		return nil
	}
	closeSink(s)
	debug.Info("registry: %s slot %d cancelled", f.channel, p.slot)
	if empty {
		return f.handler.Cancel(args)
	}
	return nil
}

func closeSink(s events.Sink) {
	if c, ok := s.(events.Closer); ok {
		if err := c.Close(); err != nil {
			debug.Error(err)
		}
	}
}

var (
	_ events.StreamHandler = (*port)(nil)
	_ events.Replayer      = (*fanout)(nil)
)
