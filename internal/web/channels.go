package web

import (
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/metrics"
)

// clientBufferSize bounds the payloads queued for one slow client.
const clientBufferSize = 64

// clientSink queues payloads for one HTTP client. It is closed by the
// handler when another client takes over the channel.
type clientSink struct {
	id   string
	out  chan events.Payload
	done chan struct{}
	once sync.Once
}

func newClientSink() *clientSink {
	return &clientSink{
		id:   uuid.NewString(),
		out:  make(chan events.Payload, clientBufferSize),
		done: make(chan struct{}),
	}
}

// Deliver never blocks: the handler calls it with its lock held.
func (s *clientSink) Deliver(p events.Payload) {
	select {
	case s.out <- p:
	default:
		debug.Live("web: client %s lagging, %q dropped", s.id, p.State())
	}
}

func (s *clientSink) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// replaced reports whether the sink was closed, which happens when a newer
// client took the slot or the handler was subscribed to directly.
func (s *clientSink) replaced() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// drain returns the payloads already queued, without blocking.
func (s *clientSink) drain() []events.Payload {
	var out []events.Payload
	for {
		select {
		case p := <-s.out:
			out = append(out, p)
		default:
			return out
		}
	}
}

// eventChannel serves one registry channel to HTTP clients. The newest
// client replaces the previous one within the web server's slot; a client
// leaving only empties the slot if it is still the installed one. Other
// transports keep their own subscribers either way.
type eventChannel struct {
	name    string
	handler events.StreamHandler

	mu      sync.Mutex
	current string
}

func (c *eventChannel) subscribe() (*clientSink, func(), error) {
	sink := newClientSink()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.handler.Listen(nil, metrics.Instrument(c.name, sink)); err != nil {
		return nil, nil, err
	}
	c.current = sink.id
	debug.Info("web: client %s subscribed to %s", sink.id, c.name)

	release := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.current != sink.id || sink.replaced() {
			return
		}
		_ = c.handler.Cancel(nil)
		c.current = ""
		debug.Info("web: client %s left %s", sink.id, c.name)
	}
	return sink, release, nil
}

// channelSet maps URL names ("state", "focus_exposure") to channels.
type channelSet struct {
	mu     sync.RWMutex
	byName map[string]*eventChannel
}

func newChannelSet() *channelSet {
	return &channelSet{byName: make(map[string]*eventChannel)}
}

func (s *channelSet) set(channel string, h events.StreamHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[path.Base(channel)] = &eventChannel{name: channel, handler: h}
}

func (s *channelSet) get(name string) (*eventChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byName[name]
	return c, ok
}
