package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/lens"
	"github.com/cjeanneret/iriscam/internal/metrics"
)

// Broker is the part of *Client the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	IsConnected() bool
}

// LensLister answers lens list requests. *registry.Registry satisfies it.
type LensLister interface {
	ListAvailableLenses(includeFront bool) []lens.Record
}

// Bridge is a registry transport publishing channel payloads as retained
// messages, so a late MQTT subscriber still sees the current state.
type Bridge struct {
	broker Broker
	topics Topics
	qos    byte
}

// NewBridge creates a bridge publishing under prefix with the given QoS.
func NewBridge(b Broker, prefix string, qos byte) *Bridge {
	return &Bridge{broker: b, topics: Topics{Prefix: prefix}, qos: qos}
}

// Topics returns the bridge's topic names.
func (b *Bridge) Topics() Topics { return b.topics }

// SetStreamHandler subscribes a publishing sink to h. The handler's replay
// is published straight away. Installation fails with ErrNotConnected when
// the broker is down.
func (b *Bridge) SetStreamHandler(channel string, h events.StreamHandler) error {
	topic, ok := b.topics.ForChannel(channel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return h.Listen(nil, metrics.Instrument(channel, newTopicSink(b, topic)))
}

// publishQueueSize bounds the payloads waiting for the broker per topic.
const publishQueueSize = 64

// topicSink publishes each payload to one topic. Deliver runs under the
// handler's lock, so it only queues; a publisher goroutine started by Open
// talks to the broker in delivery order.
type topicSink struct {
	bridge *Bridge
	topic  string

	queue chan []byte
	done  chan struct{}
	start sync.Once
	stop  sync.Once
}

func newTopicSink(b *Bridge, topic string) *topicSink {
	return &topicSink{
		bridge: b,
		topic:  topic,
		queue:  make(chan []byte, publishQueueSize),
		done:   make(chan struct{}),
	}
}

func (s *topicSink) Open() error {
	if !s.bridge.broker.IsConnected() {
		return ErrNotConnected
	}
	s.start.Do(func() { go s.run() })
	return nil
}

// Deliver never blocks. A full queue loses its oldest payload, so the
// retained message still ends on the latest state.
func (s *topicSink) Deliver(p events.Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		debug.Errorf(err, "MQTT: encode %s", s.topic)
		return
	}
	for {
		select {
		case s.queue <- data:
			return
		default:
		}
		select {
		case old := <-s.queue:
			debug.Live("MQTT: %s lagging, %s dropped", s.topic, old)
		default:
		}
	}
}

func (s *topicSink) Close() error {
	s.stop.Do(func() { close(s.done) })
	return nil
}

func (s *topicSink) run() {
	for {
		select {
		case data := <-s.queue:
			s.publish(data)
		case <-s.done:
			// Flush what was delivered before the sink was replaced.
			for {
				select {
				case data := <-s.queue:
					s.publish(data)
				default:
					return
				}
			}
		}
	}
}

func (s *topicSink) publish(data []byte) {
	if err := s.bridge.broker.Publish(s.topic, data, s.bridge.qos, true); err != nil {
		debug.Errorf(err, "MQTT: publish %s", s.topic)
		return
	}
	debug.Verbose("MQTT: %s <- %s", s.topic, data)
}

// lensRequest is the optional body of a lens list request.
type lensRequest struct {
	IncludeFront *bool `json:"includeFront"`
}

// ServeLenses answers requests on <prefix>/lenses/get with the classified
// device list on <prefix>/lenses. An empty request uses includeFront.
func (b *Bridge) ServeLenses(l LensLister, includeFront bool) error {
	return b.broker.Subscribe(b.topics.LensesGet(), b.qos, func(_ string, payload []byte) error {
		include := includeFront
		if len(payload) > 0 {
			var req lensRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("lens request: %w", err)
			}
			if req.IncludeFront != nil {
				include = *req.IncludeFront
			}
		}

		data, err := json.Marshal(l.ListAvailableLenses(include))
		if err != nil {
			return fmt.Errorf("lens reply: %w", err)
		}
		return b.broker.Publish(b.topics.Lenses(), data, b.qos, false)
	})
}
