package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/senseauto/drivebus/transport"
	"github.com/senseauto/drivebus/wire"
)

// Broadcaster is the minimal transport contract the Bus depends on.
// transport.UDPBroadcast satisfies it; tests use a fake so the bus's
// registry/dispatch/reassembly logic can be exercised without opening
// a real socket.
type Broadcaster interface {
	OnReceive(func(topic string, payload []byte))
	Start() error
	Send(frame []byte) transport.SendResult
	Shutdown() error
}

// Bus is the single owned value threaded into every component at
// construction: per design note in spec.md §9, this replaces the
// source's lazily-constructed singleton with an explicit,
// process-initialized handle with Start/Shutdown.
type Bus struct {
	registry    *Registry
	transport   Broadcaster
	reassembler *reassembler
	metrics     *metrics
	localOnly   bool
}

// New constructs a Bus bound to transport. Pass a nil transport to
// run in local-only mode (publishes fan out to in-process subscribers
// but nothing is broadcast) — this is the degraded "no transport"
// mode spec.md §7 describes for socket init failure, and it is also
// how unit tests exercise the registry/dispatcher/reassembler without
// a real UDP socket.
func New(t Broadcaster, reg prometheus.Registerer) *Bus {
	b := &Bus{
		registry:  NewRegistry(),
		transport: t,
		metrics:   newMetrics(reg),
		localOnly: t == nil,
	}
	b.reassembler = newReassembler(b.deliverReassembled, func() { b.metrics.chunkEvicted.Inc() })
	return b
}

// Start wires the transport's receive path to this bus and binds the
// socket. No-op in local-only mode.
func (b *Bus) Start() error {
	if b.localOnly {
		return nil
	}
	b.transport.OnReceive(b.handleDatagram)
	return b.transport.Start()
}

// Shutdown stops the transport's receive loop. No-op in local-only
// mode.
func (b *Bus) Shutdown() error {
	if b.localOnly {
		return nil
	}
	return b.transport.Shutdown()
}

// Subscribe registers callback on topic. See Registry.Subscribe.
func (b *Bus) Subscribe(topic string, callback Callback) (int64, error) {
	return b.registry.Subscribe(topic, callback)
}

// Unsubscribe removes a subscription by id.
func (b *Bus) Unsubscribe(id int64) bool {
	return b.registry.Unsubscribe(id)
}

// UnsubscribeTopic removes every subscription on topic.
func (b *Bus) UnsubscribeTopic(topic string) int {
	return b.registry.UnsubscribeTopic(topic)
}

// SubscriberCount returns the number of live subscribers on topic.
func (b *Bus) SubscriberCount(topic string) int {
	return b.registry.SubscriberCount(topic)
}

// AllTopics returns every topic with at least one subscriber.
func (b *Bus) AllTopics() []string {
	return b.registry.AllTopics()
}

// Publish fans payload out to local subscribers and, unless running
// local-only, broadcasts it over UDP. The local dispatcher bypasses
// the UDP MTU check entirely (spec.md §8, scenario S6): a payload too
// large to broadcast is still delivered to same-process subscribers.
func (b *Bus) Publish(topic string, payload []byte) error {
	if err := wire.ValidateTopic(topic); err != nil {
		return err
	}

	start := time.Now()
	b.dispatchLocal(topic, payload)
	b.metrics.dispatchSeconds.Observe(time.Since(start).Seconds())
	b.metrics.published.WithLabelValues(topic).Inc()

	if b.localOnly {
		return nil
	}

	frame, err := wire.Encode(topic, payload)
	if err != nil {
		b.metrics.dropped.WithLabelValues("too_large").Inc()
		return err
	}

	if result := b.transport.Send(frame); result != transport.SendOK {
		b.metrics.dropped.WithLabelValues(result.String()).Inc()
	}
	return nil
}

// handleDatagram is the transport's OnReceive callback: it routes
// chunk-topic datagrams through the reassembler and delivers every
// other topic directly to local dispatch.
func (b *Bus) handleDatagram(topic string, payload []byte) {
	if wire.IsChunkTopic(topic) {
		b.reassembler.handleChunk(topic, payload)
		return
	}
	b.dispatchLocal(topic, payload)
}

func (b *Bus) deliverReassembled(parentTopic string, payload []byte) {
	b.metrics.chunkReassembled.Inc()
	b.dispatchLocal(parentTopic, payload)
}

// LiveReassemblyBuffers exposes the reassembler's live buffer count as
// a test hook / operational metric (spec.md scenario S4).
func (b *Bus) LiveReassemblyBuffers() int {
	return b.reassembler.liveBuffers()
}
