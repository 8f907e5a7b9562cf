package bus

import (
	"log/slog"
	"time"
)

// dispatchLocal snapshots the registry's subscriber list for topic,
// releases the registry lock, then invokes each callback in
// subscription order. This ordering is load-bearing: it is the only
// reason publish -> callback -> publish does not deadlock, because no
// lock is held while user code runs. A callback added after the
// snapshot is taken is not invoked for this message; a callback
// removed after the snapshot may still run (the registry only unlinks
// on Unsubscribe, it never blocks waiting for in-flight dispatches).
func (b *Bus) dispatchLocal(topic string, payload []byte) {
	callbacks := b.registry.snapshot(topic)
	if len(callbacks) == 0 {
		return
	}

	msg := Message{
		Topic:       topic,
		Payload:     payload,
		TimestampMs: time.Now().UnixMilli(),
	}

	for _, cb := range callbacks {
		invokeCallback(cb, msg)
	}
}

// invokeCallback isolates a callback fault (panic) so one bad
// subscriber cannot halt dispatch to the rest, and so it never
// propagates out into the receive thread or the publisher's
// goroutine.
func invokeCallback(cb Callback, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("callback panicked during dispatch", "topic", msg.Topic, "panic", r)
		}
	}()
	cb(msg)
}
