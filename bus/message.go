// Package bus implements the process-wide publish/subscribe facility:
// the subscription registry, the snapshot-then-invoke local
// dispatcher, the chunk reassembler, and the chunked publisher. A Bus
// value wires all of these to a transport.Broadcaster and is the
// single handle client modules are constructed with.
package bus

// Message is the value object delivered to subscriber callbacks.
// One Message is built per dispatch and passed by value, so a callback
// that reassigns a field does not affect the others; the Payload
// slice's backing bytes are shared by every callback of that dispatch.
type Message struct {
	Topic       string
	Payload     []byte
	TimestampMs int64
}

// Callback consumes one Message. It must not block indefinitely: the
// dispatcher invokes callbacks synchronously, on whatever goroutine
// delivery happens to be running on.
type Callback func(Message)
