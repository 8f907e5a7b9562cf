// Package transport owns the single UDP broadcast socket the bus
// sends and receives on. It mirrors the teacher's TCPTransport /
// WSTransport shape (bind, accept/receive loop on a dedicated
// goroutine, OnMessage callback, Shutdown closes the socket to
// unblock the loop) adapted from a connection-oriented accept loop to
// a connectionless broadcast socket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/senseauto/drivebus/wire"
)

// Port is the fixed UDP port the bus binds and broadcasts to, per the
// wire format specification.
const Port = 12345

// BroadcastAddr is the directed broadcast address datagrams are sent
// to.
const BroadcastAddr = "255.255.255.255"

// recvBufferSize is sized to the maximum possible UDP payload so a
// single recvfrom never truncates a datagram.
const recvBufferSize = 65535

// SendResult enumerates Send's possible outcomes.
type SendResult int

const (
	// SendOK means the full datagram was written.
	SendOK SendResult = iota
	// SendShortWrite means the OS accepted fewer bytes than requested.
	SendShortWrite
	// SendTooLarge means the frame exceeds wire.MaxDatagramSize and was
	// never attempted.
	SendTooLarge
	// SendFailed means the OS call returned an error.
	SendFailed
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendShortWrite:
		return "short_write"
	case SendTooLarge:
		return "too_large"
	case SendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// rateLimiter logs at most once every n occurrences of a given error
// class, matching spec.md §4.2's "≤ 1 per 100 occurrences" policy.
type rateLimiter struct {
	mu    sync.Mutex
	every int
	count map[string]int
}

func newRateLimiter(every int) *rateLimiter {
	return &rateLimiter{every: every, count: make(map[string]int)}
}

func (rl *rateLimiter) allow(class string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.count[class]++
	return rl.count[class]%rl.every == 1
}

// UDPBroadcast owns one UDP socket bound to Port on all interfaces
// and broadcasting to BroadcastAddr. It exposes a single send path and
// drives a dedicated receive goroutine that hands decoded datagrams to
// an OnReceive callback.
type UDPBroadcast struct {
	conn      *net.UDPConn
	dest      *net.UDPAddr
	running   atomic.Bool
	onReceive func(topic string, payload []byte)
	wg        sync.WaitGroup
	rl        *rateLimiter
}

// NewUDPBroadcast constructs the transport without binding. Call
// Start to bind, enable broadcast, and launch the receive goroutine.
func NewUDPBroadcast() *UDPBroadcast {
	return &UDPBroadcast{rl: newRateLimiter(100)}
}

// OnReceive registers the callback invoked with the decoded
// (topic, payload) of every successfully decoded datagram. Must be
// called before Start.
func (t *UDPBroadcast) OnReceive(fn func(topic string, payload []byte)) {
	t.onReceive = fn
}

// Start binds the socket, sets SO_BROADCAST, SO_REUSEADDR and
// SO_REUSEPORT through the ListenConfig Control callback
// (controlReuseAddrPort in sockopt.go), and spawns the
// receive goroutine. Returns once the socket is bound; the receive
// loop runs in the background.
func (t *UDPBroadcast) Start() error {
	if t.onReceive == nil {
		return errors.New("transport: OnReceive must be set before Start")
	}

	lc := net.ListenConfig{Control: controlReuseAddrPort}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", Port))
	if err != nil {
		return fmt.Errorf("transport: bind failed: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return errors.New("transport: unexpected packet conn type")
	}
	t.conn = conn

	dest, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", BroadcastAddr, Port))
	if err != nil {
		conn.Close()
		return fmt.Errorf("transport: resolve broadcast addr: %w", err)
	}
	t.dest = dest

	t.running.Store(true)
	t.wg.Add(1)
	go t.receiveLoop()

	slog.Info("udp broadcast transport started", "port", Port)
	return nil
}

// Send issues one datagram carrying frame. Partial sends and OS
// errors are logged (rate limited) and never abort the process; the
// caller receives the classification via the returned SendResult.
func (t *UDPBroadcast) Send(frame []byte) SendResult {
	if len(frame) > wire.MaxDatagramSize {
		if t.rl.allow("too_large") {
			slog.Warn("dropping oversized publish", "size", len(frame))
		}
		return SendTooLarge
	}
	if t.conn == nil {
		return SendFailed
	}

	n, err := t.conn.WriteToUDP(frame, t.dest)
	if err != nil {
		if t.rl.allow("send_error") {
			slog.Warn("udp send failed", "error", err)
		}
		return SendFailed
	}
	if n != len(frame) {
		if t.rl.allow("short_write") {
			slog.Warn("udp short write", "sent", n, "want", len(frame))
		}
		return SendShortWrite
	}
	return SendOK
}

func (t *UDPBroadcast) receiveLoop() {
	defer t.wg.Done()
	buf := make([]byte, recvBufferSize)

	for t.running.Load() {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if !t.running.Load() {
				return // socket closed as part of shutdown
			}
			if t.rl.allow("recv_error") {
				slog.Warn("udp recv failed", "error", err)
			}
			continue
		}

		topic, payload, err := wire.Decode(buf[:n])
		if err != nil {
			if t.rl.allow("decode_error") {
				slog.Warn("dropping undecodable datagram", "error", err, "size", n)
			}
			continue
		}
		t.onReceive(topic, payload)
	}
}

// Shutdown sets the running flag false, closes the socket (which
// unblocks the pending ReadFromUDP), and joins the receive goroutine.
func (t *UDPBroadcast) Shutdown() error {
	t.running.Store(false)
	var err error
	if t.conn != nil {
		err = t.conn.Close()
	}
	t.wg.Wait()
	slog.Info("udp broadcast transport stopped")
	return err
}
