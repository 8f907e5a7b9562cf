package node

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
)

// StatusTopic is the well-known topic every node's heartbeat is
// published on.
const StatusTopic = "system/node_status"

// heartbeatPeriod is fixed at 1s per spec.md §4.8; no jitter
// requirement.
const heartbeatPeriod = 1000 * time.Millisecond

// State mirrors the four-valued NodeStatus.state enum from spec.md
// §3.
type State string

const (
	StateOK      State = "OK"
	StateWarn    State = "WARN"
	StateError   State = "ERROR"
	StateOffline State = "OFFLINE"
)

// NodeStatus is the heartbeat record published on StatusTopic.
// Encoded as JSON: every other payload on the bus is JSON
// (proto.Message in the teacher used json.RawMessage uniformly), so
// the status channel follows suit rather than reintroducing the
// original C++ source's protobuf encoding for this one topic.
type NodeStatus struct {
	NodeName    string  `json:"node_name"`
	State       State   `json:"state"`
	Message     string  `json:"message,omitempty"`
	TimestampMs int64   `json:"timestamp_ms"`
	PID         int     `json:"pid,omitempty"`
	CPUUsage    float64 `json:"cpu_usage,omitempty"`
	MemoryUsage float64 `json:"memory_usage,omitempty"`
}

// StatusReporter owns the 1s heartbeat publish loop for one node.
// State defaults to OK at construction; SetStatus lets the owning
// node change it (e.g. to WARN when a dependency misbehaves).
type StatusReporter struct {
	nodeName string
	b        *bus.Bus

	mu      sync.Mutex
	current NodeStatus

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewStatusReporter constructs a reporter for nodeName, defaulting to
// StateOK with message "node initialized".
func NewStatusReporter(nodeName string, b *bus.Bus) *StatusReporter {
	return &StatusReporter{
		nodeName: nodeName,
		b:        b,
		current: NodeStatus{
			NodeName: nodeName,
			State:    StateOK,
			Message:  "node initialized",
		},
	}
}

// SetStatus changes the reported state/message; picked up by the next
// heartbeat tick.
func (s *StatusReporter) SetStatus(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.State = state
	s.current.Message = message
}

// Current returns a snapshot of the status that would be published on
// the next heartbeat tick.
func (s *StatusReporter) Current() NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Start launches the heartbeat goroutine. Idempotent.
func (s *StatusReporter) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.reportLoop()
}

// Stop joins the heartbeat goroutine. No "final" record is published;
// downstream liveness is inferred from the absence of further
// heartbeats (see daemon.Supervisor).
func (s *StatusReporter) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *StatusReporter) reportLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *StatusReporter) publish() {
	s.mu.Lock()
	snapshot := s.current
	s.mu.Unlock()

	snapshot.TimestampMs = time.Now().UnixMilli()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		slog.Warn("failed to marshal node status", "node", s.nodeName, "error", err)
		return
	}
	if err := s.b.Publish(StatusTopic, payload); err != nil {
		slog.Warn("failed to publish node status", "node", s.nodeName, "error", err)
	}
}
