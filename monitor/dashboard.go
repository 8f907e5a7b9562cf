// Package monitor implements the read-only operator dashboard: an
// HTTP + WebSocket surface built with chi and gorilla/websocket,
// grounded on server.WSTransport's accept-loop and connection-set
// discipline from the teacher (one mutex-protected map of live
// connections, broadcasts iterate under that mutex, each write is
// non-blocking best-effort) and adapted from "device transport
// accepting inbound protocol messages" to "read-only fan-out of topic
// traffic meters and node health, nothing is ever read back".
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// topicMeter counts publishes observed for one topic since the last
// snapshot; the count is reset whenever a snapshot is taken (each 1s
// broadcast tick and each /topics request).
type topicMeter struct {
	count int
}

// Dashboard subscribes to every standard topic and to system/status,
// and serves a small JSON/WebSocket surface summarizing traffic rates
// and node health. It never publishes: a monitor that can perturb the
// bus it is inspecting defeats the point of read-only observability.
type Dashboard struct {
	b    *bus.Bus
	addr string

	mu         sync.Mutex
	meters     map[string]*topicMeter
	nodeHealth map[string]string
	conns      map[*websocket.Conn]string

	server *http.Server
	stopCh chan struct{}
}

// NewDashboard constructs a Dashboard bound to addr (e.g. ":9090").
// topics is the set of standard topics to meter (spec.md §6's table);
// callers normally pass every producer topic plus system/status.
func NewDashboard(b *bus.Bus, addr string, topics []string) *Dashboard {
	d := &Dashboard{
		b:          b,
		addr:       addr,
		meters:     make(map[string]*topicMeter),
		nodeHealth: make(map[string]string),
		conns:      make(map[*websocket.Conn]string),
	}
	for _, topic := range topics {
		d.meters[topic] = &topicMeter{}
	}
	return d
}

// Start subscribes to the metered topics and system/status, launches
// the 1s window-reset/broadcast ticker, and serves HTTP in the
// background. Returns once the listener is up (or the listen error);
// Serve itself runs on its own goroutine, mirroring
// server.WSTransport.Start.
func (d *Dashboard) Start() error {
	for topic := range d.meters {
		topic := topic
		d.b.Subscribe(topic, func(bus.Message) { d.recordPublish(topic) })
	}
	d.b.Subscribe("system/status", d.onStatus)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/topics", d.handleTopics)
	r.Get("/ws", d.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	d.server = &http.Server{Addr: d.addr, Handler: r}
	d.stopCh = make(chan struct{})

	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return err
	}

	go func() {
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("monitor dashboard server error", "error", err)
		}
	}()

	go d.broadcastLoop()

	slog.Info("monitor dashboard started", "addr", d.addr)
	return nil
}

// Shutdown stops the HTTP server and signals the broadcast loop to
// exit.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	close(d.stopCh)
	return d.server.Shutdown(ctx)
}

func (d *Dashboard) recordPublish(topic string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.meters[topic]; ok {
		m.count++
	}
}

func (d *Dashboard) onStatus(m bus.Message) {
	var cs struct {
		NodeName string     `json:"node_name"`
		State    node.State `json:"state"`
	}
	if err := json.Unmarshal(m.Payload, &cs); err != nil {
		return
	}
	d.mu.Lock()
	d.nodeHealth[cs.NodeName] = string(cs.State)
	d.mu.Unlock()
}

type snapshot struct {
	TopicRatesPerSec map[string]int    `json:"topic_rates_per_sec"`
	NodeHealth       map[string]string `json:"node_health"`
}

func (d *Dashboard) snapshotAndReset() snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	rates := make(map[string]int, len(d.meters))
	for topic, m := range d.meters {
		rates[topic] = m.count
		m.count = 0
	}
	health := make(map[string]string, len(d.nodeHealth))
	for name, state := range d.nodeHealth {
		health[name] = state
	}
	return snapshot{TopicRatesPerSec: rates, NodeHealth: health}
}

func (d *Dashboard) handleTopics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.snapshotAndReset())
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("monitor websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	d.mu.Lock()
	d.conns[conn] = connID
	d.mu.Unlock()
	slog.Debug("monitor client connected", "conn_id", connID)

	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		conn.Close()
		slog.Debug("monitor client disconnected", "conn_id", connID)
	}()

	// The dashboard never expects inbound messages; block on reads
	// purely to detect disconnect (matches WSTransport's pattern of
	// treating a read error as "client gone").
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *Dashboard) broadcastLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			snap := d.snapshotAndReset()
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			d.broadcast(payload)
		}
	}
}

// broadcast iterates the connection set under the dashboard's mutex;
// each write is non-blocking best-effort — a slow or dead client never
// holds up delivery to the rest, matching spec.md §5's WebSocket
// connection-set policy.
func (d *Dashboard) broadcast(payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for conn, connID := range d.conns {
		conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("dropping slow monitor connection", "conn_id", connID, "error", err)
		}
	}
}
