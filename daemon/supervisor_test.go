package daemon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

func publishHeartbeat(t *testing.T, b *bus.Bus, name string, state node.State) {
	t.Helper()
	status := node.NodeStatus{NodeName: name, State: state, TimestampMs: time.Now().UnixMilli()}
	payload, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish(node.StatusTopic, payload); err != nil {
		t.Fatalf("publish heartbeat: %v", err)
	}
}

func TestSupervisorAggregatesHeartbeats(t *testing.T) {
	b := bus.New(nil, nil)
	sup := New(b, nil)
	sup.Start()
	defer sup.Stop()

	received := make(chan CombinedStatus, 4)
	b.Subscribe("system/status", func(m bus.Message) {
		var cs CombinedStatus
		if err := json.Unmarshal(m.Payload, &cs); err == nil {
			received <- cs
		}
	})

	publishHeartbeat(t, b, "sensor", node.StateOK)
	sup.tick(nil)

	select {
	case cs := <-received:
		if cs.NodeName != "sensor" {
			t.Errorf("node name = %q, want sensor", cs.NodeName)
		}
		if !cs.IsRunning {
			t.Error("expected IsRunning true for a fresh heartbeat")
		}
	case <-time.After(time.Second):
		t.Fatal("no combined status published")
	}
}

func TestSupervisorLivenessOverridesStaleState(t *testing.T) {
	b := bus.New(nil, nil)
	sup := New(b, nil)

	status := node.NodeStatus{NodeName: "perception", State: node.StateOK}
	sup.nodes["perception"] = &tracked{last: status, lastSeen: time.Now().Add(-10 * time.Second)}

	received := make(chan CombinedStatus, 1)
	b.Subscribe("system/status", func(m bus.Message) {
		var cs CombinedStatus
		if err := json.Unmarshal(m.Payload, &cs); err == nil {
			received <- cs
		}
	})

	if err := sup.tick(nil); err != nil {
		t.Fatalf("tick: %v", err)
	}

	select {
	case cs := <-received:
		if cs.IsRunning {
			t.Error("expected IsRunning false for a stale heartbeat")
		}
		if cs.State != node.StateOffline {
			t.Errorf("state = %v, want OFFLINE despite last self-reported OK", cs.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no combined status published")
	}
}
