package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/senseauto/drivebus/bus"
)

func TestDashboardCountsPublishesPerTopic(t *testing.T) {
	b := bus.New(nil, nil)
	d := NewDashboard(b, ":0", []string{"sensor/camera/front"})

	d.b.Subscribe("sensor/camera/front", func(bus.Message) { d.recordPublish("sensor/camera/front") })

	for i := 0; i < 3; i++ {
		if err := b.Publish("sensor/camera/front", []byte("frame")); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	snap := d.snapshotAndReset()
	if snap.TopicRatesPerSec["sensor/camera/front"] != 3 {
		t.Errorf("rate = %d, want 3", snap.TopicRatesPerSec["sensor/camera/front"])
	}

	// A second read after reset should see the window cleared.
	snap2 := d.snapshotAndReset()
	if snap2.TopicRatesPerSec["sensor/camera/front"] != 0 {
		t.Errorf("rate after reset = %d, want 0", snap2.TopicRatesPerSec["sensor/camera/front"])
	}
}

func TestDashboardTracksNodeHealthFromStatusTopic(t *testing.T) {
	b := bus.New(nil, nil)
	d := NewDashboard(b, ":0", nil)
	b.Subscribe("system/status", d.onStatus)

	payload, err := json.Marshal(map[string]any{"node_name": "sensor", "state": "OK"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish("system/status", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	snap := d.snapshotAndReset()
	if snap.NodeHealth["sensor"] != "OK" {
		t.Errorf("node health = %q, want OK", snap.NodeHealth["sensor"])
	}
}

func TestHandleTopicsServesJSONSnapshot(t *testing.T) {
	b := bus.New(nil, nil)
	d := NewDashboard(b, ":0", []string{"planning/trajectory"})

	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	rec := httptest.NewRecorder()
	d.handleTopics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := snap.TopicRatesPerSec["planning/trajectory"]; !ok {
		t.Error("expected planning/trajectory in the served snapshot")
	}
}

func TestBroadcastReturnsImmediatelyWithNoConnections(t *testing.T) {
	b := bus.New(nil, nil)
	d := NewDashboard(b, ":0", nil)

	done := make(chan struct{})
	go func() {
		d.broadcast([]byte(`{}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast with zero connections should return immediately")
	}
}
