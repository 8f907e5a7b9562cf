package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/daemon"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return text.Text
}

func TestListTopicsReflectsLiveSubscriptions(t *testing.T) {
	b := bus.New(nil, nil)
	s := NewServer(b)

	b.Subscribe("sensor/camera/front", func(bus.Message) {})

	res, err := s.handleListTopics(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleListTopics: %v", err)
	}

	if !strings.Contains(resultText(t, res), "sensor/camera/front") {
		t.Errorf("expected listed topics to contain sensor/camera/front, got %s", resultText(t, res))
	}
}

func TestSubscriberCountReportsRegisteredSubscribers(t *testing.T) {
	b := bus.New(nil, nil)
	s := NewServer(b)

	b.Subscribe("planning/trajectory", func(bus.Message) {})
	b.Subscribe("planning/trajectory", func(bus.Message) {})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"topic": "planning/trajectory"}

	res, err := s.handleSubscriberCount(context.Background(), req)
	if err != nil {
		t.Fatalf("handleSubscriberCount: %v", err)
	}

	var counts map[string]int
	if err := json.Unmarshal([]byte(resultText(t, res)), &counts); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if counts["planning/trajectory"] != 2 {
		t.Errorf("count = %d, want 2", counts["planning/trajectory"])
	}
}

func TestNodeStatusReflectsLatestCombinedStatus(t *testing.T) {
	b := bus.New(nil, nil)
	s := NewServer(b)

	cs := daemon.CombinedStatus{IsRunning: true}
	cs.NodeName = "perception"
	payload, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish("system/status", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		_, seen := s.statuses["perception"]
		s.mu.Unlock()
		if seen {
			break
		}
		time.Sleep(time.Millisecond)
	}

	res, err := s.handleNodeStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleNodeStatus: %v", err)
	}
	if !strings.Contains(resultText(t, res), "perception") {
		t.Errorf("expected node_status to report perception, got %s", resultText(t, res))
	}
}
