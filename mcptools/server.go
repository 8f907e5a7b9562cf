// Package mcptools exposes read-only bus introspection as MCP tools,
// grounded on server.Coordinator's mcp.NewTool/AddTool wiring (the
// teacher's single "list_devices" tool) generalized from "list
// connected clients" to three tools covering topics, subscriber
// counts, and node health — everything an operator or an LLM
// assistant needs to inspect the bus without touching it.
package mcptools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/daemon"
)

// Server wraps an MCP stdio server exposing three read-only tools:
// list_topics, subscriber_count, and node_status. It never publishes
// to the bus; a tool that could mutate the system it's inspecting
// would defeat the purpose of a read-only introspection surface.
type Server struct {
	b        *bus.Bus
	mcp      *server.MCPServer
	mu       sync.Mutex
	statuses map[string]daemon.CombinedStatus
}

// NewServer constructs a Server bound to b. It subscribes system/status
// immediately so node_status has data available as soon as the first
// combined record arrives, independent of when Run is called.
func NewServer(b *bus.Bus) *Server {
	s := &Server{
		b:        b,
		mcp:      server.NewMCPServer("drivebus introspection", "1.0.0"),
		statuses: make(map[string]daemon.CombinedStatus),
	}

	s.b.Subscribe("system/status", s.onStatus)
	s.registerTools()
	return s
}

func (s *Server) onStatus(m bus.Message) {
	var cs daemon.CombinedStatus
	if err := json.Unmarshal(m.Payload, &cs); err != nil {
		return
	}
	s.mu.Lock()
	s.statuses[cs.NodeName] = cs
	s.mu.Unlock()
}

func (s *Server) registerTools() {
	listTopics := mcp.NewTool("list_topics",
		mcp.WithDescription("List every topic with at least one live subscriber"))
	s.mcp.AddTool(listTopics, s.handleListTopics)

	subscriberCount := mcp.NewTool("subscriber_count",
		mcp.WithDescription("Return the number of live subscribers for a topic"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("topic name to query")))
	s.mcp.AddTool(subscriberCount, s.handleSubscriberCount)

	nodeStatus := mcp.NewTool("node_status",
		mcp.WithDescription("Return the last known combined status (heartbeat plus daemon liveness judgement) for every node"))
	s.mcp.AddTool(nodeStatus, s.handleNodeStatus)
}

func textResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(payload)},
		},
	}, nil
}

func (s *Server) handleListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(s.b.AllTopics())
}

func (s *Server) handleSubscriberCount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := request.RequireString("topic")
	if err != nil {
		return nil, err
	}
	return textResult(map[string]int{topic: s.b.SubscriberCount(topic)})
}

func (s *Server) handleNodeStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	out := make([]daemon.CombinedStatus, 0, len(s.statuses))
	for _, cs := range s.statuses {
		out = append(out, cs)
	}
	s.mu.Unlock()
	return textResult(out)
}

// Run serves the MCP tool set over stdio until the client disconnects.
// Mirrors server.MCPServer.Start's log-wrapped ServeStdio call.
func (s *Server) Run() error {
	slog.Info("started drivebus mcp tool server")
	defer slog.Info("shut down drivebus mcp tool server")
	return server.ServeStdio(s.mcp)
}
