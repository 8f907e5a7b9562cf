// Command mcptools runs the bus introspection MCP tool server (spec.md
// §4.12) over stdio, mirroring server.MCPServer.Start's ServeStdio
// wiring.
package main

import (
	"log/slog"
	"os"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/mcptools"
	"github.com/senseauto/drivebus/transport"
)

func main() {
	udp := transport.NewUDPBroadcast()
	b := bus.New(udp, nil)
	if err := b.Start(); err != nil {
		slog.Error("failed to start bus transport", "error", err)
		os.Exit(1)
	}
	defer b.Shutdown()

	s := mcptools.NewServer(b)
	if err := s.Run(); err != nil {
		slog.Error("mcp tool server exited with error", "error", err)
		os.Exit(1)
	}
}
