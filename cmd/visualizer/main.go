// Command visualizer runs the display-aggregation node (spec.md §2,
// component C9): it subscribes every display-bound topic and is the
// sole producer of visualizer/control and system/command. Actual
// rendering is out of scope; this binary exists to host the
// aggregated snapshot for whatever drives it (the monitor dashboard or
// an operator script).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/nodes"
	"github.com/senseauto/drivebus/transport"
)

func main() {
	udp := transport.NewUDPBroadcast()
	b := bus.New(udp, prometheus.DefaultRegisterer)
	if err := b.Start(); err != nil {
		slog.Error("failed to start bus transport", "error", err)
		os.Exit(1)
	}
	defer b.Shutdown()

	n := nodes.NewVisualizer(b)
	n.Start()
	defer n.Stop()

	slog.Info("visualizer node started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("visualizer node shutting down")
}
