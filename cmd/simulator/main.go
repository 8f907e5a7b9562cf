// Command simulator runs the toy vehicle physics node (spec.md §2,
// component C9): it publishes visualizer/data and reacts to
// control/command and visualizer/control.
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

	n := nodes.NewSimulator(b)
	n.Start()
	defer n.Stop()

	slog.Info("simulator node started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("simulator node shutting down")
}
