// Command perception runs the perception node (spec.md §2, component
// C9): it consumes sensor/camera/front and publishes
// perception/obstacles and perception/detection_2d.
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

	n := nodes.NewPerception(b)
	n.Start()
	defer n.Stop()

	slog.Info("perception node started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("perception node shutting down")
}
