// Command monitor runs the read-only operator dashboard (spec.md
// §4.11): an HTTP + WebSocket surface over chi and gorilla/websocket,
// plus a Prometheus /metrics endpoint.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/monitor"
	"github.com/senseauto/drivebus/transport"
)

// meteredTopics lists every standard producer topic from spec.md §6
// the dashboard tracks traffic rates for.
var meteredTopics = []string{
	"visualizer/data",
	"sensor/camera/front",
	"perception/obstacles",
	"perception/detection_2d",
	"prediction/trajectories",
	"planning/trajectory",
	"control/command",
	"visualizer/control",
	"visualizer/map",
	"system/node_status",
	"system/command",
	"system/status",
}

func main() {
	udp := transport.NewUDPBroadcast()
	b := bus.New(udp, prometheus.DefaultRegisterer)
	if err := b.Start(); err != nil {
		slog.Error("failed to start bus transport", "error", err)
		os.Exit(1)
	}
	defer b.Shutdown()

	dash := monitor.NewDashboard(b, ":9090", meteredTopics)
	if err := dash.Start(); err != nil {
		slog.Error("failed to start monitor dashboard", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = dash.Shutdown(shutdownCtx)

	slog.Info("monitor dashboard shut down")
}
