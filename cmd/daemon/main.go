// Command daemon runs the bus daemon supervisor (spec.md §4.10): it
// binds the UDP broadcast transport, aggregates every node's
// system/node_status heartbeat into system/status, and owns
// system/command-driven child-process lifecycle.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/daemon"
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

	sup := daemon.New(b, spawnNode)
	sup.Start()
	defer sup.Stop()

	slog.Info("daemon supervisor started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("daemon supervisor shutting down")
}

// spawnNode resolves a node name to the binary ./<name> in the
// daemon's working directory and builds the *exec.Cmd the supervisor
// starts. Paths assume each node binary has been built alongside the
// daemon (see spec.md §9's os/exec substitution note).
func spawnNode(name string) *exec.Cmd {
	cmd := exec.Command("./" + name)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
