package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/daemon"
	"github.com/senseauto/drivebus/node"
)

const visualizerTickPeriod = time.Second

// Visualizer aggregates every display-bound topic into an in-memory
// snapshot and is the sole producer of visualizer/control and
// system/command (spec.md §6). Rendering itself is out of scope — a
// full WebSocket front-end is interface-only per spec.md §1 — so this
// stub exposes SendUserCommand/SendSystemCommand for whatever drives
// it (the monitor dashboard, a test harness, or an operator script) in
// place of an actual UI event source. Grounded on
// original_source/simple_visualizer's aggregation role, generalized
// from a rendering server to a programmatic command source.
type Visualizer struct {
	rt *node.Runtime

	mu        sync.Mutex
	world     WorldState
	obstacles ObstacleList
	plan      Trajectory
	lanes     LaneMap
	status    []daemon.CombinedStatus
}

// NewVisualizer constructs a Visualizer bound to b.
func NewVisualizer(b *bus.Bus) *Visualizer {
	v := &Visualizer{}
	v.rt = node.New("visualizer", b, visualizerTickPeriod, v.tick)

	b.Subscribe("visualizer/data", v.onWorldState)
	b.Subscribe("perception/obstacles", v.onObstacles)
	b.Subscribe("planning/trajectory", v.onTrajectory)
	b.Subscribe("visualizer/map", v.onLaneMap)
	b.Subscribe("system/status", v.onStatus)
	return v
}

func (v *Visualizer) Start() { v.rt.Start() }
func (v *Visualizer) Stop()  { v.rt.Stop() }

func (v *Visualizer) onWorldState(m bus.Message) {
	var world WorldState
	if err := json.Unmarshal(m.Payload, &world); err != nil {
		return
	}
	v.mu.Lock()
	v.world = world
	v.mu.Unlock()
}

func (v *Visualizer) onObstacles(m bus.Message) {
	var list ObstacleList
	if err := json.Unmarshal(m.Payload, &list); err != nil {
		return
	}
	v.mu.Lock()
	v.obstacles = list
	v.mu.Unlock()
}

func (v *Visualizer) onTrajectory(m bus.Message) {
	var traj Trajectory
	if err := json.Unmarshal(m.Payload, &traj); err != nil {
		return
	}
	v.mu.Lock()
	v.plan = traj
	v.mu.Unlock()
}

func (v *Visualizer) onLaneMap(m bus.Message) {
	var lanes LaneMap
	if err := json.Unmarshal(m.Payload, &lanes); err != nil {
		return
	}
	v.mu.Lock()
	v.lanes = lanes
	v.mu.Unlock()
}

func (v *Visualizer) onStatus(m bus.Message) {
	var cs daemon.CombinedStatus
	if err := json.Unmarshal(m.Payload, &cs); err != nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, existing := range v.status {
		if existing.NodeName == cs.NodeName {
			v.status[i] = cs
			return
		}
	}
	v.status = append(v.status, cs)
}

// Snapshot returns the aggregated display state as of the last
// received message on each topic.
func (v *Visualizer) Snapshot() (WorldState, ObstacleList, Trajectory, LaneMap, []daemon.CombinedStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.world, v.obstacles, v.plan, v.lanes, append([]daemon.CombinedStatus(nil), v.status...)
}

// SendUserCommand publishes cmd on visualizer/control.
func (v *Visualizer) SendUserCommand(cmd UserCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return v.rt.Bus.Publish("visualizer/control", payload)
}

// SendSystemCommand publishes cmd on system/command for the daemon
// supervisor to act on.
func (v *Visualizer) SendSystemCommand(cmd daemon.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return v.rt.Bus.Publish("system/command", payload)
}

func (v *Visualizer) tick(ctx context.Context) error {
	return nil
}
