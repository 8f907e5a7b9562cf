package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

const controlTickPeriod = 20 * time.Millisecond

// Control tracks planning/trajectory's first waypoint and the
// simulator's current pose, and publishes a proportional actuation
// command on control/command every tick. Grounded on
// original_source/simple_planning's control-command hand-off; a real
// pure-pursuit controller is out of scope.
type Control struct {
	rt *node.Runtime

	mu        sync.Mutex
	car       CarState
	nextWaypt Vector2
	haveWaypt bool
}

// NewControl constructs a Control bound to b.
func NewControl(b *bus.Bus) *Control {
	c := &Control{}
	c.rt = node.New("control", b, controlTickPeriod, c.tick)

	b.Subscribe("planning/trajectory", c.onTrajectory)
	b.Subscribe("visualizer/data", c.onWorldState)
	return c
}

func (c *Control) Start() { c.rt.Start() }
func (c *Control) Stop()  { c.rt.Stop() }

func (c *Control) onTrajectory(m bus.Message) {
	var traj Trajectory
	if err := json.Unmarshal(m.Payload, &traj); err != nil || len(traj.Points) == 0 {
		return
	}
	c.mu.Lock()
	c.nextWaypt = traj.Points[0].Position
	c.haveWaypt = true
	c.mu.Unlock()
}

func (c *Control) onWorldState(m bus.Message) {
	var world WorldState
	if err := json.Unmarshal(m.Payload, &world); err != nil {
		return
	}
	c.mu.Lock()
	c.car = world.Car
	c.mu.Unlock()
}

func (c *Control) tick(ctx context.Context) error {
	c.mu.Lock()
	car, waypt, have := c.car, c.nextWaypt, c.haveWaypt
	c.mu.Unlock()

	var cmd ControlCommand
	cmd.TimestampMs = time.Now().UnixMilli()
	if have {
		dx := waypt.X - car.Position.X
		dy := waypt.Y - car.Position.Y
		cmd.Throttle = clamp(dx*0.1, -1, 1)
		cmd.Steer = clamp(dy*0.1, -1, 1)
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.rt.Bus.Publish("control/command", payload)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
