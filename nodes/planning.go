package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

const planningTickPeriod = 100 * time.Millisecond

// Planning publishes a straight-line ego trajectory toward the current
// target on planning/trajectory via PublishLarge (spec.md §6: large
// trajectories use /chunk). visualizer/control's "set_target"/
// "set_speed" adjust the target and speed. The latest
// perception/obstacles list is stored but does not shape the path, and
// prediction/trajectories is not subscribed. Grounded on
// original_source/simple_planning; actual Bézier/pure-pursuit planning
// is out of scope.
type Planning struct {
	rt *node.Runtime

	mu        sync.Mutex
	obstacles []Obstacle
	target    Vector2
	speed     float64
}

// NewPlanning constructs a Planning bound to b.
func NewPlanning(b *bus.Bus) *Planning {
	p := &Planning{speed: 1.0}
	p.rt = node.New("planning", b, planningTickPeriod, p.tick)

	b.Subscribe("perception/obstacles", p.onObstacles)
	b.Subscribe("visualizer/control", p.onUserCommand)
	return p
}

func (p *Planning) Start() { p.rt.Start() }
func (p *Planning) Stop()  { p.rt.Stop() }

func (p *Planning) onObstacles(m bus.Message) {
	var list ObstacleList
	if err := json.Unmarshal(m.Payload, &list); err != nil {
		return
	}
	p.mu.Lock()
	p.obstacles = list.Obstacles
	p.mu.Unlock()
}

func (p *Planning) onUserCommand(m bus.Message) {
	var cmd UserCommand
	if err := json.Unmarshal(m.Payload, &cmd); err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch cmd.Cmd {
	case "set_target":
		p.target = Vector2{X: cmd.X, Y: cmd.Y}
	case "set_speed":
		p.speed = cmd.Value
	}
}

func (p *Planning) tick(ctx context.Context) error {
	p.mu.Lock()
	target := p.target
	speed := p.speed
	p.mu.Unlock()

	points := make([]TrajectoryPoint, 0, 10)
	for i := 1; i <= 10; i++ {
		frac := float64(i) / 10
		points = append(points, TrajectoryPoint{
			Position:  Vector2{X: target.X * frac, Y: target.Y * frac},
			TimeOffMs: int64(float64(i*100) / speed),
		})
	}

	trajectory := Trajectory{TimestampMs: time.Now().UnixMilli(), Points: points}
	payload, err := json.Marshal(trajectory)
	if err != nil {
		return err
	}
	return p.rt.Bus.PublishLarge("planning/trajectory", payload)
}
