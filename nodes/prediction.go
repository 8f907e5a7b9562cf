package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

const predictionTickPeriod = 100 * time.Millisecond

// Prediction subscribes perception/obstacles and republishes a
// straight-line trajectory forecast per tracked obstacle, using
// PublishLarge per spec.md §6 (large prediction sets use /chunk).
// Grounded on original_source/simple_prediction's obstacle-in,
// trajectory-out shape; actual motion-model fidelity is out of scope.
type Prediction struct {
	rt *node.Runtime

	mu        sync.Mutex
	obstacles []Obstacle
}

// NewPrediction constructs a Prediction bound to b.
func NewPrediction(b *bus.Bus) *Prediction {
	p := &Prediction{}
	p.rt = node.New("prediction", b, predictionTickPeriod, p.tick)

	b.Subscribe("perception/obstacles", p.onObstacles)
	return p
}

func (p *Prediction) Start() { p.rt.Start() }
func (p *Prediction) Stop()  { p.rt.Stop() }

func (p *Prediction) onObstacles(m bus.Message) {
	var list ObstacleList
	if err := json.Unmarshal(m.Payload, &list); err != nil {
		return
	}
	p.mu.Lock()
	p.obstacles = list.Obstacles
	p.mu.Unlock()
}

func (p *Prediction) tick(ctx context.Context) error {
	p.mu.Lock()
	obstacles := append([]Obstacle(nil), p.obstacles...)
	p.mu.Unlock()

	trajectories := make([]PredictedTrajectory, 0, len(obstacles))
	for _, o := range obstacles {
		points := make([]TrajectoryPoint, 0, 5)
		for i := 1; i <= 5; i++ {
			offsetMs := int64(i * 200)
			points = append(points, TrajectoryPoint{
				Position:  Vector2{X: o.Position.X + float64(i), Y: o.Position.Y},
				TimeOffMs: offsetMs,
			})
		}
		trajectories = append(trajectories, PredictedTrajectory{ObstacleID: o.ID, Points: points})
	}

	payload, err := json.Marshal(trajectories)
	if err != nil {
		return err
	}
	return p.rt.Bus.PublishLarge("prediction/trajectories", payload)
}
