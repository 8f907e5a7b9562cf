package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
	"github.com/senseauto/drivebus/wire"
)

const perceptionTickPeriod = 100 * time.Millisecond

// Perception reacts to camera frames (by their chunk-reassembled
// parent topic, sensor/camera/front) and republishes a synthetic
// obstacle list and 2-D detection array on a fixed tick. Grounded on
// perception_component.cpp's OnCameraData → frame-transform →
// obstacle-publish chain, with the actual detector replaced by a
// placeholder (detection fidelity is out of scope).
type Perception struct {
	rt *node.Runtime

	mu        sync.Mutex
	car       CarState
	frameSeen int
}

// NewPerception constructs a Perception bound to b.
func NewPerception(b *bus.Bus) *Perception {
	p := &Perception{}
	p.rt = node.New("perception", b, perceptionTickPeriod, p.tick)

	b.Subscribe("visualizer/data", p.onWorldState)
	b.Subscribe("sensor/camera/front", p.onCameraFrame)
	return p
}

func (p *Perception) Start() { p.rt.Start() }
func (p *Perception) Stop()  { p.rt.Stop() }

func (p *Perception) onWorldState(m bus.Message) {
	var world WorldState
	if err := json.Unmarshal(m.Payload, &world); err != nil {
		return
	}
	p.mu.Lock()
	p.car = world.Car
	p.mu.Unlock()
}

func (p *Perception) onCameraFrame(m bus.Message) {
	if wire.IsChunkTopic(m.Topic) {
		// Raw chunks are handled by the bus's reassembler before
		// dispatch; a direct subscriber only ever sees the
		// reassembled parent-topic message. Guard kept for clarity,
		// mirroring the registry's topic-exactness contract.
		return
	}
	p.mu.Lock()
	p.frameSeen++
	p.mu.Unlock()
}

func (p *Perception) tick(ctx context.Context) error {
	p.mu.Lock()
	car := p.car
	seen := p.frameSeen
	p.mu.Unlock()

	obstacles := ObstacleList{
		TimestampMs: time.Now().UnixMilli(),
		Obstacles: []Obstacle{
			{ID: fmt.Sprintf("obstacle-%d", seen%8), Position: Vector2{X: car.Position.X + 10, Y: car.Position.Y}, Radius: 1.0},
		},
	}
	payload, err := json.Marshal(obstacles)
	if err != nil {
		return err
	}
	if err := p.rt.Bus.Publish("perception/obstacles", payload); err != nil {
		return err
	}

	detections := DetectionList{
		TimestampMs: time.Now().UnixMilli(),
		Detections:  []Detection2D{{ClassLabel: "vehicle", X: 120, Y: 80, Width: 64, Height: 48}},
	}
	detectionPayload, err := json.Marshal(detections)
	if err != nil {
		return err
	}
	return p.rt.Bus.Publish("perception/detection_2d", detectionPayload)
}
