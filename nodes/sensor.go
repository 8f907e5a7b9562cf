package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

const sensorTickPeriod = 100 * time.Millisecond

// placeholderFrameWidth/Height size the placeholder byte payload that
// stands in for a synthesized camera image; the
// actual rendering pipeline is out of scope (spec.md §1 non-goals).
// Large enough to exercise PublishLarge's chunking path every tick.
const placeholderFrameWidth, placeholderFrameHeight = 320, 240

// Sensor subscribes to the simulator's world state and publishes a
// placeholder camera frame every tick, using PublishLarge since a
// frame at this resolution exceeds bus.EffectiveChunkSize. Grounded on
// perception_component.cpp's OnCarStatus pattern (tracking the last
// known car pose for coordinate transforms) generalized to the sensor
// side of that same relationship.
type Sensor struct {
	rt *node.Runtime

	mu  sync.Mutex
	car CarState
}

// NewSensor constructs a Sensor bound to b.
func NewSensor(b *bus.Bus) *Sensor {
	s := &Sensor{}
	s.rt = node.New("sensor", b, sensorTickPeriod, s.tick)

	b.Subscribe("visualizer/data", s.onWorldState)
	return s
}

func (s *Sensor) Start() { s.rt.Start() }
func (s *Sensor) Stop()  { s.rt.Stop() }

func (s *Sensor) onWorldState(m bus.Message) {
	var world WorldState
	if err := json.Unmarshal(m.Payload, &world); err != nil {
		return
	}
	s.mu.Lock()
	s.car = world.Car
	s.mu.Unlock()
}

func (s *Sensor) tick(ctx context.Context) error {
	frame := CameraFrame{
		TimestampMs: time.Now().UnixMilli(),
		Width:       placeholderFrameWidth,
		Height:      placeholderFrameHeight,
		Data:        make([]byte, placeholderFrameWidth*placeholderFrameHeight/8),
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.rt.Bus.PublishLarge("sensor/camera/front", payload)
}
