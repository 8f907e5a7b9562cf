package nodes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

// simTickPeriod matches original_source's physics step rate (100 Hz).
const simTickPeriod = 10 * time.Millisecond

// Simulator steps a toy vehicle forward each tick and publishes its
// world state on visualizer/data; it applies the last received
// control/command and reacts to visualizer/control's "reset"/"stop".
// Grounded on simulator_core.{hpp,cpp}'s RunLoop + OnControlCommand +
// OnControlMessage shape.
type Simulator struct {
	rt *node.Runtime

	mu      sync.Mutex
	state   CarState
	command ControlCommand
	stopped bool
}

// NewSimulator constructs a Simulator bound to b.
func NewSimulator(b *bus.Bus) *Simulator {
	s := &Simulator{}
	s.rt = node.New("simulator", b, simTickPeriod, s.tick)

	b.Subscribe("control/command", s.onControlCommand)
	b.Subscribe("visualizer/control", s.onUserCommand)
	return s
}

func (s *Simulator) Start() { s.rt.Start() }
func (s *Simulator) Stop()  { s.rt.Stop() }

func (s *Simulator) onControlCommand(m bus.Message) {
	var cmd ControlCommand
	if err := json.Unmarshal(m.Payload, &cmd); err != nil {
		return
	}
	s.mu.Lock()
	s.command = cmd
	s.mu.Unlock()
}

func (s *Simulator) onUserCommand(m bus.Message) {
	var cmd UserCommand
	if err := json.Unmarshal(m.Payload, &cmd); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Cmd {
	case "reset":
		s.state = CarState{}
		s.command = ControlCommand{}
	case "stop":
		s.stopped = true
		s.command = ControlCommand{}
	}
}

func (s *Simulator) stepPhysics(dt float64) CarState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.state.Speed += s.command.Throttle*dt - s.command.Brake*dt
		if s.state.Speed < 0 {
			s.state.Speed = 0
		}
		s.state.Heading += s.command.Steer * dt
		s.state.Position.X += s.state.Speed * dt
		s.state.Position.Y += s.state.Speed * dt * s.state.Heading
	}
	return s.state
}

func (s *Simulator) tick(ctx context.Context) error {
	dt := simTickPeriod.Seconds()
	state := s.stepPhysics(dt)

	world := WorldState{TimestampMs: time.Now().UnixMilli(), Car: state}
	payload, err := json.Marshal(world)
	if err != nil {
		return err
	}
	return s.rt.Bus.Publish("visualizer/data", payload)
}
