package nodes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/senseauto/drivebus/bus"
)

func waitForMessage(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func subscribeCollecting(b *bus.Bus, topic string) <-chan []byte {
	ch := make(chan []byte, 8)
	b.Subscribe(topic, func(m bus.Message) {
		select {
		case ch <- m.Payload:
		default:
		}
	})
	return ch
}

func TestSimulatorAppliesControlCommandsAndPublishesWorldState(t *testing.T) {
	b := bus.New(nil, nil)
	worldCh := subscribeCollecting(b, "visualizer/data")

	sim := NewSimulator(b)
	defer sim.Stop()

	cmd := ControlCommand{Throttle: 1.0}
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish("control/command", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sim.Start()

	var world WorldState
	if err := json.Unmarshal(waitForMessage(t, worldCh), &world); err != nil {
		t.Fatalf("unmarshal world state: %v", err)
	}
	if world.Car.Speed <= 0 {
		t.Errorf("speed = %v, want > 0 after a full-throttle command", world.Car.Speed)
	}
}

func TestSimulatorResetClearsState(t *testing.T) {
	b := bus.New(nil, nil)
	sim := NewSimulator(b)

	sim.mu.Lock()
	sim.state.Speed = 10
	sim.mu.Unlock()

	cmd := UserCommand{Cmd: "reset"}
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish("visualizer/control", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sim.mu.Lock()
	speed := sim.state.Speed
	sim.mu.Unlock()
	if speed != 0 {
		t.Errorf("speed after reset = %v, want 0", speed)
	}
}

func TestControlClampsOutputToUnitRange(t *testing.T) {
	if got := clamp(5, -1, 1); got != 1 {
		t.Errorf("clamp(5, -1, 1) = %v, want 1", got)
	}
	if got := clamp(-5, -1, 1); got != -1 {
		t.Errorf("clamp(-5, -1, 1) = %v, want -1", got)
	}
	if got := clamp(0.3, -1, 1); got != 0.3 {
		t.Errorf("clamp(0.3, -1, 1) = %v, want 0.3", got)
	}
}

func TestPlanningUsesSetTargetForTrajectory(t *testing.T) {
	b := bus.New(nil, nil)
	trajCh := subscribeCollecting(b, "planning/trajectory")

	p := NewPlanning(b)
	defer p.Stop()

	cmd := UserCommand{Cmd: "set_target", X: 50, Y: 10}
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish("visualizer/control", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	p.Start()

	var traj Trajectory
	if err := json.Unmarshal(waitForMessage(t, trajCh), &traj); err != nil {
		t.Fatalf("unmarshal trajectory: %v", err)
	}
	if len(traj.Points) == 0 {
		t.Fatal("expected at least one trajectory point")
	}
	last := traj.Points[len(traj.Points)-1]
	if last.Position.X != 50 || last.Position.Y != 10 {
		t.Errorf("final waypoint = %+v, want (50, 10)", last.Position)
	}
}

func TestPerceptionPublishesObstaclesOnTick(t *testing.T) {
	b := bus.New(nil, nil)
	obstaclesCh := subscribeCollecting(b, "perception/obstacles")

	p := NewPerception(b)
	defer p.Stop()
	p.Start()

	var list ObstacleList
	if err := json.Unmarshal(waitForMessage(t, obstaclesCh), &list); err != nil {
		t.Fatalf("unmarshal obstacle list: %v", err)
	}
	if len(list.Obstacles) == 0 {
		t.Error("expected at least one synthesized obstacle")
	}
}

func TestVisualizerAggregatesStatusByNodeName(t *testing.T) {
	b := bus.New(nil, nil)
	v := NewVisualizer(b)
	defer v.Stop()

	publishStatus := func(name string, running bool) {
		cs := map[string]any{"node_name": name, "is_running": running}
		payload, err := json.Marshal(cs)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := b.Publish("system/status", payload); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	publishStatus("sensor", true)
	publishStatus("sensor", false) // update, not a second entry

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, _, _, _, statuses := v.Snapshot()
		if len(statuses) == 1 && !statuses[0].IsRunning {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected exactly one updated status entry for sensor")
}
