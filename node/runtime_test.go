package node

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/senseauto/drivebus/bus"
)

func TestRuntimeStartIsIdempotent(t *testing.T) {
	b := bus.New(nil, nil)
	var ticks atomic.Int32
	rt := New("test-node", b, 10*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	rt.Start()
	rt.Start() // second call must be a no-op, not a second worker

	time.Sleep(50 * time.Millisecond)
	rt.Stop()

	if rt.Running() {
		t.Error("expected Running() false after Stop")
	}
}

func TestRuntimeStopWakesWorkerPromptly(t *testing.T) {
	b := bus.New(nil, nil)
	rt := New("test-node", b, time.Hour, func(ctx context.Context) error { return nil })

	rt.Start()
	done := make(chan struct{})
	go func() {
		rt.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly despite a long tick period")
	}
}

func TestRuntimeTickFailureDoesNotStopLoop(t *testing.T) {
	b := bus.New(nil, nil)
	var ticks atomic.Int32
	rt := New("flaky-node", b, 5*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return context.DeadlineExceeded
	})

	rt.Start()
	time.Sleep(60 * time.Millisecond)
	rt.Stop()

	if ticks.Load() < 2 {
		t.Errorf("expected multiple ticks despite errors, got %d", ticks.Load())
	}
}

func TestHeartbeatPublishesOnStatusTopic(t *testing.T) {
	b := bus.New(nil, nil)
	received := make(chan []byte, 1)
	b.Subscribe(StatusTopic, func(m bus.Message) {
		select {
		case received <- m.Payload:
		default:
		}
	})

	rt := New("heartbeat-node", b, time.Hour, func(ctx context.Context) error { return nil })
	rt.status.publish() // force one heartbeat instead of waiting 1s

	select {
	case payload := <-received:
		if len(payload) == 0 {
			t.Error("expected non-empty heartbeat payload")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no heartbeat delivered")
	}
	_ = rt
}

func TestSetStatusChangesNextHeartbeat(t *testing.T) {
	b := bus.New(nil, nil)
	rt := New("warn-node", b, time.Hour, func(ctx context.Context) error { return nil })
	rt.SetStatus(StateWarn, "degraded sensor feed")

	got := rt.status.Current()
	if got.State != StateWarn {
		t.Errorf("state = %v, want %v", got.State, StateWarn)
	}
	if got.Message != "degraded sensor feed" {
		t.Errorf("message = %q", got.Message)
	}
}
