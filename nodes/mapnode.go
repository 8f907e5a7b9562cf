package nodes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/senseauto/drivebus/bus"
	"github.com/senseauto/drivebus/node"
)

// mapTickPeriod is slow: lane geometry is effectively static for a
// demo run, grounded on original_source/simple_map publishing once
// per scenario rather than per physics step.
const mapTickPeriod = 5 * time.Second

// MapNode publishes a fixed lane-geometry record on visualizer/map via
// PublishLarge (spec.md §6: uses /chunk); the placeholder two-lane
// record is smaller than bus.EffectiveChunkSize, so it goes out as one
// unchunked frame. Grounded on
// original_source/simple_map's static scenario geometry; the lane
// network itself is a placeholder since map-data fidelity is out of
// scope.
type MapNode struct {
	rt    *node.Runtime
	lanes LaneMap
}

// NewMapNode constructs a MapNode bound to b, publishing a small
// fixed two-lane placeholder network.
func NewMapNode(b *bus.Bus) *MapNode {
	m := &MapNode{
		lanes: LaneMap{Segments: []LaneSegment{
			{ID: "lane-0", Points: []Vector2{{X: 0, Y: 0}, {X: 100, Y: 0}}},
			{ID: "lane-1", Points: []Vector2{{X: 0, Y: 3.5}, {X: 100, Y: 3.5}}},
		}},
	}
	m.rt = node.New("map", b, mapTickPeriod, m.tick)
	return m
}

func (m *MapNode) Start() { m.rt.Start() }
func (m *MapNode) Stop()  { m.rt.Stop() }

func (m *MapNode) tick(ctx context.Context) error {
	payload, err := json.Marshal(m.lanes)
	if err != nil {
		return err
	}
	return m.rt.Bus.PublishLarge("visualizer/map", payload)
}
