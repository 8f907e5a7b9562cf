// Package nodes provides thin client-module stubs for every
// interface-only component named in spec.md §2 (simulator, sensor,
// perception, prediction, planning, control, map, visualizer): each is
// specified by the topics it produces and consumes, not by physics,
// rendering, or detection fidelity (all explicitly out of scope). Each
// stub is grounded on original_source's per-component run loop shape
// (a fixed-rate thread plus inbound-topic callbacks updating a
// mutex-protected state struct) and built on node.Runtime exactly as
// spec.md §4.7 describes it.
//
// Every payload here is encoded as JSON, including the topics spec.md
// §6 calls "binary" (camera frames, actuation records, world state):
// since the exact binary schema for vehicle kinematics, camera
// synthesis, and detection fidelity is explicitly out of scope, this
// module follows NodeStatus's precedent (see node/status.go) and uses
// the one payload convention the rest of the bus already standardizes
// on, rather than inventing an unspecified binary layout.
package nodes

// Vector2 is a minimal 2-D point, used across several topics'
// placeholder payloads.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CarState is the simulator's world-state record for one vehicle.
type CarState struct {
	Position Vector2 `json:"position"`
	Heading  float64 `json:"heading_rad"`
	Speed    float64 `json:"speed"`
}

// WorldState is published on visualizer/data.
type WorldState struct {
	TimestampMs int64    `json:"timestamp_ms"`
	Car         CarState `json:"car"`
}

// CameraFrame is published on sensor/camera/front. Data is a
// placeholder byte payload standing in for an encoded image; actual
// camera synthesis is out of scope.
type CameraFrame struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        []byte `json:"data"`
}

// Obstacle is one entry in perception/obstacles.
type Obstacle struct {
	ID       string  `json:"id"`
	Position Vector2 `json:"position"`
	Radius   float64 `json:"radius"`
}

// ObstacleList is published on perception/obstacles.
type ObstacleList struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Obstacles   []Obstacle `json:"obstacles"`
}

// Detection2D is one entry in perception/detection_2d.
type Detection2D struct {
	ClassLabel string  `json:"class_label"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// DetectionList is published on perception/detection_2d.
type DetectionList struct {
	TimestampMs int64         `json:"timestamp_ms"`
	Detections  []Detection2D `json:"detections"`
}

// TrajectoryPoint is one waypoint in a predicted or planned path.
type TrajectoryPoint struct {
	Position  Vector2 `json:"position"`
	TimeOffMs int64   `json:"time_offset_ms"`
}

// PredictedTrajectory is one tracked obstacle's predicted path,
// published on prediction/trajectories.
type PredictedTrajectory struct {
	ObstacleID string            `json:"obstacle_id"`
	Points     []TrajectoryPoint `json:"points"`
}

// Trajectory is the ego vehicle's planned path, published on
// planning/trajectory.
type Trajectory struct {
	TimestampMs int64             `json:"timestamp_ms"`
	Points      []TrajectoryPoint `json:"points"`
}

// ControlCommand is published on control/command: the low-level
// actuation record the simulator consumes.
type ControlCommand struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Throttle    float64 `json:"throttle"`
	Steer       float64 `json:"steer"`
	Brake       float64 `json:"brake"`
}

// UserCommand is published on visualizer/control. Unknown Cmd values
// are ignored by every consumer per spec.md §6.
type UserCommand struct {
	Cmd   string  `json:"cmd"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// LaneSegment is one polyline in the map's lane geometry.
type LaneSegment struct {
	ID     string    `json:"id"`
	Points []Vector2 `json:"points"`
}

// LaneMap is published on visualizer/map.
type LaneMap struct {
	Segments []LaneSegment `json:"segments"`
}
