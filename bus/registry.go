package bus

import (
	"errors"
	"sync"

	"github.com/senseauto/drivebus/wire"
)

// ErrInvalidTopic is returned by Subscribe for an empty or malformed
// topic, or a nil callback.
var ErrInvalidTopic = errors.New("bus: invalid topic or callback")

type subscription struct {
	id       int64
	topic    string
	callback Callback
}

// Registry is the process-wide map from topic to subscription ids and
// from id to subscription record. It is guarded by a single mutex, as
// the teacher's DeviceRegistry and Broker both are: the hot path
// (publish) only reads the topic list before handing off a snapshot,
// so splitting the lock per-topic would add complexity without a
// measured benefit.
type Registry struct {
	mu      sync.Mutex
	byID    map[int64]*subscription
	byTopic map[string][]int64
	nextID  int64
}

// NewRegistry returns an empty registry with its id counter starting
// at 1 (0 is reserved as the zero value / "no subscription").
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[int64]*subscription),
		byTopic: make(map[string][]int64),
		nextID:  1,
	}
}

// Subscribe registers callback on topic and returns a monotonically
// increasing, process-wide-unique id. IDs are allocated under the
// same mutex as the map mutations so they are strictly monotonic even
// under concurrent Subscribe calls.
func (r *Registry) Subscribe(topic string, callback Callback) (int64, error) {
	if err := wire.ValidateTopic(topic); err != nil {
		return 0, ErrInvalidTopic
	}
	if callback == nil {
		return 0, ErrInvalidTopic
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	r.byID[id] = &subscription{id: id, topic: topic, callback: callback}
	r.byTopic[topic] = append(r.byTopic[topic], id)

	return id, nil
}

// Unsubscribe removes a subscription by id. Returns true iff the id
// existed.
func (r *Registry) Unsubscribe(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	r.removeFromTopic(sub.topic, id)
	return true
}

// UnsubscribeTopic removes every subscription on topic in one
// critical section and returns how many were removed.
func (r *Registry) UnsubscribeTopic(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byTopic[topic]
	count := len(ids)
	for _, id := range ids {
		delete(r.byID, id)
	}
	delete(r.byTopic, topic)
	return count
}

// removeFromTopic must be called with r.mu held.
func (r *Registry) removeFromTopic(topic string, id int64) {
	ids := r.byTopic[topic]
	for i, existing := range ids {
		if existing == id {
			r.byTopic[topic] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byTopic[topic]) == 0 {
		delete(r.byTopic, topic)
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (r *Registry) SubscriberCount(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTopic[topic])
}

// AllTopics returns a snapshot of every topic with at least one
// subscriber.
func (r *Registry) AllTopics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, 0, len(r.byTopic))
	for topic := range r.byTopic {
		topics = append(topics, topic)
	}
	return topics
}

// snapshot returns the ordered callback slice for topic, captured
// atomically under the registry mutex. Called only by the dispatcher.
func (r *Registry) snapshot(topic string) []Callback {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.byTopic[topic]
	if !ok {
		return nil
	}
	callbacks := make([]Callback, 0, len(ids))
	for _, id := range ids {
		if sub, ok := r.byID[id]; ok {
			callbacks = append(callbacks, sub.callback)
		}
	}
	return callbacks
}
