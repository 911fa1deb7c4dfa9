// Package routing maps event types onto broker queues and message
// priorities.
package routing

import (
	"time"

	"github.com/moviehub/notify/internal/models"
)

// MaxPriority is the queue-level x-max-priority for every queue.
const MaxPriority = 5

// PriorityLevels derives the min/avg/max per-message priorities from the
// queue-level maximum.
type PriorityLevels struct {
	Min int
	Avg int
	Max int
}

// FromMaxPriority computes the levels: min is 1, avg is the integer
// midpoint of min and max.
func FromMaxPriority(maxPriority int) PriorityLevels {
	const minPriority = 1
	return PriorityLevels{
		Min: minPriority,
		Avg: (maxPriority + minPriority) / 2,
		Max: maxPriority,
	}
}

// Levels are the priorities used by the static event mapping.
var Levels = FromMaxPriority(MaxPriority)

// QueueConfig describes one broker queue.
type QueueConfig struct {
	Name string
	TTL  time.Duration
}

var (
	QueueHigh   = QueueConfig{Name: "notifications.high", TTL: 1 * time.Hour}
	QueueMedium = QueueConfig{Name: "notifications.medium", TTL: 2 * time.Hour}
	QueueLow    = QueueConfig{Name: "notifications.low", TTL: 3 * time.Hour}
)

// Queues lists every queue in priority-bucket order.
func Queues() []QueueConfig {
	return []QueueConfig{QueueHigh, QueueMedium, QueueLow}
}

// QueueNames lists the queue names in the same order as Queues.
func QueueNames() []string {
	names := make([]string, 0, 3)
	for _, q := range Queues() {
		names = append(names, q.Name)
	}
	return names
}

// KnownQueue reports whether name is one of the declared queues.
func KnownQueue(name string) bool {
	for _, q := range Queues() {
		if q.Name == name {
			return true
		}
	}
	return false
}

var eventQueues = map[models.EventType]QueueConfig{
	models.EventUserRegistration: QueueHigh,
	models.EventNewMovie:         QueueLow,
	models.EventCustom:           QueueMedium,
}

var eventPriorities = map[models.EventType]int{
	models.EventUserRegistration: Levels.Max,
	models.EventNewMovie:         Levels.Min,
	models.EventCustom:           Levels.Avg,
}

// QueueForEvent returns the queue an event routes to; unknown events fall
// into the medium bucket.
func QueueForEvent(event models.EventType) QueueConfig {
	if q, ok := eventQueues[event]; ok {
		return q
	}
	return QueueMedium
}

// PriorityForEvent returns the per-message priority for an event; unknown
// events get the average priority.
func PriorityForEvent(event models.EventType) int {
	if p, ok := eventPriorities[event]; ok {
		return p
	}
	return Levels.Avg
}

// Route resolves both the queue and the priority for an event.
func Route(event models.EventType) (QueueConfig, int) {
	return QueueForEvent(event), PriorityForEvent(event)
}
