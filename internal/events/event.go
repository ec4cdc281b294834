// Package events is an in-process pub/sub bus for session lifecycle events.
package events

import "time"

// Event is the interface every session event implements.
type Event interface {
	EventType() string
	EntityType() string // "session", "item", "gallery", "file", "network"
	EntityID() int64
	ServiceName() string
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events. ID is a gallery id
// for gallery and file events and an item position for item events.
type BaseEvent struct {
	Type      string    `json:"type"`
	Entity    string    `json:"entity_type"`
	ID        int64     `json:"entity_id"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EntityType() string    { return e.Entity }
func (e BaseEvent) EntityID() int64       { return e.ID }
func (e BaseEvent) ServiceName() string   { return e.Service }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event of service with the current UTC time.
func NewBaseEvent(eventType, entityType, service string, entityID int64) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Entity:    entityType,
		ID:        entityID,
		Service:   service,
		Timestamp: time.Now().UTC(),
	}
}
