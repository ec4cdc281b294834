package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEvent is returned for persisted events with no registered type.
var ErrUnknownEvent = errors.New("unknown event type")

// EventFactory returns a zero value of one concrete event type.
type EventFactory func() Event

// Registry decodes persisted events back into their concrete types.
type Registry struct {
	factories map[string]EventFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EventFactory)}
}

// Register binds eventType to factory, replacing any earlier binding.
func (r *Registry) Register(eventType string, factory EventFactory) {
	r.factories[eventType] = factory
}

// RawEvent is one row of the events table.
type RawEvent struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   int64
	Service    string
	Payload    string
	OccurredAt time.Time
}

// Unmarshal decodes raw into its registered type.
func (r *Registry) Unmarshal(raw RawEvent) (Event, error) {
	factory, ok := r.factories[raw.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, raw.EventType)
	}
	e := factory()
	if err := json.Unmarshal([]byte(raw.Payload), e); err != nil {
		return nil, fmt.Errorf("event %d (%s): %w", raw.ID, raw.EventType, err)
	}
	return e, nil
}

// Decode unmarshals a batch, skipping types this build does not know.
func (r *Registry) Decode(raws []RawEvent) ([]Event, error) {
	out := make([]Event, 0, len(raws))
	for _, raw := range raws {
		e, err := r.Unmarshal(raw)
		if errors.Is(err, ErrUnknownEvent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DefaultRegistry knows every session event type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for eventType, factory := range map[string]EventFactory{
		EventSessionStarted:   func() Event { return &SessionStarted{} },
		EventSessionEnded:     func() Event { return &SessionEnded{} },
		EventItemStatus:       func() Event { return &ItemStatusChanged{} },
		EventGalleryFiltered:  func() Event { return &GalleryFiltered{} },
		EventGallerySkipped:   func() Event { return &GallerySkipped{} },
		EventGalleryCompleted: func() Event { return &GalleryCompleted{} },
		EventFileCompleted:    func() Event { return &FileCompleted{} },
		EventDisconnected:     func() Event { return &NetworkStateChanged{} },
		EventReconnected:      func() Event { return &NetworkStateChanged{} },
	} {
		r.Register(eventType, factory)
	}
	return r
}
