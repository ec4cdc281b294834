package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Sink persists published events. The catalog implements it.
type Sink interface {
	AppendEvent(Event) error
}

type subscription struct {
	ch    chan Event
	match func(Event) bool
	label string
}

// Bus fans session events out to subscribers and the optional sink.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	sink   Sink // may be nil
	logger *slog.Logger
	closed bool
}

// NewBus creates a bus. Pass a nil sink to disable persistence.
func NewBus(sink Sink, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{sink: sink, logger: logger}
}

// Publish persists e and offers it to every matching subscriber. Delivery
// never blocks: a full subscriber loses the event.
func (b *Bus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	if b.sink != nil {
		if err := b.sink.AppendEvent(e); err != nil {
			b.logger.Warn("failed to persist event", "type", e.EventType(), "error", err)
		}
	}

	for _, s := range subs {
		if !s.match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"subscription", s.label,
				"type", e.EventType(),
				"service", e.ServiceName(),
				"entity_id", e.EntityID())
		}
	}
	return nil
}

func (b *Bus) subscribe(label string, bufferSize int, match func(Event) bool) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, &subscription{ch: ch, match: match, label: label})
	return ch
}

// Subscribe returns a channel for events of one type.
func (b *Bus) Subscribe(eventType string, bufferSize int) <-chan Event {
	return b.subscribe(eventType, bufferSize, func(e Event) bool { return e.EventType() == eventType })
}

// SubscribeService returns a channel for every event of one service.
func (b *Bus) SubscribeService(service string, bufferSize int) <-chan Event {
	return b.subscribe("service:"+service, bufferSize, func(e Event) bool { return e.ServiceName() == service })
}

// SubscribeAll returns a channel for all events.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	return b.subscribe("*", bufferSize, func(Event) bool { return true })
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s *subscription) bool { return s.ch == ch })
	if i < 0 {
		return
	}
	close(b.subs[i].ch)
	b.subs = slices.Delete(b.subs, i, i+1)
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	return nil
}
