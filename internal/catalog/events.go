package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmunix/galleria/internal/events"
)

// AppendEvent queues e for persistence. It satisfies events.Sink.
func (s *Store) AppendEvent(e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.enqueueWrite(writeJob{stmts: []stmt{{
		query: `INSERT INTO events (event_type, entity_type, entity_id, service, payload, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		args: []any{e.EventType(), e.EntityType(), e.EntityID(), e.ServiceName(), string(payload), e.OccurredAt().UTC()},
	}}})
}

// EventsSince returns persisted events that occurred at or after t.
func (s *Store) EventsSince(ctx context.Context, t time.Time) ([]events.RawEvent, error) {
	ch := make(chan result, 1)
	err := s.enqueueRead(readJob{
		query: `SELECT id, event_type, entity_type, entity_id, service, payload, occurred_at
FROM events WHERE occurred_at >= ? ORDER BY id ASC`,
		args: []any{t.UTC()},
		fn:   func(rows []Row, err error) { ch <- result{rows, err} },
	})
	if err != nil {
		return nil, err
	}

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, fmt.Errorf("query events: %w", r.err)
	}

	out := make([]events.RawEvent, 0, len(r.rows))
	for _, row := range r.rows {
		e := events.RawEvent{
			EventType:  fmt.Sprint(row["event_type"]),
			EntityType: fmt.Sprint(row["entity_type"]),
			Service:    fmt.Sprint(row["service"]),
			Payload:    fmt.Sprint(row["payload"]),
		}
		e.ID, _ = row["id"].(int64)
		e.EntityID, _ = row["entity_id"].(int64)
		e.OccurredAt, _ = row["occurred_at"].(time.Time)
		out = append(out, e)
	}
	return out, nil
}

// PruneEvents deletes events older than olderThan and waits for the commit.
func (s *Store) PruneEvents(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC()
	return s.submit(ctx, []stmt{{query: `DELETE FROM events WHERE occurred_at < ?`, args: []any{cutoff}}})
}
