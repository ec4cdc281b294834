package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Alerts dispatches high-severity log records to registered callbacks.
// Records at WARN or above trigger the warn callbacks; ERROR or above
// additionally trigger the halt callbacks.
type Alerts struct {
	mu     sync.RWMutex
	onWarn []func(slog.Record)
	onHalt []func(slog.Record)
}

// OnWarn registers fn for WARN+ records.
func (a *Alerts) OnWarn(fn func(slog.Record)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onWarn = append(a.onWarn, fn)
}

// OnHalt registers fn for ERROR+ records.
func (a *Alerts) OnHalt(fn func(slog.Record)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onHalt = append(a.onHalt, fn)
}

func (a *Alerts) dispatch(r slog.Record) {
	if r.Level < slog.LevelWarn {
		return
	}
	a.mu.RLock()
	warn := append([]func(slog.Record){}, a.onWarn...)
	var halt []func(slog.Record)
	if r.Level >= slog.LevelError {
		halt = append(halt, a.onHalt...)
	}
	a.mu.RUnlock()

	for _, fn := range warn {
		fn(r)
	}
	for _, fn := range halt {
		fn(r)
	}
}

// AlertHandler forwards records to next and raises alerts. Alerts fire
// even when next filters the record out by level.
type AlertHandler struct {
	next   slog.Handler
	alerts *Alerts
}

// NewAlertHandler wraps next.
func NewAlertHandler(next slog.Handler, alerts *Alerts) *AlertHandler {
	return &AlertHandler{next: next, alerts: alerts}
}

func (h *AlertHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= slog.LevelWarn || h.next.Enabled(ctx, l)
}

func (h *AlertHandler) Handle(ctx context.Context, r slog.Record) error {
	h.alerts.dispatch(r)
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *AlertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AlertHandler{next: h.next.WithAttrs(attrs), alerts: h.alerts}
}

func (h *AlertHandler) WithGroup(name string) slog.Handler {
	return &AlertHandler{next: h.next.WithGroup(name), alerts: h.alerts}
}
