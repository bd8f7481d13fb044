package report

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxEvents caps how many records an EventLog keeps.
const DefaultMaxEvents = 5000

// Event is one captured log record.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type eventStore struct {
	mu      sync.Mutex
	events  []Event
	max     int
	dropped int
}

// EventLog is a slog.Handler that records every record it handles and then
// passes it on to the wrapped handler.
type EventLog struct {
	next   slog.Handler
	level  slog.Leveler
	store  *eventStore
	attrs  []slog.Attr
	prefix string
}

var _ slog.Handler = (*EventLog)(nil)

// NewEventLog wraps next, which may be nil to only record. Records below
// level are neither recorded nor forwarded.
func NewEventLog(next slog.Handler, level slog.Leveler) *EventLog {
	if level == nil {
		level = slog.LevelInfo
	}
	return &EventLog{
		next:  next,
		level: level,
		store: &eventStore{max: DefaultMaxEvents},
	}
}

func (h *EventLog) Enabled(ctx context.Context, l slog.Level) bool {
	if l < h.level.Level() {
		return false
	}
	return h.next == nil || h.next.Enabled(ctx, l)
}

func (h *EventLog) Handle(ctx context.Context, r slog.Record) error {
	ev := Event{Time: r.Time.UTC(), Level: r.Level.String(), Message: r.Message}
	if n := len(h.attrs) + r.NumAttrs(); n > 0 {
		ev.Attrs = make(map[string]any, n)
		for _, a := range h.attrs {
			addAttr(ev.Attrs, "", a)
		}
		r.Attrs(func(a slog.Attr) bool {
			addAttr(ev.Attrs, h.prefix, a)
			return true
		})
	}

	h.store.mu.Lock()
	if len(h.store.events) < h.store.max {
		h.store.events = append(h.store.events, ev)
	} else {
		h.store.dropped++
	}
	h.store.mu.Unlock()

	if h.next == nil {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *EventLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *EventLog) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

// Events returns a copy of the recorded events in arrival order.
func (h *EventLog) Events() []Event {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]Event, len(h.store.events))
	copy(out, h.store.events)
	return out
}

// Dropped is the number of records not kept because the log was full.
func (h *EventLog) Dropped() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.dropped
}

func addAttr(m map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(m, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	m[prefix+a.Key] = plain(v)
}

func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC()
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case interface{ String() string }:
			return x.String()
		}
	}
	return v.Any()
}
