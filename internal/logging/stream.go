package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent represents a structured line published to the streaming hub. Log
// records and worker progress events share this shape so API clients can
// follow both through a single cursor.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Step          string            `json:"step,omitempty"`
	FileID        string            `json:"file_id,omitempty"`
	JobID         string            `json:"job_id,omitempty"`
	EventType     string            `json:"event_type,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the most recent events in a ring and wakes waiters when
// new events arrive. Sequences are contiguous, so a cursor maps directly to a
// ring offset.
type StreamHub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ring    []LogEvent
	head    int // index of the oldest event
	count   int
	nextSeq uint64
}

// NewStreamHub constructs a bounded in-memory fan-out buffer.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &StreamHub{ring: make([]LogEvent, capacity)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a new event, evicting the oldest when full, and returns
// its sequence number.
func (h *StreamHub) Publish(evt LogEvent) uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.count == len(h.ring) {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	} else {
		h.ring[(h.head+h.count)%len(h.ring)] = evt
		h.count++
	}
	h.cond.Broadcast()
	return evt.Sequence
}

// Fetch returns up to limit events with sequence greater than since, and the
// cursor for the next call. A cursor older than the ring resumes at the
// oldest retained event. When wait is true, Fetch blocks until at least one
// event is available or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 || limit > len(h.ring) {
		limit = len(h.ring)
	}
	if wait {
		stop := context.AfterFunc(ctx, func() {
			h.mu.Lock()
			h.cond.Broadcast()
			h.mu.Unlock()
		})
		defer stop()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events := h.sliceLocked(since, limit)
		next := h.nextSeq
		if len(events) > 0 {
			next = events[len(events)-1].Sequence
		}
		if len(events) > 0 || !wait {
			return events, next, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	return h.copyLocked(h.count-limit, limit), h.nextSeq
}

func (h *StreamHub) sliceLocked(since uint64, limit int) []LogEvent {
	if since >= h.nextSeq || h.count == 0 {
		return nil
	}
	oldest := h.nextSeq - uint64(h.count) + 1
	skip := 0
	if since >= oldest {
		skip = int(since - oldest + 1)
	}
	n := min(h.count-skip, limit)
	return h.copyLocked(skip, n)
}

func (h *StreamHub) copyLocked(offset, n int) []LogEvent {
	out := make([]LogEvent, n)
	for i := range n {
		out[i] = h.ring[(h.head+offset+i)%len(h.ring)]
	}
	return out
}

type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.attrs))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, attrs: merged}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}

func eventFromRecord(record slog.Record, preAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	apply := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return
		}
		value := attrString(attr.Value)
		switch key {
		case FieldComponent:
			event.Component = value
		case FieldStep:
			event.Step = value
		case FieldFileID:
			event.FileID = value
		case FieldJobID:
			event.JobID = value
		case FieldEventType:
			event.EventType = value
		case FieldCorrelationID:
			event.CorrelationID = value
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[key] = value
		}
	}
	for _, attr := range preAttrs {
		apply(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		apply(attr)
		return true
	})
	return event
}
