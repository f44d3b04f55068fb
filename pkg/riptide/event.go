package riptide

import (
	"fmt"
	"time"
)

// Kind is the event tag shared by every transport.
type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindMetadata     Kind = "metadata"
	KindResult       Kind = "result"
	KindSummary      Kind = "summary"
	KindError        Kind = "error"
	KindProgress     Kind = "progress"
	KindPong         Kind = "pong"
	KindStatus       Kind = "status"
	KindKeepalive    Kind = "keepalive"
	KindComplete     Kind = "complete"
	KindMessage      Kind = "message"
	KindCrawlResult  Kind = "crawl_result"
	KindSearchResult Kind = "search_result"
)

// Event is the unified record produced by every transport adapter. It holds
// no reference to the connection it came from and may outlive it.
type Event struct {
	// Kind is never empty.
	Kind Kind `json:"kind" msgpack:"kind"`

	// Payload is the decoded frame body.
	Payload map[string]any `json:"payload" msgpack:"payload"`

	// Timestamp is the transport-supplied time, empty for NDJSON.
	Timestamp string `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`

	// ID is the SSE event id, if the server sent one.
	ID string `json:"id,omitempty" msgpack:"id,omitempty"`
}

// newEvent builds an Event, defaulting an empty kind to "message".
func newEvent(kind Kind, payload map[string]any, timestamp string) *Event {
	if kind == "" {
		kind = KindMessage
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return &Event{Kind: kind, Payload: payload, Timestamp: timestamp}
}

// errorEvent builds the inline error event for a frame that failed to decode.
func errorEvent(cause error, raw string) *Event {
	return newEvent(KindError, map[string]any{
		"error_type": "decode_error",
		"message":    cause.Error(),
		"raw":        raw,
	}, time.Now().UTC().Format(time.RFC3339Nano))
}

// asPayload turns any decoded JSON value into a payload mapping. Non-object
// values are wrapped under "value".
func asPayload(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": v}
}

// Time parses Timestamp as RFC 3339.
func (e *Event) Time() (time.Time, error) {
	if e.Timestamp == "" {
		return time.Time{}, fmt.Errorf("riptide: %s event has no timestamp", e.Kind)
	}
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// String returns Payload[key] if it is a string.
func (e *Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Terminal reports whether the event ends a WebSocket crawl.
func (e *Event) Terminal() bool {
	return e.Kind == KindSummary
}
