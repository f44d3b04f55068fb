package riptide

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func readAllSSE(t *testing.T, input string, policy DecodePolicy) []*Event {
	t.Helper()
	r := newSSEReader(strings.NewReader(input), policy)
	var events []*Event
	for {
		ev, err := r.readEvent()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("readEvent error: %v", err)
		}
		events = append(events, ev)
	}
}

func TestSSE_MultiLineData(t *testing.T) {
	events := readAllSSE(t, "event: result\ndata: {\"a\":\ndata: 1}\n\n", DecodeTransportDefault)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Kind != KindResult {
		t.Errorf("Kind = %q, want %q", events[0].Kind, KindResult)
	}
	if events[0].Payload["a"] != float64(1) {
		t.Errorf("Payload = %v, want {a: 1}", events[0].Payload)
	}
}

func TestSSE_DefaultKind(t *testing.T) {
	events := readAllSSE(t, "data: {\"x\":true}\n\n", DecodeTransportDefault)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Kind != KindMessage {
		t.Errorf("Kind = %q, want %q", events[0].Kind, KindMessage)
	}
}

func TestSSE_RawFallback(t *testing.T) {
	events := readAllSSE(t, "event: status\ndata: crawling 3 of 10\n\n", DecodeFailFast)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if got := events[0].Payload["raw"]; got != "crawling 3 of 10" {
		t.Errorf("raw = %v, want %q", got, "crawling 3 of 10")
	}
}

func TestSSE_ResetsBetweenBlocks(t *testing.T) {
	input := "event: metadata\ndata: {\"total_urls\":2}\n\n" +
		"data: {\"n\":1}\n\n"
	events := readAllSSE(t, input, DecodeTransportDefault)

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Kind != KindMetadata {
		t.Errorf("events[0].Kind = %q, want metadata", events[0].Kind)
	}
	if events[1].Kind != KindMessage {
		t.Errorf("events[1].Kind = %q, want message", events[1].Kind)
	}
	if _, ok := events[1].Payload["total_urls"]; ok {
		t.Error("second block carried data from the first")
	}
}

func TestSSE_CommentsIDAndCRLF(t *testing.T) {
	input := ": keep-alive\r\n" +
		"id: 42\r\n" +
		"retry: 3000\r\n" +
		"event: progress\r\n" +
		"data: {\"completed\":1,\"total\":2,\"timestamp\":\"2024-01-01T00:00:00Z\"}\r\n" +
		"\r\n"
	events := readAllSSE(t, input, DecodeTransportDefault)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != KindProgress {
		t.Errorf("Kind = %q, want progress", ev.Kind)
	}
	if ev.ID != "42" {
		t.Errorf("ID = %q, want 42", ev.ID)
	}
	if ev.Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("Timestamp = %q", ev.Timestamp)
	}
}

func TestSSE_PendingBlockAtEOF(t *testing.T) {
	events := readAllSSE(t, "event: complete\ndata: {\"failed\":0}", DecodeTransportDefault)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Kind != KindComplete {
		t.Errorf("Kind = %q, want complete", events[0].Kind)
	}
}

func TestSSE_BlankLinesOnly(t *testing.T) {
	events := readAllSSE(t, "\n\n: comment\n\n", DecodeTransportDefault)
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}

func TestSSE_EventWithoutData(t *testing.T) {
	events := readAllSSE(t, "event: keepalive\n\n", DecodeTransportDefault)

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Kind != KindKeepalive {
		t.Errorf("Kind = %q, want keepalive", events[0].Kind)
	}
	if events[0].Payload == nil || len(events[0].Payload) != 0 {
		t.Errorf("Payload = %v, want empty map", events[0].Payload)
	}
}

func TestSSE_TrailingLineWithoutBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"comment", "event: result\ndata: {\"a\":1}\n\n: keepalive"},
		{"id", "event: result\ndata: {\"a\":1}\n\nid: 7"},
		{"retry", "event: result\ndata: {\"a\":1}\n\nretry: 3000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := readAllSSE(t, tt.input, DecodeTransportDefault)
			if len(events) != 1 {
				t.Fatalf("len(events) = %d, want 1", len(events))
			}
			if events[0].Kind != KindResult {
				t.Errorf("Kind = %q, want %q", events[0].Kind, KindResult)
			}
			if events[0].Payload["a"] != float64(1) {
				t.Errorf("Payload = %v, want {a: 1}", events[0].Payload)
			}
		})
	}
}
