package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

func testEvents() []*riptide.Event {
	return []*riptide.Event{
		{Kind: riptide.KindMetadata, Payload: map[string]any{"total_urls": 1.0}},
		{Kind: riptide.KindResult, Payload: map[string]any{
			"index":  0.0,
			"result": map[string]any{"url": "https://example.com", "status": 200.0},
		}},
		{Kind: riptide.KindSummary, Payload: map[string]any{"successful": 1.0}},
	}
}

func TestEventPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, EventOptions{})
	for _, ev := range testEvents() {
		if err := p.Print(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "result ") || !strings.Contains(lines[1], `"url":"https://example.com"`) {
		t.Errorf("result line = %q", lines[1])
	}
	if got := p.Summary(); got != "3 events (metadata 1, result 1, summary 1)" {
		t.Errorf("Summary = %q", got)
	}
}

func TestEventPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, EventOptions{JSON: true})
	for _, ev := range testEvents() {
		if err := p.Print(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	var ev riptide.Event
	if err := json.Unmarshal([]byte(lines[2]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != riptide.KindSummary || ev.Payload["successful"] != 1.0 {
		t.Errorf("event = %+v", ev)
	}
}

func TestEventPrinter_Filter(t *testing.T) {
	f, err := ParseFilter(`select(.kind == "result") | .payload.result.url`)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	p := NewEventPrinter(&buf, EventOptions{Filter: f, JSON: true})
	for _, ev := range testEvents() {
		if err := p.Print(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}
	if buf.String() != "\"https://example.com\"\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFilter_Apply(t *testing.T) {
	f, err := ParseFilter(`.payload.result.status, .kind`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Apply(context.Background(), testEvents()[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 200.0 || got[1] != "result" {
		t.Errorf("Apply = %v", got)
	}

	// Sized integers, as decoded from msgpack, are accepted.
	ev := &riptide.Event{Kind: riptide.KindResult, Payload: map[string]any{"index": int8(3)}}
	got, err = (mustFilter(t, ".payload.index")).Apply(context.Background(), ev)
	if err != nil || len(got) != 1 || got[0] != 3.0 {
		t.Errorf("Apply = %v, %v", got, err)
	}
}

func TestFilter_Errors(t *testing.T) {
	if _, err := ParseFilter(".payload | "); err == nil {
		t.Error("ParseFilter accepted a broken expression")
	}
	f := mustFilter(t, `.payload.result | error("boom")`)
	if _, err := f.Apply(context.Background(), testEvents()[1]); err == nil {
		t.Error("Apply should surface jq errors")
	}
}

func mustFilter(t *testing.T, expr string) *Filter {
	t.Helper()
	f, err := ParseFilter(expr)
	if err != nil {
		t.Fatal(err)
	}
	return f
}
