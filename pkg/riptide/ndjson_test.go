package riptide

import (
	"context"
	"strings"
	"testing"
)

// collect returns a dispatcher that records everything it yields.
func collect(events *[]*Event, errs *[]error) *dispatcher {
	return newDispatcher(context.Background(), nil, StreamInfo{}, func(ev *Event, err error) bool {
		if err != nil {
			*errs = append(*errs, err)
			return false
		}
		*events = append(*events, ev)
		return true
	})
}

func TestNDJSON_OneEventPerLine(t *testing.T) {
	input := "{\"index\":0}\n\n   \n{\"index\":1}\n{\"index\":2}"
	var events []*Event
	var errs []error
	d := collect(&events, &errs)

	if err := readNDJSON(newNDJSONReader(strings.NewReader(input)), KindCrawlResult, DecodeTransportDefault, d); err != nil {
		t.Fatalf("readNDJSON error: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Kind != KindCrawlResult {
			t.Errorf("events[%d].Kind = %q, want crawl_result", i, ev.Kind)
		}
		if ev.Payload["index"] != float64(i) {
			t.Errorf("events[%d].index = %v, want %d", i, ev.Payload["index"], i)
		}
		if ev.Timestamp != "" {
			t.Errorf("events[%d].Timestamp = %q, want empty", i, ev.Timestamp)
		}
	}
}

func TestNDJSON_MalformedLineStopsReading(t *testing.T) {
	input := "{\"index\":0}\n{\"index\": oops\n{\"index\":2}\n{\"index\":3}\n"
	r := newNDJSONReader(strings.NewReader(input))
	var events []*Event
	var errs []error
	d := collect(&events, &errs)

	err := readNDJSON(r, KindCrawlResult, DecodeTransportDefault, d)

	se, ok := AsStreamingError(err)
	if !ok {
		t.Fatalf("err = %v, want *StreamingError", err)
	}
	if se.Transport != TransportNDJSON || se.Op != OpDecode {
		t.Errorf("err = %s/%s, want ndjson/decode", se.Transport, se.Op)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
	if r.lines != 2 {
		t.Errorf("lines read = %d, want 2", r.lines)
	}
}

func TestNDJSON_InlinePolicy(t *testing.T) {
	input := "{\"index\":0}\nnot json\n{\"index\":2}\n"
	var events []*Event
	var errs []error
	d := collect(&events, &errs)

	if err := readNDJSON(newNDJSONReader(strings.NewReader(input)), KindCrawlResult, DecodeInline, d); err != nil {
		t.Fatalf("readNDJSON error: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[1].Kind != KindError {
		t.Errorf("events[1].Kind = %q, want error", events[1].Kind)
	}
	if events[1].String("raw") != "not json" {
		t.Errorf("raw = %q, want %q", events[1].String("raw"), "not json")
	}
}

func TestNDJSON_RepairPolicy(t *testing.T) {
	input := "{'index': 0, 'url': 'https://example.com',}\n"
	var events []*Event
	var errs []error
	d := collect(&events, &errs)

	if err := readNDJSON(newNDJSONReader(strings.NewReader(input)), KindSearchResult, DecodeRepair, d); err != nil {
		t.Fatalf("readNDJSON error: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Kind != KindSearchResult {
		t.Errorf("Kind = %q, want search_result", events[0].Kind)
	}
	if events[0].String("url") != "https://example.com" {
		t.Errorf("url = %q", events[0].String("url"))
	}
}

func TestNDJSON_NonObjectLine(t *testing.T) {
	ev, err := decodeNDJSONLine([]byte(`[1,2]`), KindCrawlResult, DecodeTransportDefault)
	if err != nil {
		t.Fatalf("decodeNDJSONLine error: %v", err)
	}
	if _, ok := ev.Payload["value"].([]any); !ok {
		t.Errorf("Payload = %v, want value wrapper", ev.Payload)
	}
}

func TestNDJSON_ConsumerStop(t *testing.T) {
	input := "{\"index\":0}\n{\"index\":1}\n{\"index\":2}\n"
	r := newNDJSONReader(strings.NewReader(input))
	n := 0
	d := newDispatcher(context.Background(), nil, StreamInfo{}, func(ev *Event, err error) bool {
		n++
		return false
	})

	if err := readNDJSON(r, KindCrawlResult, DecodeTransportDefault, d); err != nil {
		t.Fatalf("readNDJSON error: %v", err)
	}
	if n != 1 {
		t.Errorf("yields = %d, want 1", n)
	}
	if r.lines != 1 {
		t.Errorf("lines read = %d, want 1", r.lines)
	}
}
