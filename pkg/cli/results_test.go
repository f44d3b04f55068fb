package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/foofork/riptidecrawler/go/pkg/journal"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

func TestResultPrinter_Ping(t *testing.T) {
	res := &riptide.PingResult{Success: true, LatencyMs: 1.5, ServerTime: "2024-01-01T00:00:00Z", SessionID: "session-1"}

	var buf bytes.Buffer
	if err := NewResultPrinter(&buf, false).Ping(res); err != nil {
		t.Fatal(err)
	}
	want := "pong          1.5ms session=session-1 server_time=2024-01-01T00:00:00Z\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	res.Success = false
	if err := NewResultPrinter(&buf, false).Ping(res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "ping failed ") {
		t.Errorf("output = %q, want a failure label", buf.String())
	}
}

func TestResultPrinter_PingJSON(t *testing.T) {
	res := &riptide.PingResult{Success: true, LatencyMs: 1.5, SessionID: "session-1"}

	var buf bytes.Buffer
	p := NewResultPrinter(&buf, true)
	for range 2 {
		if err := p.Ping(res); err != nil {
			t.Fatal(err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want one per ping", len(lines))
	}
	var got riptide.PingResult
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatal(err)
	}
	if got != *res {
		t.Errorf("decoded = %+v, want %+v", got, *res)
	}
}

func TestResultPrinter_Status(t *testing.T) {
	status := map[string]any{"session_id": "session-1", "active_sessions": 2}

	var buf bytes.Buffer
	if err := NewResultPrinter(&buf, false).Status(status); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"session_id: session-1\n", "active_sessions: 2\n"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("yaml = %q, want it to contain %q", buf.String(), want)
		}
	}

	buf.Reset()
	if err := NewResultPrinter(&buf, true).Status(status); err != nil {
		t.Fatal(err)
	}
	if buf.String() != `{"active_sessions":2,"session_id":"session-1"}`+"\n" {
		t.Errorf("json = %q", buf.String())
	}
}

func runsOf(runs []*journal.Run, err error) iter.Seq2[*journal.Run, error] {
	return func(yield func(*journal.Run, error) bool) {
		for _, run := range runs {
			if !yield(run, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func testRuns() []*journal.Run {
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return []*journal.Run{
		{
			ID: "run-1", Operation: riptide.OperationCrawlNDJSON, Transport: riptide.TransportNDJSON,
			CorrelationID: "req-1", Started: started, Ended: started.Add(1500 * time.Millisecond), Events: 4,
		},
		{
			ID: "run-2", Operation: riptide.OperationCrawlWebSocket, Transport: riptide.TransportWebSocket,
			Started: started.Add(time.Minute), Events: 1,
		},
	}
}

func TestResultPrinter_Runs(t *testing.T) {
	var buf bytes.Buffer
	if err := NewResultPrinter(&buf, false).Runs(runsOf(testRuns(), nil)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if got := strings.Fields(lines[0]); strings.Join(got, " ") != "RUN STARTED OPERATION TRANSPORT EVENTS DURATION CORRELATION ERROR" {
		t.Errorf("header = %q", lines[0])
	}
	first := strings.Fields(lines[1])
	if first[0] != "run-1" || !strings.Contains(lines[1], "1.5s") || !strings.Contains(lines[1], "req-1") {
		t.Errorf("finished run line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "run-2") || !strings.Contains(lines[2], "running") {
		t.Errorf("running run line = %q", lines[2])
	}
}

func TestResultPrinter_RunsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewResultPrinter(&buf, true).Runs(runsOf(testRuns(), nil)); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	var run journal.Run
	if err := json.Unmarshal([]byte(lines[0]), &run); err != nil {
		t.Fatal(err)
	}
	if run.ID != "run-1" || run.Events != 4 || !run.Done() {
		t.Errorf("run = %+v", run)
	}
	if strings.Contains(lines[1], `"ended"`) {
		t.Errorf("running run has an end time: %s", lines[1])
	}
}

func TestResultPrinter_RunsError(t *testing.T) {
	boom := errors.New("store closed")
	for _, asJSON := range []bool{false, true} {
		err := NewResultPrinter(&bytes.Buffer{}, asJSON).Runs(runsOf(testRuns()[:1], boom))
		if !errors.Is(err, boom) {
			t.Errorf("json=%v: err = %v, want %v", asJSON, err, boom)
		}
	}
}

func TestResultPrinter_ContextIsRedacted(t *testing.T) {
	ctx := &Context{
		Name:    "prod",
		BaseURL: "https://riptide.example.com",
		Headers: map[string]string{"Authorization": "Bearer secret-token"},
	}

	var buf bytes.Buffer
	if err := NewResultPrinter(&buf, false).Context(ctx); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Errorf("output leaks the header value:\n%s", out)
	}
	if !strings.Contains(out, "name: prod") || !strings.Contains(out, "https://riptide.example.com") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, MaskSecret("Bearer secret-token")) {
		t.Errorf("output = %q, want the masked header", out)
	}
}
