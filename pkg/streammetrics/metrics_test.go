package streammetrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foofork/riptidecrawler/go/internal/riptidetest"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
	"github.com/foofork/riptidecrawler/go/pkg/streammetrics"
)

func TestMetrics_CountsStreams(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := streammetrics.New(reg)
	srv := riptidetest.New(t, riptidetest.Script{})
	client := riptide.NewClient(riptide.WithBaseURL(srv.URL), riptide.WithSink(m))
	ctx := context.Background()

	for _, err := range client.Streaming.CrawlNDJSON(ctx, []string{"https://example.com/a", "https://example.com/b"}, nil) {
		require.NoError(t, err)
	}
	for _, err := range client.Streaming.CrawlWebSocket(ctx, []string{"https://example.com"}, nil, nil) {
		require.NoError(t, err)
	}

	expected := `
# HELP riptide_stream_events_total Events received from RipTide streams grouped by transport and kind
# TYPE riptide_stream_events_total counter
riptide_stream_events_total{kind="crawl_result",transport="ndjson"} 4
riptide_stream_events_total{kind="metadata",transport="websocket"} 1
riptide_stream_events_total{kind="result",transport="websocket"} 1
riptide_stream_events_total{kind="summary",transport="websocket"} 1
riptide_stream_events_total{kind="welcome",transport="websocket"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "riptide_stream_events_total"))

	expected = `
# HELP riptide_stream_connections_total Streams opened grouped by transport and outcome
# TYPE riptide_stream_connections_total counter
riptide_stream_connections_total{outcome="ok",transport="ndjson"} 1
riptide_stream_connections_total{outcome="ok",transport="websocket"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "riptide_stream_connections_total"))
	n, err := testutil.GatherAndCount(reg, "riptide_stream_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_FailedStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := streammetrics.New(reg)
	srv := riptidetest.New(t, riptidetest.Script{StatusCode: http.StatusBadGateway})
	client := riptide.NewClient(riptide.WithBaseURL(srv.URL), riptide.WithSink(m))

	var failed bool
	for _, err := range client.Streaming.CrawlSSE(context.Background(), []string{"https://example.com"}, nil) {
		failed = err != nil
	}
	require.True(t, failed)

	expected := `
# HELP riptide_stream_connections_total Streams opened grouped by transport and outcome
# TYPE riptide_stream_connections_total counter
riptide_stream_connections_total{outcome="error",transport="sse"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "riptide_stream_connections_total"))
}

func TestMetrics_PingAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := streammetrics.New(reg)

	m.ObservePing(&riptide.PingResult{Success: true, LatencyMs: 12.5})
	m.ObservePing(&riptide.PingResult{Success: false})
	m.ObservePing(nil)

	rec := httptest.NewRecorder()
	streammetrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "riptide_ws_ping_latency_seconds_count 1")
}
