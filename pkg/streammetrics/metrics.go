// Package streammetrics exports Prometheus metrics for RipTide streams.
//
// Metrics is a riptide.Sink; attach it to a client to count events,
// connections and stream durations:
//
//	m := streammetrics.New(prometheus.DefaultRegisterer)
//	client := riptide.NewClient(riptide.WithSink(m))
//	http.Handle("/metrics", promhttp.Handler())
package streammetrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

// Connection outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Metrics holds the stream collectors.
type Metrics struct {
	events      *prometheus.CounterVec
	connections *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pingLatency prometheus.Histogram
}

var _ riptide.Sink = (*Metrics)(nil)
var _ riptide.StreamObserver = (*Metrics)(nil)

// New registers the stream collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riptide_stream_events_total",
			Help: "Events received from RipTide streams grouped by transport and kind",
		}, []string{"transport", "kind"}),

		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riptide_stream_connections_total",
			Help: "Streams opened grouped by transport and outcome",
		}, []string{"transport", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riptide_stream_duration_seconds",
			Help:    "Duration of RipTide streams from open to close",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"transport"}),

		pingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riptide_ws_ping_latency_seconds",
			Help:    "Round trip of WebSocket ping exchanges",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// OnEvent counts ev.
func (m *Metrics) OnEvent(ctx context.Context, ev *riptide.Event) error {
	info, _ := riptide.StreamInfoFromContext(ctx)
	m.events.WithLabelValues(string(info.Transport), string(ev.Kind)).Inc()
	return nil
}

// StreamStarted implements riptide.StreamObserver.
func (m *Metrics) StreamStarted(context.Context, riptide.StreamInfo) {}

// StreamEnded records the stream's outcome and duration.
func (m *Metrics) StreamEnded(_ context.Context, info riptide.StreamInfo, err error) {
	m.connections.WithLabelValues(string(info.Transport), outcome(err)).Inc()
	m.duration.WithLabelValues(string(info.Transport)).Observe(time.Since(info.Started).Seconds())
}

// ObservePing records the latency of a successful ping.
func (m *Metrics) ObservePing(res *riptide.PingResult) {
	if res == nil || !res.Success {
		return
	}
	m.pingLatency.Observe(res.Latency().Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
