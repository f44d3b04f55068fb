package riptide

import (
	"context"
	"time"
)

// Sink receives every event of a stream, in order, immediately before the
// event is yielded to the caller. A non-nil error ends the stream and is
// returned to the caller unchanged.
type Sink interface {
	OnEvent(ctx context.Context, ev *Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev *Event) error

// OnEvent calls f.
func (f SinkFunc) OnEvent(ctx context.Context, ev *Event) error {
	return f(ctx, ev)
}

// StreamInfo describes one facade call for stream observers.
type StreamInfo struct {
	// ID uniquely identifies the stream within the process.
	ID string

	// Operation is the facade operation, e.g. "crawl_ndjson".
	Operation string

	Transport Transport

	// CorrelationID is the X-Request-ID for HTTP streams and the session id
	// for WebSocket streams, once known.
	CorrelationID string

	Started time.Time
}

// StreamObserver is an optional interface for sinks that also want stream
// lifecycle notifications. StreamEnded is called exactly once per started
// stream with the error that ended it, or nil.
type StreamObserver interface {
	StreamStarted(ctx context.Context, info StreamInfo)
	StreamEnded(ctx context.Context, info StreamInfo, err error)
}

// MultiSink fans every event out to sinks in order and stops at the first
// error. Nil sinks are skipped.
func MultiSink(sinks ...Sink) Sink {
	var m multiSink
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

type multiSink []Sink

func (m multiSink) OnEvent(ctx context.Context, ev *Event) error {
	for _, s := range m {
		if err := s.OnEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) StreamStarted(ctx context.Context, info StreamInfo) {
	for _, s := range m {
		if o, ok := s.(StreamObserver); ok {
			o.StreamStarted(ctx, info)
		}
	}
}

func (m multiSink) StreamEnded(ctx context.Context, info StreamInfo, err error) {
	for _, s := range m {
		if o, ok := s.(StreamObserver); ok {
			o.StreamEnded(ctx, info, err)
		}
	}
}

// nopSink is used when no sink is attached.
type nopSink struct{}

func (nopSink) OnEvent(context.Context, *Event) error { return nil }

// dispatcher delivers events to the sink and then to the consumer. The same
// path runs whether or not a sink is attached.
type dispatcher struct {
	ctx   context.Context
	sink  Sink
	info  StreamInfo
	yield func(*Event, error) bool

	// stopped is set once the consumer or the sink ended the stream.
	stopped bool
	events  int
}

func newDispatcher(ctx context.Context, sink Sink, info StreamInfo, yield func(*Event, error) bool) *dispatcher {
	if sink == nil {
		sink = nopSink{}
	}
	d := &dispatcher{sink: sink, info: info, yield: yield}
	d.ctx = context.WithValue(ctx, streamInfoKey{}, &d.info)
	return d
}

type streamInfoKey struct{}

// StreamInfoFromContext returns the stream a sink is being called for. The
// context passed to Sink.OnEvent and StreamObserver methods always carries it.
func StreamInfoFromContext(ctx context.Context) (StreamInfo, bool) {
	info, ok := ctx.Value(streamInfoKey{}).(*StreamInfo)
	if !ok {
		return StreamInfo{}, false
	}
	return *info, true
}

// start notifies stream observers.
func (d *dispatcher) start() {
	if o, ok := d.sink.(StreamObserver); ok {
		o.StreamStarted(d.ctx, d.info)
	}
}

// deliver hands ev to the sink, then the consumer. It reports whether the
// stream should continue.
func (d *dispatcher) deliver(ev *Event) bool {
	if err := d.sink.OnEvent(d.ctx, ev); err != nil {
		d.stopped = true
		d.end(err)
		d.yield(nil, err)
		return false
	}
	d.events++
	if !d.yield(ev, nil) {
		d.stopped = true
		d.end(nil)
		return false
	}
	return true
}

// fail yields a terminal error unless the stream was already stopped.
func (d *dispatcher) fail(err error) {
	if d.stopped {
		return
	}
	d.stopped = true
	d.end(err)
	d.yield(nil, err)
}

// finish ends a stream that ran to completion.
func (d *dispatcher) finish() {
	if d.stopped {
		return
	}
	d.stopped = true
	d.end(nil)
}

func (d *dispatcher) end(err error) {
	if o, ok := d.sink.(StreamObserver); ok {
		o.StreamEnded(d.ctx, d.info, err)
	}
}
