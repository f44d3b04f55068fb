package riptide

import (
	"context"
	"errors"
	"testing"
)

type recordingSink struct {
	name    string
	log     *[]string
	err     error
	started int
	ended   []error
}

func (s *recordingSink) OnEvent(_ context.Context, ev *Event) error {
	*s.log = append(*s.log, s.name+":"+string(ev.Kind))
	return s.err
}

func (s *recordingSink) StreamStarted(context.Context, StreamInfo) { s.started++ }

func (s *recordingSink) StreamEnded(_ context.Context, _ StreamInfo, err error) {
	s.ended = append(s.ended, err)
}

func TestMultiSink_Order(t *testing.T) {
	var log []string
	a := &recordingSink{name: "a", log: &log}
	b := &recordingSink{name: "b", log: &log}

	sink := MultiSink(a, nil, b)
	if err := sink.OnEvent(context.Background(), &Event{Kind: KindResult}); err != nil {
		t.Fatal(err)
	}

	if len(log) != 2 || log[0] != "a:result" || log[1] != "b:result" {
		t.Errorf("log = %v", log)
	}
}

func TestMultiSink_StopsAtError(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	a := &recordingSink{name: "a", log: &log, err: boom}
	b := &recordingSink{name: "b", log: &log}

	err := MultiSink(a, b).OnEvent(context.Background(), &Event{Kind: KindResult})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(log) != 1 {
		t.Errorf("log = %v, want only a", log)
	}
}

func TestDispatcher_SinkBeforeYield(t *testing.T) {
	var log []string
	sink := &recordingSink{name: "sink", log: &log}
	d := newDispatcher(context.Background(), sink, StreamInfo{}, func(ev *Event, err error) bool {
		log = append(log, "yield:"+string(ev.Kind))
		return true
	})
	d.start()

	d.deliver(&Event{Kind: KindMetadata})
	d.deliver(&Event{Kind: KindResult})
	d.finish()

	want := []string{"sink:metadata", "yield:metadata", "sink:result", "yield:result"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
	if sink.started != 1 || len(sink.ended) != 1 || sink.ended[0] != nil {
		t.Errorf("started = %d, ended = %v", sink.started, sink.ended)
	}
}

func TestDispatcher_SinkErrorEndsStream(t *testing.T) {
	var log []string
	boom := errors.New("handler failed")
	sink := &recordingSink{name: "sink", log: &log, err: boom}
	var yielded []error
	d := newDispatcher(context.Background(), sink, StreamInfo{}, func(ev *Event, err error) bool {
		yielded = append(yielded, err)
		return true
	})
	d.start()

	if d.deliver(&Event{Kind: KindResult}) {
		t.Error("deliver should stop after a sink error")
	}
	d.fail(errors.New("late"))
	d.finish()

	if len(yielded) != 1 || yielded[0] != boom {
		t.Errorf("yielded = %v, want [boom]", yielded)
	}
	if len(sink.ended) != 1 || sink.ended[0] != boom {
		t.Errorf("ended = %v, want [boom]", sink.ended)
	}
}

func TestDispatcher_ConsumerBreak(t *testing.T) {
	var log []string
	sink := &recordingSink{name: "sink", log: &log}
	d := newDispatcher(context.Background(), sink, StreamInfo{}, func(ev *Event, err error) bool {
		return false
	})
	d.start()

	if d.deliver(&Event{Kind: KindResult}) {
		t.Error("deliver should report the consumer stopped")
	}
	d.finish()

	if len(sink.ended) != 1 || sink.ended[0] != nil {
		t.Errorf("ended = %v, want [nil]", sink.ended)
	}
}
