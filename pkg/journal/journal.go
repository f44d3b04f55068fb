// Package journal records RipTide streams into a key-value store and replays
// them later.
//
// A Journal is a riptide.Sink and riptide.StreamObserver. Every stream it
// observes becomes a Run; each event is persisted as a msgpack record before
// the caller sees it.
//
//	j, _ := journal.Open("/var/lib/riptide/journal")
//	defer j.Close()
//	client := riptide.NewClient(riptide.WithSink(j))
//
//	for run, err := range j.Runs(ctx) { ... }
//	for ev, err := range j.Replay(ctx, runID) { ... }
//
// Storage layout:
//
//	run:{run_id}                 -> Run
//	event:{run_id}:{seq:016x}    -> record
//
// Run ids are UUIDv7, so listing runs by key yields them oldest first.
package journal

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

const (
	runPrefix   = "run:"
	eventPrefix = "event:"
)

func runKey(id string) string { return runPrefix + id }

func eventsPrefix(id string) string { return eventPrefix + id + ":" }

func eventKey(id string, seq uint64) string {
	return fmt.Sprintf("%s%s:%016x", eventPrefix, id, seq)
}

// Run describes one recorded stream.
type Run struct {
	ID            string            `msgpack:"id" json:"id"`
	Operation     string            `msgpack:"operation" json:"operation"`
	Transport     riptide.Transport `msgpack:"transport" json:"transport"`
	CorrelationID string            `msgpack:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	Started       time.Time         `msgpack:"started" json:"started"`
	Ended         time.Time         `msgpack:"ended,omitempty" json:"ended,omitzero"`
	Events        int               `msgpack:"events" json:"events"`
	Error         string            `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Done reports whether the stream has ended.
func (r *Run) Done() bool { return !r.Ended.IsZero() }

// Duration returns how long the stream ran, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if !r.Done() {
		return 0
	}
	return r.Ended.Sub(r.Started)
}

type record struct {
	Seq      uint64         `msgpack:"seq"`
	Received time.Time      `msgpack:"received"`
	Event    *riptide.Event `msgpack:"event"`
}

// Journal persists and replays streams.
type Journal struct {
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun // by riptide.StreamInfo.ID
}

type activeRun struct {
	run Run
	seq atomic.Uint64
}

var _ riptide.Sink = (*Journal)(nil)
var _ riptide.StreamObserver = (*Journal)(nil)

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// New returns a Journal over store. The Journal owns store and closes it.
func New(store Store, opts ...Option) *Journal {
	j := &Journal{
		store:  store,
		logger: slog.Default(),
		active: make(map[string]*activeRun),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Open returns a Journal backed by a Badger store in dir.
func Open(dir string, opts ...Option) (*Journal, error) {
	j := New(nil, opts...)
	store, err := NewBadger(BadgerOptions{Dir: dir, Logger: j.logger})
	if err != nil {
		return nil, err
	}
	j.store = store
	return j, nil
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.store.Close()
}

// StreamStarted creates the run for a stream.
func (j *Journal) StreamStarted(ctx context.Context, info riptide.StreamInfo) {
	ar := j.begin(info)
	if err := j.putRun(ctx, ar.run); err != nil {
		j.logger.Warn("journal: failed to write run", "run_id", ar.run.ID, "error", err)
	}
}

// ErrNoStream is returned by OnEvent when ctx carries no stream identity.
var ErrNoStream = errors.New("journal: event without stream info")

// OnEvent appends ev to the stream's run. A storage failure ends the stream.
func (j *Journal) OnEvent(ctx context.Context, ev *riptide.Event) error {
	info, ok := riptide.StreamInfoFromContext(ctx)
	if !ok || info.ID == "" {
		return ErrNoStream
	}
	ar := j.lookup(info)
	rec := record{
		Seq:      ar.seq.Add(1) - 1,
		Received: time.Now().UTC(),
		Event:    ev,
	}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("journal: encode event: %w", err)
	}
	if err := j.store.Set(ctx, eventKey(ar.run.ID, rec.Seq), data); err != nil {
		return fmt.Errorf("journal: write event: %w", err)
	}
	return nil
}

// StreamEnded finalizes the stream's run.
func (j *Journal) StreamEnded(ctx context.Context, info riptide.StreamInfo, err error) {
	j.mu.Lock()
	ar, ok := j.active[info.ID]
	delete(j.active, info.ID)
	j.mu.Unlock()
	if !ok {
		return
	}

	run := ar.run
	run.CorrelationID = info.CorrelationID
	run.Ended = time.Now().UTC()
	run.Events = int(ar.seq.Load())
	if err != nil {
		run.Error = err.Error()
	}
	// The stream's ctx may already be canceled; the run must still be closed.
	if perr := j.putRun(context.WithoutCancel(ctx), run); perr != nil {
		j.logger.Warn("journal: failed to finalize run", "run_id", run.ID, "error", perr)
		return
	}
	j.logger.Debug("journal: run recorded", "run_id", run.ID, "operation", run.Operation, "events", run.Events)
}

func (j *Journal) begin(info riptide.StreamInfo) *activeRun {
	ar := &activeRun{run: Run{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Operation:     info.Operation,
		Transport:     info.Transport,
		CorrelationID: info.CorrelationID,
		Started:       info.Started.UTC(),
	}}
	j.mu.Lock()
	j.active[info.ID] = ar
	j.mu.Unlock()
	return ar
}

// lookup returns the active run for info. Events for a stream that was never
// announced start a run of their own.
func (j *Journal) lookup(info riptide.StreamInfo) *activeRun {
	j.mu.Lock()
	ar, ok := j.active[info.ID]
	j.mu.Unlock()
	if ok {
		return ar
	}
	if info.Started.IsZero() {
		info.Started = time.Now()
	}
	return j.begin(info)
}

func (j *Journal) putRun(ctx context.Context, run Run) error {
	data, err := msgpack.Marshal(&run)
	if err != nil {
		return err
	}
	return j.store.Set(ctx, runKey(run.ID), data)
}

// Run returns the run with the given id.
func (j *Journal) Run(ctx context.Context, id string) (*Run, error) {
	data, err := j.store.Get(ctx, runKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("journal: run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var run Run
	if err := msgpack.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("journal: decode run %s: %w", id, err)
	}
	return &run, nil
}

// Runs yields every recorded run, oldest first.
func (j *Journal) Runs(ctx context.Context) iter.Seq2[*Run, error] {
	return func(yield func(*Run, error) bool) {
		for entry, err := range j.store.Scan(ctx, runPrefix) {
			if err != nil {
				yield(nil, err)
				return
			}
			var run Run
			if err := msgpack.Unmarshal(entry.Value, &run); err != nil {
				if !yield(nil, fmt.Errorf("journal: decode %s: %w", entry.Key, err)) {
					return
				}
				continue
			}
			if !yield(&run, nil) {
				return
			}
		}
	}
}

// Replay yields the events of a run in the order they were received. An
// unknown run yields a single ErrNotFound error.
func (j *Journal) Replay(ctx context.Context, id string) iter.Seq2[*riptide.Event, error] {
	return func(yield func(*riptide.Event, error) bool) {
		if _, err := j.Run(ctx, id); err != nil {
			yield(nil, err)
			return
		}
		for entry, err := range j.store.Scan(ctx, eventsPrefix(id)) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(nil, err)
				return
			}
			var rec record
			if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
				yield(nil, fmt.Errorf("journal: decode %s: %w", entry.Key, err))
				return
			}
			if !yield(rec.Event, nil) {
				return
			}
		}
	}
}

// Delete removes a run and its events.
func (j *Journal) Delete(ctx context.Context, id string) error {
	if _, err := j.Run(ctx, id); err != nil {
		return err
	}
	keys := []string{runKey(id)}
	for entry, err := range j.store.Scan(ctx, eventsPrefix(id)) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	return j.store.DeleteAll(ctx, keys)
}
