package journal

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key or run does not exist.
var ErrNotFound = errors.New("journal: not found")

// Entry is a key-value pair returned by Store.Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the ordered key-value storage behind a Journal. Keys are compared
// bytewise; Scan yields entries in ascending key order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// Scan yields every entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// DeleteAll removes keys. Missing keys are ignored.
	DeleteAll(ctx context.Context, keys []string) error

	Close() error
}

// Memory is an in-memory Store. It is safe for concurrent use and intended
// for tests and one-off CLI runs.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.data[key] = slices.Clone(value)
	return nil
}

// Scan works on a snapshot taken when iteration starts, so the caller may
// write to the store while ranging.
func (m *Memory) Scan(_ context.Context, prefix string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(Entry{}, errClosed)
			return
		}
		var entries []Entry
		for k, v := range m.data {
			if strings.HasPrefix(k, prefix) {
				entries = append(entries, Entry{Key: k, Value: slices.Clone(v)})
			}
		}
		m.mu.RUnlock()

		slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) DeleteAll(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

var errClosed = errors.New("journal: store is closed")
