package riptide

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// sseReader accumulates Server-Sent Events blocks.
type sseReader struct {
	reader *bufio.Reader
	policy DecodePolicy

	kind Kind
	id   string
	data []string
	seen bool
}

func newSSEReader(r io.Reader, policy DecodePolicy) *sseReader {
	return &sseReader{reader: bufio.NewReader(r), policy: policy}
}

// readEvent returns the next committed block, or io.EOF once the body is
// exhausted. A block still pending at EOF is committed first; a trailing
// comment, id or retry line alone is not a block.
func (r *sseReader) readEvent() (*Event, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		eof := err != nil
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if r.seen {
				return r.commit(), nil
			}
			if eof {
				return nil, io.EOF
			}
			continue
		}
		r.field(line)
		if eof {
			if r.seen {
				return r.commit(), nil
			}
			return nil, io.EOF
		}
	}
}

// field applies one non-blank line to the pending block.
func (r *sseReader) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimSpace(value)
	switch name {
	case "event":
		r.kind = Kind(value)
		r.seen = true
	case "data":
		r.data = append(r.data, value)
		r.seen = true
	case "id":
		r.id = value
	case "retry":
		// Reconnection is not supported; the hint is ignored.
	}
}

// commit builds the event for the pending block and resets it.
func (r *sseReader) commit() *Event {
	raw := strings.Join(r.data, "\n")
	var payload map[string]any
	if raw != "" {
		if v, err := decodeJSON([]byte(raw), r.policy); err == nil {
			payload = asPayload(v)
		} else {
			payload = map[string]any{"raw": raw}
		}
	}
	ev := newEvent(r.kind, payload, "")
	ev.ID = r.id
	if ts, ok := ev.Payload["timestamp"].(string); ok {
		ev.Timestamp = ts
	}

	r.kind = ""
	r.id = ""
	r.data = r.data[:0]
	r.seen = false
	return ev
}

// readSSE drives the reader until EOF, a fatal error, or the dispatcher stops.
func readSSE(r *sseReader, d *dispatcher) error {
	for {
		ev, err := r.readEvent()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classify(TransportSSE, OpRead, err)
		}
		if !d.deliver(ev) {
			return nil
		}
	}
}
