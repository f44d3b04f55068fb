package riptide

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ndjsonReader reads newline-delimited JSON lines.
type ndjsonReader struct {
	reader *bufio.Reader

	// lines counts the lines read from the body, blank ones included.
	lines int
}

func newNDJSONReader(r io.Reader) *ndjsonReader {
	return &ndjsonReader{reader: bufio.NewReader(r)}
}

// readLine returns the next non-blank line, or io.EOF at the end of the body.
// A final line without a trailing newline is still returned.
func (r *ndjsonReader) readLine() ([]byte, error) {
	for {
		line, err := r.reader.ReadBytes('\n')
		if len(line) > 0 {
			r.lines++
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				return line, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// decodeNDJSONLine turns one line into an event of the given kind. A line
// that cannot be decoded is either a StreamingError or an inline error event,
// depending on the policy.
func decodeNDJSONLine(line []byte, kind Kind, policy DecodePolicy) (*Event, error) {
	v, err := decodeJSON(line, policy)
	if err != nil {
		if policy.failsOn(TransportNDJSON) {
			return nil, &StreamingError{Transport: TransportNDJSON, Op: OpDecode, Err: err}
		}
		return errorEvent(err, truncate(string(line), maxErrorBody)), nil
	}
	return newEvent(kind, asPayload(v), ""), nil
}

// readNDJSON drives the reader until EOF, a fatal error, or the dispatcher
// stops. The returned error is already classified.
func readNDJSON(r *ndjsonReader, kind Kind, policy DecodePolicy, d *dispatcher) error {
	for {
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classify(TransportNDJSON, OpRead, err)
		}
		ev, err := decodeNDJSONLine(line, kind, policy)
		if err != nil {
			return err
		}
		if !d.deliver(ev) {
			return nil
		}
	}
}
