package riptide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Transport identifies the wire transport a stream runs over.
type Transport string

const (
	TransportNDJSON    Transport = "ndjson"
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// Operation names carried by StreamingError.Op.
const (
	OpConnect   = "connect"
	OpHandshake = "handshake"
	OpRead      = "read"
	OpWrite     = "write"
	OpDecode    = "decode"
	OpProtocol  = "protocol"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4096

// ValidationError reports a caller precondition violation. It is returned
// before any connection is attempted.
type ValidationError struct {
	// Field is the request field that failed validation (e.g. "urls").
	Field string

	// Message describes the violation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("riptide: invalid %s: %s", e.Field, e.Message)
}

// StreamingError reports a transport-fatal condition: refused or timed out
// connections, a non-2xx initial response, a failed WebSocket handshake, or
// an undecodable frame under a fail-fast decode policy. It always ends the
// stream it was raised from.
type StreamingError struct {
	// Transport is the transport the stream was using.
	Transport Transport

	// Op is the stage that failed (connect, handshake, read, write, decode, protocol).
	Op string

	// StatusCode is the HTTP status of the initial response, if one was received.
	StatusCode int

	// Body is the (truncated) body of a failed initial response.
	Body string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *StreamingError) Error() string {
	var b strings.Builder
	b.WriteString("riptide: ")
	b.WriteString(string(e.Transport))
	b.WriteString(" ")
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *StreamingError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a connect or read timeout.
func (e *StreamingError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Temporary reports whether retrying the call might succeed.
func (e *StreamingError) Temporary() bool {
	return e.Timeout() || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsStreamingError extracts *StreamingError from an error.
//
// Example:
//
//	if se, ok := riptide.AsStreamingError(err); ok && se.StatusCode == 503 {
//	    // server overloaded
//	}
func AsStreamingError(err error) (*StreamingError, bool) {
	var e *StreamingError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsValidationError extracts *ValidationError from an error.
func AsValidationError(err error) (*ValidationError, bool) {
	var e *ValidationError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTimeout reports whether err is a StreamingError caused by a timeout.
func IsTimeout(err error) bool {
	se, ok := AsStreamingError(err)
	return ok && se.Timeout()
}

// classify maps a transport-level failure into the error taxonomy. Errors
// that are already classified pass through unchanged.
func classify(transport Transport, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsStreamingError(err); ok {
		return err
	}
	if _, ok := AsValidationError(err); ok {
		return err
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		op = OpDecode
	case errors.Is(err, websocket.ErrBadHandshake):
		op = OpHandshake
	case errors.Is(err, io.ErrUnexpectedEOF):
		op = OpRead
	}
	return &StreamingError{Transport: transport, Op: op, Err: err}
}

// statusError builds the StreamingError for a non-2xx initial response.
// It consumes (part of) the body but does not close it.
func statusError(transport Transport, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StreamingError{
		Transport:  transport,
		Op:         OpConnect,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// protocolError reports a peer that broke the message sequence contract.
func protocolError(transport Transport, format string, args ...any) error {
	return &StreamingError{
		Transport: transport,
		Op:        OpProtocol,
		Err:       fmt.Errorf(format, args...),
	}
}

// validateURLs checks a crawl target list.
func validateURLs(urls []string) error {
	if len(urls) == 0 {
		return &ValidationError{Field: "urls", Message: "at least one URL is required"}
	}
	for i, u := range urls {
		if strings.TrimSpace(u) == "" {
			return &ValidationError{Field: "urls", Message: fmt.Sprintf("urls[%d] is empty", i)}
		}
	}
	return nil
}

// validateQuery checks a deep search query and limit.
func validateQuery(query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return &ValidationError{Field: "query", Message: "query must not be empty"}
	}
	if limit < 0 {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be positive, got %d", limit)}
	}
	return nil
}
