package riptide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestStreamingError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StreamingError
		want string
	}{
		{
			name: "status and body",
			err:  &StreamingError{Transport: TransportNDJSON, Op: OpConnect, StatusCode: 503, Body: "overloaded"},
			want: "riptide: ndjson connect failed (status 503): overloaded",
		},
		{
			name: "cause",
			err:  &StreamingError{Transport: TransportWebSocket, Op: OpRead, Err: io.ErrUnexpectedEOF},
			want: "riptide: websocket read failed: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStreamingError_Predicates(t *testing.T) {
	tests := []struct {
		name      string
		err       *StreamingError
		timeout   bool
		temporary bool
	}{
		{"deadline", &StreamingError{Err: fmt.Errorf("dial: %w", context.DeadlineExceeded)}, true, true},
		{"net timeout", &StreamingError{Err: timeoutError{}}, true, true},
		{"429", &StreamingError{StatusCode: http.StatusTooManyRequests}, false, true},
		{"502", &StreamingError{StatusCode: http.StatusBadGateway}, false, true},
		{"400", &StreamingError{StatusCode: http.StatusBadRequest}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Timeout(); got != tt.timeout {
				t.Errorf("Timeout() = %v, want %v", got, tt.timeout)
			}
			if got := tt.err.Temporary(); got != tt.temporary {
				t.Errorf("Temporary() = %v, want %v", got, tt.temporary)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if classify(TransportSSE, OpRead, nil) != nil {
		t.Error("classify(nil) should be nil")
	}

	already := &StreamingError{Transport: TransportNDJSON, Op: OpConnect, StatusCode: 500}
	if got := classify(TransportSSE, OpRead, already); got != error(already) {
		t.Errorf("classify changed an already classified error: %v", got)
	}

	ve := &ValidationError{Field: "urls", Message: "empty"}
	if got := classify(TransportSSE, OpRead, ve); got != error(ve) {
		t.Errorf("classify changed a validation error: %v", got)
	}

	var syntaxErr error = json.Unmarshal([]byte("{"), new(any))
	se, ok := AsStreamingError(classify(TransportNDJSON, OpRead, syntaxErr))
	if !ok || se.Op != OpDecode {
		t.Errorf("syntax error classified as %+v, want decode", se)
	}

	se, ok = AsStreamingError(classify(TransportWebSocket, OpConnect, websocket.ErrBadHandshake))
	if !ok || se.Op != OpHandshake {
		t.Errorf("bad handshake classified as %+v, want handshake", se)
	}

	err := classify(TransportNDJSON, OpRead, fmt.Errorf("read body: %w", context.Canceled))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("classified error lost context.Canceled: %v", err)
	}
	if !IsTimeout(classify(TransportSSE, OpConnect, timeoutError{})) {
		t.Error("IsTimeout should report a classified net timeout")
	}
}

func TestStatusError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Body:       io.NopCloser(strings.NewReader("  invalid urls\n")),
	}
	se, ok := AsStreamingError(statusError(TransportSSE, resp))
	if !ok {
		t.Fatal("statusError should return *StreamingError")
	}
	if se.StatusCode != 400 || se.Body != "invalid urls" || se.Op != OpConnect {
		t.Errorf("statusError = %+v", se)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"no urls", validateURLs(nil), "urls"},
		{"blank url", validateURLs([]string{"https://a", " "}), "urls"},
		{"empty query", validateQuery("", 10), "query"},
		{"negative limit", validateQuery("rust", -1), "limit"},
		{"cache mode", (&CrawlOptions{CacheMode: "sometimes"}).Validate(), "options.cache_mode"},
		{"concurrency", (&CrawlOptions{Concurrency: -2}).Validate(), "options.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ve, ok := AsValidationError(tt.err)
			if !ok {
				t.Fatalf("err = %v, want *ValidationError", tt.err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}

	if err := validateURLs([]string{"https://example.com"}); err != nil {
		t.Errorf("valid urls: %v", err)
	}
	if err := validateQuery("rust web scraping", 0); err != nil {
		t.Errorf("valid query: %v", err)
	}
	var opts *CrawlOptions
	if err := opts.Validate(); err != nil {
		t.Errorf("nil options: %v", err)
	}
}
