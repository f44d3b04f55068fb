package riptide

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Accept values for the HTTP streaming transports.
const (
	acceptNDJSON = "application/x-ndjson"
	acceptSSE    = "text/event-stream"
)

// httpClient handles HTTP communication with the RipTide API.
type httpClient struct {
	doer      Doer
	baseURL   string
	headers   http.Header
	userAgent string
	logger    *slog.Logger
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(cfg *clientConfig) *httpClient {
	return &httpClient{
		doer:      cfg.doer,
		baseURL:   cfg.baseURL,
		headers:   cfg.headers,
		userAgent: cfg.userAgent,
		logger:    cfg.logger,
	}
}

// newRequestID returns the X-Request-ID for a new stream.
func newRequestID() string {
	return uuid.NewString()
}

// requestStream issues a streaming POST and returns the open response.
// A non-2xx response is read, closed and reported as a StreamingError.
// The caller owns the returned body.
func (h *httpClient) requestStream(ctx context.Context, transport Transport, path string, body any, accept, requestID string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("riptide: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("riptide: create request: %w", err)
	}

	h.setHeaders(req.Header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Request-ID", requestID)

	h.logger.Debug("opening stream", "transport", transport, "path", path, "request_id", requestID)

	resp, err := h.doer.Do(req)
	if err != nil {
		return nil, classify(transport, OpConnect, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := statusError(transport, resp)
		h.logger.Warn("stream rejected", "transport", transport, "path", path, "request_id", requestID, "status", resp.StatusCode)
		return nil, serr
	}

	return resp, nil
}

// setHeaders sets common headers for requests and handshakes.
func (h *httpClient) setHeaders(header http.Header) {
	for k, vs := range h.headers {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	header.Set("User-Agent", h.userAgent)
}
