// Package riptidetest provides a scriptable in-process RipTide server for
// tests. It serves the NDJSON, SSE and WebSocket streaming endpoints and
// records what clients sent.
package riptidetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Message is one scripted WebSocket message.
type Message struct {
	Type int
	Data []byte
}

// Text returns a text message with the given raw content.
func Text(s string) Message {
	return Message{Type: websocket.TextMessage, Data: []byte(s)}
}

// Envelope returns a JSON text message in the server envelope format.
func Envelope(messageType string, data map[string]any) Message {
	b, _ := json.Marshal(map[string]any{
		"message_type": messageType,
		"data":         data,
		"timestamp":    now(),
	})
	return Message{Type: websocket.TextMessage, Data: b}
}

// BinaryEnvelope returns the msgpack-encoded form of Envelope.
func BinaryEnvelope(messageType string, data map[string]any) Message {
	b, _ := msgpack.Marshal(map[string]any{
		"message_type": messageType,
		"data":         data,
		"timestamp":    now(),
	})
	return Message{Type: websocket.BinaryMessage, Data: b}
}

// Script configures the server's replies. Nil fields use defaults derived
// from the request.
type Script struct {
	// StatusCode, if set, makes the HTTP stream endpoints reply with this
	// status and ErrorBody instead of streaming.
	StatusCode int
	ErrorBody  string

	// CrawlNDJSON and SearchNDJSON are the lines of the NDJSON endpoints.
	CrawlNDJSON  []string
	SearchNDJSON []string

	// SSE chunks are written verbatim to /crawl/sse, flushing after each.
	SSE []string

	// SessionID is announced in the welcome message. Empty generates one
	// per connection.
	SessionID string

	// Welcome replaces the welcome message.
	Welcome *Message

	// Crawl is sent after a crawl request, in order. The server keeps
	// sending even after a summary.
	Crawl []Message

	// Pong and Status replace the replies to ping and status requests.
	Pong   *Message
	Status *Message

	// RejectUpgrade makes the WebSocket endpoint reply with this status.
	RejectUpgrade int
}

// Server is a scripted RipTide server.
type Server struct {
	*httptest.Server

	script   Script
	upgrader websocket.Upgrader

	mu       sync.Mutex
	requests map[string]int
	bodies   map[string][]byte
	received []map[string]any
	sessions int
	sent     int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, script Script) *Server {
	t.Helper()
	s := &Server{
		script:   script,
		requests: make(map[string]int),
		bodies:   make(map[string][]byte),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Post("/crawl/stream", s.handleNDJSON(func() []string { return s.script.CrawlNDJSON }, defaultCrawlLines))
	r.Post("/deepsearch/stream", s.handleNDJSON(func() []string { return s.script.SearchNDJSON }, defaultSearchLines))
	r.Post("/crawl/sse", s.handleSSE)
	r.Get("/crawl/ws", s.handleWebSocket)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// WebSocketURL returns the ws:// URL of the WebSocket endpoint.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/crawl/ws"
}

// Requests returns how many requests hit path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// Body returns the last request body sent to path.
func (s *Server) Body(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

// Received returns the WebSocket request envelopes received so far.
func (s *Server) Received() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.received))
	copy(out, s.received)
	return out
}

// Sessions returns the number of accepted WebSocket connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Sent returns the number of WebSocket messages the server has written.
func (s *Server) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.bodies[r.URL.Path] = body
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rejected(w http.ResponseWriter) bool {
	if s.script.StatusCode == 0 {
		return false
	}
	http.Error(w, s.script.ErrorBody, s.script.StatusCode)
	return true
}

func (s *Server) handleNDJSON(lines func() []string, defaults func(body []byte) []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rejected(w) {
			return
		}
		body, _ := io.ReadAll(r.Body)
		out := lines()
		if out == nil {
			out = defaults(body)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, line := range out {
			fmt.Fprintln(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.rejected(w) {
		return
	}
	chunks := s.script.SSE
	if chunks == nil {
		body, _ := io.ReadAll(r.Body)
		chunks = defaultSSE(body)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, chunk := range chunks {
		io.WriteString(w, chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.script.RejectUpgrade != 0 {
		http.Error(w, "upgrade rejected", s.script.RejectUpgrade)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.sessions++
	sessionID := s.script.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", s.sessions)
	}
	s.mu.Unlock()

	welcome := Envelope("welcome", map[string]any{
		"session_id":           sessionID,
		"server_time":          now(),
		"protocol_version":     "1.0",
		"supported_operations": []string{"crawl", "ping", "status"},
	})
	if s.script.Welcome != nil {
		welcome = *s.script.Welcome
	}
	if !s.write(conn, welcome) {
		return
	}

	connected := time.Now()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(data, &req); err != nil {
			s.write(conn, Envelope("error", map[string]any{"error_type": "invalid_request", "message": err.Error()}))
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, req)
		s.mu.Unlock()

		var replies []Message
		switch req["request_type"] {
		case "crawl":
			replies = s.script.Crawl
			if replies == nil {
				replies = defaultCrawlMessages(req, sessionID)
			}
		case "ping":
			reply := Envelope("pong", map[string]any{"timestamp": now(), "session_id": sessionID})
			if s.script.Pong != nil {
				reply = *s.script.Pong
			}
			replies = []Message{reply}
		case "status":
			reply := Envelope("status", map[string]any{
				"session_id":            sessionID,
				"connected_duration_ms": time.Since(connected).Milliseconds(),
				"is_healthy":            true,
				"message_count":         len(s.Received()),
				"backpressure_count":    0,
			})
			if s.script.Status != nil {
				reply = *s.script.Status
			}
			replies = []Message{reply}
		default:
			replies = []Message{Envelope("error", map[string]any{
				"error_type": "unknown_request",
				"message":    fmt.Sprintf("unknown request type: %v", req["request_type"]),
			})}
		}
		for _, m := range replies {
			if !s.write(conn, m) {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, m Message) bool {
	if err := conn.WriteMessage(m.Type, m.Data); err != nil {
		return false
	}
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	return true
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
