package riptide

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SessionState is the lifecycle state of a WebSocket session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAwaitingWelcome
	StateStreaming
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingWelcome:
		return "awaiting_welcome"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// PingResult is the outcome of a ping exchange.
type PingResult struct {
	Success    bool    `json:"success"`
	LatencyMs  float64 `json:"latency_ms"`
	ServerTime string  `json:"server_time"`
	SessionID  string  `json:"session_id"`
}

// Latency returns the round trip as a duration.
func (r *PingResult) Latency() time.Duration {
	return time.Duration(r.LatencyMs * float64(time.Millisecond))
}

// Session is one ephemeral WebSocket connection. It is opened for a single
// crawl, ping or status exchange and never reused. The session id is the one
// assigned by the server in its welcome message and is only used for log
// correlation.
//
// A Session is not safe for concurrent use, except for Close and State.
type Session struct {
	ctx    context.Context
	conn   Conn
	url    string
	policy DecodePolicy
	logger *slog.Logger

	state   atomic.Int32
	welcome *Event
	id      string
	opened  time.Time

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

// openSession dials url and waits for the welcome message. The connection
// is closed when ctx is done.
func openSession(ctx context.Context, dialer Dialer, url string, header http.Header, policy DecodePolicy, logger *slog.Logger) (*Session, error) {
	if url == "" {
		return nil, &ValidationError{Field: "url", Message: "WebSocket URL is empty"}
	}

	s := &Session{
		ctx:    ctx,
		url:    url,
		policy: policy,
		logger: logger,
		opened: time.Now(),
	}
	s.setState(StateConnecting)

	conn, resp, err := dialer.Dial(ctx, url, header)
	if err != nil {
		s.setState(StateFailed)
		if ctx.Err() != nil {
			return nil, s.ioError(OpConnect, err)
		}
		return nil, dialError(err, resp)
	}
	s.conn = conn
	s.stop = context.AfterFunc(ctx, func() { s.Close() })
	s.setState(StateAwaitingWelcome)

	ev, err := s.read()
	if err != nil {
		s.setState(StateFailed)
		s.Close()
		return nil, err
	}
	if ev.Kind != KindWelcome {
		s.setState(StateFailed)
		s.Close()
		return nil, protocolError(TransportWebSocket, "expected welcome as first message, got %q", ev.Kind)
	}
	s.welcome = ev
	s.id = ev.String("session_id")
	s.setState(StateStreaming)
	return s, nil
}

// dialError classifies a failed dial. A rejected upgrade keeps the status
// and body of the HTTP response.
func dialError(err error, resp *http.Response) error {
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		se := &StreamingError{
			Transport:  TransportWebSocket,
			Op:         OpHandshake,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
		if resp.Body != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			se.Body = string(body)
		}
		return se
	}
	return classify(TransportWebSocket, OpConnect, err)
}

// ID returns the server-assigned session id.
func (s *Session) ID() string { return s.id }

// URL returns the endpoint the session is connected to.
func (s *Session) URL() string { return s.url }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Elapsed returns the time since the session started connecting.
func (s *Session) Elapsed() time.Duration { return time.Since(s.opened) }

// Welcome returns the welcome event received when the session opened.
func (s *Session) Welcome() *Event { return s.welcome }

func (s *Session) setState(state SessionState) {
	prev := SessionState(s.state.Swap(int32(state)))
	if prev != state {
		s.logger.Debug("websocket session state", "session_id", s.id, "from", prev, "to", state)
	}
}

// Crawl sends the crawl request. Events follow through Next.
func (s *Session) Crawl(urls []string, opts *CrawlOptions) error {
	if err := validateURLs(urls); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	return s.send(RequestCrawl, crawlRequest{URLs: urls, Options: opts})
}

// Next returns the next event of a crawl. After the summary event the session
// is completed and Next returns io.EOF without reading further.
func (s *Session) Next() (*Event, error) {
	switch s.State() {
	case StateCompleted:
		return nil, io.EOF
	case StateFailed:
		return nil, protocolError(TransportWebSocket, "session %s has failed", s.id)
	}
	ev, err := s.read()
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}
	if ev.Terminal() {
		s.setState(StateCompleted)
	}
	return ev, nil
}

// Ping sends a ping request and waits for the pong.
func (s *Session) Ping() (*PingResult, error) {
	sent := time.Now()
	if err := s.send(RequestPing, nil); err != nil {
		return nil, err
	}
	ev, err := s.await(KindPong)
	if err != nil {
		return nil, err
	}
	latency := time.Since(sent)
	return &PingResult{
		Success:    true,
		LatencyMs:  float64(latency.Microseconds()) / 1000,
		ServerTime: ev.String("timestamp"),
		SessionID:  s.id,
	}, nil
}

// Status sends a status request and returns the server's status payload.
func (s *Session) Status() (map[string]any, error) {
	if err := s.send(RequestStatus, nil); err != nil {
		return nil, err
	}
	ev, err := s.await(KindStatus)
	if err != nil {
		return nil, err
	}
	return ev.Payload, nil
}

// await reads exactly one message and requires it to be of kind want.
func (s *Session) await(want Kind) (*Event, error) {
	ev, err := s.read()
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}
	if ev.Kind == want {
		s.setState(StateCompleted)
		return ev, nil
	}
	s.setState(StateFailed)
	if ev.Kind == KindError {
		return nil, protocolError(TransportWebSocket, "server error in reply to %s: %s", want, ev.String("message"))
	}
	return nil, protocolError(TransportWebSocket, "expected %s, got %q", want, ev.Kind)
}

// Close closes the connection. It is safe to call more than once; only the
// first call closes the socket.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.closeErr = s.conn.Close()
		s.logger.Debug("websocket closed", "url", s.url, "state", s.State(), "elapsed", s.Elapsed())
	})
	return s.closeErr
}

func (s *Session) send(requestType string, data any) error {
	msg, err := encodeRequest(requestType, data)
	if err != nil {
		return err
	}
	if s.logger.Enabled(s.ctx, slog.LevelDebug) {
		s.logger.Debug("sending request", "session_id", s.id, "content", truncate(string(msg), 500))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		s.setState(StateFailed)
		return s.ioError(OpWrite, err)
	}
	return nil
}

func (s *Session) read() (*Event, error) {
	messageType, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, s.ioError(OpRead, err)
	}
	if s.logger.Enabled(s.ctx, slog.LevelDebug) {
		s.logger.Debug("received message", "session_id", s.id, "len", len(data), "content", truncate(string(data), 1000))
	}
	ev, err := decodeWSMessage(messageType, data, s.policy)
	if err != nil {
		return nil, err
	}
	if ev.Kind == KindError {
		s.logger.Warn("websocket error event", "session_id", s.id, "error_type", ev.String("error_type"), "message", ev.String("message"))
	}
	return ev, nil
}

// ioError classifies a socket failure. When the context ended the session,
// the context error is kept in the chain.
func (s *Session) ioError(op string, err error) error {
	if cerr := s.ctx.Err(); cerr != nil {
		return &StreamingError{Transport: TransportWebSocket, Op: op, Err: fmt.Errorf("%w: %w", cerr, err)}
	}
	return classify(TransportWebSocket, op, err)
}
