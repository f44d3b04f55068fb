package riptide

import (
	"context"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/foofork/riptidecrawler/go/pkg/riptide")

// Facade operation names, used for spans and StreamInfo.Operation.
const (
	OperationCrawlNDJSON      = "crawl_ndjson"
	OperationDeepSearchNDJSON = "deepsearch_ndjson"
	OperationCrawlSSE         = "crawl_sse"
	OperationCrawlWebSocket   = "crawl_websocket"
	OperationPingWebSocket    = "ping_websocket"
	OperationWebSocketStatus  = "websocket_status"
)

// StreamingService provides the streaming operations.
//
// Every stream is lazy: no connection is opened until the sequence is ranged
// over, and each range opens a new connection. Breaking out of the loop,
// exhausting the stream or hitting an error closes the connection exactly
// once. Precondition failures are yielded as a *ValidationError before any
// connection is attempted; transport failures as a *StreamingError.
type StreamingService struct {
	client *Client
}

func newStreamingService(c *Client) *StreamingService {
	return &StreamingService{client: c}
}

// CrawlNDJSON crawls urls over the NDJSON endpoint. Each line becomes a
// crawl_result event.
//
// Example:
//
//	for ev, err := range client.Streaming.CrawlNDJSON(ctx, urls, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Payload)
//	}
func (s *StreamingService) CrawlNDJSON(ctx context.Context, urls []string, opts *CrawlOptions) iter.Seq2[*Event, error] {
	policy := s.client.config.policy
	return s.httpStream(ctx, streamCall{
		operation: OperationCrawlNDJSON,
		transport: TransportNDJSON,
		path:      PathCrawlStream,
		accept:    acceptNDJSON,
		attrs:     urlCount(urls),
		validate:  func() error { return validateCrawl(urls, opts) },
		body:      crawlRequest{URLs: urls, Options: opts},
		read: func(body io.Reader, d *dispatcher) error {
			return readNDJSON(newNDJSONReader(body), KindCrawlResult, policy, d)
		},
	})
}

// DeepSearchNDJSON runs a deep search for query and crawls the results over
// the NDJSON endpoint. Each line becomes a search_result event. A limit of 0
// uses DefaultSearchLimit.
func (s *StreamingService) DeepSearchNDJSON(ctx context.Context, query string, limit int, opts *CrawlOptions) iter.Seq2[*Event, error] {
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	policy := s.client.config.policy
	return s.httpStream(ctx, streamCall{
		operation: OperationDeepSearchNDJSON,
		transport: TransportNDJSON,
		path:      PathDeepSearchStream,
		accept:    acceptNDJSON,
		attrs:     []attribute.KeyValue{attribute.Int("riptide.limit", limit)},
		validate: func() error {
			if err := validateQuery(query, limit); err != nil {
				return err
			}
			return opts.Validate()
		},
		body: deepSearchRequest{Query: query, Limit: limit, Options: opts},
		read: func(body io.Reader, d *dispatcher) error {
			return readNDJSON(newNDJSONReader(body), KindSearchResult, policy, d)
		},
	})
}

// CrawlSSE crawls urls over the Server-Sent Events endpoint. Each event block
// becomes one event; its kind is the block's event field, or "message".
func (s *StreamingService) CrawlSSE(ctx context.Context, urls []string, opts *CrawlOptions) iter.Seq2[*Event, error] {
	policy := s.client.config.policy
	return s.httpStream(ctx, streamCall{
		operation: OperationCrawlSSE,
		transport: TransportSSE,
		path:      PathCrawlSSE,
		accept:    acceptSSE,
		attrs:     urlCount(urls),
		validate:  func() error { return validateCrawl(urls, opts) },
		body:      crawlRequest{URLs: urls, Options: opts},
		read: func(body io.Reader, d *dispatcher) error {
			return readSSE(newSSEReader(body, policy), d)
		},
	})
}

// CrawlWebSocket crawls urls over a new WebSocket session. The stream yields
// the welcome event, then every server message up to and including the
// summary, after which the socket is closed without reading further.
// Malformed messages are yielded as error events unless the client's decode
// policy is DecodeFailFast.
//
// onMessage, if not nil, is called with every event before it is yielded.
// Its error ends the stream and is yielded unchanged.
func (s *StreamingService) CrawlWebSocket(ctx context.Context, urls []string, opts *CrawlOptions, onMessage Sink) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		if err := validateCrawl(urls, opts); err != nil {
			yield(nil, err)
			return
		}

		ctx, d := s.begin(ctx, OperationCrawlWebSocket, TransportWebSocket, urlCount(urls), "", onMessage, yield)
		defer d.finish()

		sess, err := s.OpenSession(ctx, "")
		if err != nil {
			d.fail(err)
			return
		}
		defer sess.Close()
		d.info.CorrelationID = sess.ID()

		if !d.deliver(sess.Welcome()) {
			return
		}
		if err := sess.Crawl(urls, opts); err != nil {
			d.fail(err)
			return
		}
		for {
			ev, err := sess.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				d.fail(err)
				return
			}
			if !d.deliver(ev) || ev.Terminal() {
				return
			}
		}
	}
}

// PingWebSocket opens a new session, exchanges one ping and pong, and closes
// it. An empty url uses the client's WebSocket URL.
func (s *StreamingService) PingWebSocket(ctx context.Context, url string) (_ *PingResult, err error) {
	ctx, span := s.startSpan(ctx, OperationPingWebSocket, TransportWebSocket)
	defer func() { endSpan(span, err) }()

	sess, err := s.OpenSession(ctx, url)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res, err := sess.Ping()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("riptide.session_id", res.SessionID),
		attribute.Float64("riptide.latency_ms", res.LatencyMs),
	)
	return res, nil
}

// WebSocketStatus opens a new session, queries its status, and closes it.
// The server's status payload is returned as is. An empty url uses the
// client's WebSocket URL.
func (s *StreamingService) WebSocketStatus(ctx context.Context, url string) (_ map[string]any, err error) {
	ctx, span := s.startSpan(ctx, OperationWebSocketStatus, TransportWebSocket)
	defer func() { endSpan(span, err) }()

	sess, err := s.OpenSession(ctx, url)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Status()
}

// OpenSession dials a WebSocket session and waits for its welcome message.
// The caller must Close the session. An empty url uses the client's
// WebSocket URL. The session is closed when ctx is done.
func (s *StreamingService) OpenSession(ctx context.Context, url string) (*Session, error) {
	if url == "" {
		url = s.client.WebSocketURL()
	}
	header := http.Header{}
	s.client.http.setHeaders(header)
	sess, err := openSession(ctx, s.client.config.dialer, url, header, s.client.config.policy, s.client.config.logger)
	if err != nil {
		s.client.config.logger.Warn("websocket open failed", "url", url, "error", err)
		return nil, err
	}
	s.client.config.logger.Debug("websocket session opened", "url", url, "session_id", sess.ID())
	return sess, nil
}

// streamCall describes one HTTP streaming call.
type streamCall struct {
	operation string
	transport Transport
	path      string
	accept    string
	attrs     []attribute.KeyValue
	validate  func() error
	body      any
	read      func(body io.Reader, d *dispatcher) error
}

// httpStream runs an NDJSON or SSE call as a lazy sequence.
func (s *StreamingService) httpStream(ctx context.Context, call streamCall) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		if err := call.validate(); err != nil {
			yield(nil, err)
			return
		}

		requestID := newRequestID()
		ctx, d := s.begin(ctx, call.operation, call.transport, call.attrs, requestID, nil, yield)
		defer d.finish()

		resp, err := s.client.http.requestStream(ctx, call.transport, call.path, call.body, call.accept, requestID)
		if err != nil {
			d.fail(err)
			return
		}
		defer func() {
			resp.Body.Close()
			s.client.config.logger.Debug("stream closed", "transport", call.transport, "request_id", requestID, "events", d.events)
		}()

		if err := call.read(resp.Body, d); err != nil {
			s.client.config.logger.Warn("stream failed", "transport", call.transport, "request_id", requestID, "error", err)
			d.fail(err)
		}
	}
}

// begin starts the span for a stream and builds its dispatcher. Sinks run in
// order: tracing, client sinks, then the call's sink.
func (s *StreamingService) begin(ctx context.Context, operation string, transport Transport, attrs []attribute.KeyValue, correlationID string, sink Sink, yield func(*Event, error) bool) (context.Context, *dispatcher) {
	ctx, span := s.startSpan(ctx, operation, transport, attrs...)

	sinks := make([]Sink, 0, len(s.client.config.sinks)+2)
	sinks = append(sinks, &spanSink{span: span})
	sinks = append(sinks, s.client.config.sinks...)
	sinks = append(sinks, sink)

	info := StreamInfo{
		ID:            uuid.NewString(),
		Operation:     operation,
		Transport:     transport,
		CorrelationID: correlationID,
		Started:       time.Now(),
	}
	d := newDispatcher(ctx, MultiSink(sinks...), info, yield)
	d.start()
	return ctx, d
}

func (s *StreamingService) startSpan(ctx context.Context, operation string, transport Transport, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "riptide."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("riptide.transport", string(transport))),
		trace.WithAttributes(attrs...),
	)
}

func urlCount(urls []string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int("riptide.url_count", len(urls))}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// spanSink counts events on the stream's span and ends it with the stream.
type spanSink struct {
	span   trace.Span
	events int
}

func (t *spanSink) OnEvent(_ context.Context, ev *Event) error {
	t.events++
	if ev.Kind == KindError {
		t.span.AddEvent("riptide.error_event", trace.WithAttributes(
			attribute.String("error_type", ev.String("error_type")),
		))
	}
	return nil
}

func (t *spanSink) StreamStarted(context.Context, StreamInfo) {}

func (t *spanSink) StreamEnded(_ context.Context, info StreamInfo, err error) {
	t.span.SetAttributes(
		attribute.Int("riptide.events", t.events),
		attribute.String("riptide.correlation_id", info.CorrelationID),
	)
	endSpan(t.span, err)
}

func validateCrawl(urls []string, opts *CrawlOptions) error {
	if err := validateURLs(urls); err != nil {
		return err
	}
	return opts.Validate()
}
