package riptide

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultBaseURL is the default RipTide API base URL.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout bounds connection establishment: the time to receive
	// response headers for HTTP streams and the WebSocket handshake.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "riptide-go/1.0"

	// DefaultSearchLimit is the deep search limit used when none is given.
	DefaultSearchLimit = 10
)

// Endpoint paths on the RipTide API.
const (
	PathCrawlStream      = "/crawl/stream"
	PathDeepSearchStream = "/deepsearch/stream"
	PathCrawlSSE         = "/crawl/sse"
	PathCrawlWebSocket   = "/crawl/ws"
)

// Client is the RipTide streaming API client.
type Client struct {
	// Streaming provides the NDJSON, SSE and WebSocket streaming operations.
	Streaming *StreamingService

	config *clientConfig
	http   *httpClient
}

// clientConfig holds the client configuration.
type clientConfig struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	doer       Doer
	dialer     Dialer
	timeout    time.Duration
	headers    http.Header
	userAgent  string
	logger     *slog.Logger
	policy     DecodePolicy
	sinks      []Sink
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL (e.g. "https://riptide.example.com").
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithWebSocketURL sets the full WebSocket endpoint URL. By default it is
// derived from the base URL.
func WithWebSocketURL(u string) Option {
	return func(c *clientConfig) {
		c.wsURL = u
	}
}

// WithHTTPClient sets the HTTP client used for NDJSON and SSE streams.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDoer sets the request executor used for NDJSON and SSE streams. It
// takes precedence over WithHTTPClient.
func WithDoer(d Doer) Option {
	return func(c *clientConfig) {
		c.doer = d
	}
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = d
	}
}

// WithTimeout sets the connection establishment timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithHeader adds a header sent with every request and handshake.
func WithHeader(key, value string) Option {
	return func(c *clientConfig) {
		c.headers.Add(key, value)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDecodePolicy sets how undecodable frames are handled.
func WithDecodePolicy(p DecodePolicy) Option {
	return func(c *clientConfig) {
		c.policy = p
	}
}

// WithSink attaches sinks that receive every event of every stream opened by
// the client, before the call's own sink. Sinks that implement
// StreamObserver also see stream start and end.
func WithSink(sinks ...Sink) Option {
	return func(c *clientConfig) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// NewClient creates a new RipTide streaming client.
//
// Example:
//
//	client := riptide.NewClient(riptide.WithBaseURL("http://localhost:8080"))
//	for ev, err := range client.Streaming.CrawlNDJSON(ctx, urls, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Kind, ev.Payload["index"])
//	}
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		headers:   http.Header{},
		userAgent: DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.httpClient == nil {
		// No overall client timeout: streams stay open as long as the server
		// keeps producing. Only header arrival is bounded.
		cfg.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.timeout,
			},
		}
	}
	if cfg.doer == nil {
		cfg.doer = cfg.httpClient
	}
	if cfg.dialer == nil {
		cfg.dialer = gorillaDialer{dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.timeout,
		}}
	}

	c := &Client{
		config: cfg,
		http:   newHTTPClient(cfg),
	}
	c.Streaming = newStreamingService(c)
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.baseURL
}

// WebSocketURL returns the WebSocket endpoint used when no per-call URL is given.
func (c *Client) WebSocketURL() string {
	if c.config.wsURL != "" {
		return c.config.wsURL
	}
	u, err := deriveWebSocketURL(c.config.baseURL)
	if err != nil {
		return ""
	}
	return u
}

// deriveWebSocketURL maps http(s)://host/prefix to ws(s)://host/prefix/crawl/ws.
func deriveWebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + PathCrawlWebSocket
	return u.String(), nil
}
