package riptide

import (
	"encoding/json"
	"fmt"
)

// Variant is the typed view of an Event. The set of implementations is
// closed: switch on the concrete type and handle *UnknownEvent for kinds
// this package does not model yet.
//
//	v, err := ev.Variant()
//	switch v := v.(type) {
//	case *riptide.ResultEvent:
//	    fmt.Println(v.Result.URL)
//	case *riptide.SummaryEvent:
//	    fmt.Println(v.Successful, "ok")
//	case *riptide.UnknownEvent:
//	    // forward compatible
//	}
type Variant interface {
	Kind() Kind
	variant()
}

// CrawlResult is the per-URL crawl outcome.
type CrawlResult struct {
	URL              string         `json:"url"`
	Status           int            `json:"status"`
	FromCache        bool           `json:"from_cache"`
	GateDecision     string         `json:"gate_decision"`
	QualityScore     float64        `json:"quality_score"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Document         map[string]any `json:"document,omitempty"`
	Error            *ErrorInfo     `json:"error,omitempty"`
	CacheKey         string         `json:"cache_key,omitempty"`
}

// ErrorInfo describes a failed URL inside a CrawlResult.
type ErrorInfo struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Progress is the running completion count attached to results.
type Progress struct {
	Completed   int     `json:"completed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
}

// WelcomeEvent is the first WebSocket message of every session.
type WelcomeEvent struct {
	SessionID           string   `json:"session_id"`
	ServerTime          string   `json:"server_time"`
	ProtocolVersion     string   `json:"protocol_version"`
	SupportedOperations []string `json:"supported_operations"`
}

// MetadataEvent opens a crawl stream.
type MetadataEvent struct {
	TotalURLs  int    `json:"total_urls"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	StreamType string `json:"stream_type,omitempty"`
}

// ResultEvent carries one crawled URL.
type ResultEvent struct {
	Index    int         `json:"index"`
	Result   CrawlResult `json:"result"`
	Progress Progress    `json:"progress"`
}

// ProgressEvent reports crawl progress without a result.
type ProgressEvent struct {
	Completed   int     `json:"completed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
}

// SummaryEvent ends a WebSocket crawl.
type SummaryEvent struct {
	TotalURLs             int   `json:"total_urls"`
	Successful            int   `json:"successful"`
	Failed                int   `json:"failed"`
	TotalProcessingTimeMs int64 `json:"total_processing_time_ms"`
}

// CompleteEvent ends an SSE crawl.
type CompleteEvent struct {
	TotalURLs             int   `json:"total_urls"`
	Successful            int   `json:"successful"`
	Failed                int   `json:"failed"`
	TotalProcessingTimeMs int64 `json:"total_processing_time_ms"`
}

// ErrorEvent is an in-band error: a server-reported failure or a frame the
// client could not decode. The stream continues after it.
type ErrorEvent struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Raw       string `json:"raw,omitempty"`
}

// PongEvent answers a ping request.
type PongEvent struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
}

// StatusEvent answers a status request.
type StatusEvent struct {
	SessionID           string `json:"session_id"`
	ConnectedDurationMs int64  `json:"connected_duration_ms"`
	IsHealthy           bool   `json:"is_healthy"`
	MessageCount        int    `json:"message_count"`
	BackpressureCount   int    `json:"backpressure_count"`
}

// KeepaliveEvent is a server heartbeat.
type KeepaliveEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
}

// CrawlResultEvent is one line of an NDJSON crawl stream. Lines carry either
// stream metadata, a result with progress, or the final summary.
type CrawlResultEvent struct {
	Index    *int         `json:"index,omitempty"`
	Result   *CrawlResult `json:"result,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
}

// IsResult reports whether the line carries a crawl result.
func (e *CrawlResultEvent) IsResult() bool { return e.Result != nil }

// SearchResultEvent is one line of an NDJSON deep search stream.
type SearchResultEvent struct {
	Index        *int           `json:"index,omitempty"`
	Query        string         `json:"query,omitempty"`
	SearchResult map[string]any `json:"search_result,omitempty"`
	CrawlResult  *CrawlResult   `json:"crawl_result,omitempty"`
}

// MessageEvent is an untyped SSE event.
type MessageEvent struct {
	Payload map[string]any
}

// UnknownEvent is any kind this package does not model.
type UnknownEvent struct {
	Tag     Kind
	Payload map[string]any
}

func (*WelcomeEvent) Kind() Kind      { return KindWelcome }
func (*MetadataEvent) Kind() Kind     { return KindMetadata }
func (*ResultEvent) Kind() Kind       { return KindResult }
func (*ProgressEvent) Kind() Kind     { return KindProgress }
func (*SummaryEvent) Kind() Kind      { return KindSummary }
func (*CompleteEvent) Kind() Kind     { return KindComplete }
func (*ErrorEvent) Kind() Kind        { return KindError }
func (*PongEvent) Kind() Kind         { return KindPong }
func (*StatusEvent) Kind() Kind       { return KindStatus }
func (*KeepaliveEvent) Kind() Kind    { return KindKeepalive }
func (*CrawlResultEvent) Kind() Kind  { return KindCrawlResult }
func (*SearchResultEvent) Kind() Kind { return KindSearchResult }
func (*MessageEvent) Kind() Kind      { return KindMessage }
func (e *UnknownEvent) Kind() Kind    { return e.Tag }

func (*WelcomeEvent) variant()      {}
func (*MetadataEvent) variant()     {}
func (*ResultEvent) variant()       {}
func (*ProgressEvent) variant()     {}
func (*SummaryEvent) variant()      {}
func (*CompleteEvent) variant()     {}
func (*ErrorEvent) variant()        {}
func (*PongEvent) variant()         {}
func (*StatusEvent) variant()       {}
func (*KeepaliveEvent) variant()    {}
func (*CrawlResultEvent) variant()  {}
func (*SearchResultEvent) variant() {}
func (*MessageEvent) variant()      {}
func (*UnknownEvent) variant()      {}

// Variant decodes the payload into the typed view for the event kind.
func (e *Event) Variant() (Variant, error) {
	switch e.Kind {
	case KindWelcome:
		return decodeVariant[WelcomeEvent](e)
	case KindMetadata:
		return decodeVariant[MetadataEvent](e)
	case KindResult:
		return decodeVariant[ResultEvent](e)
	case KindProgress:
		return decodeVariant[ProgressEvent](e)
	case KindSummary:
		return decodeVariant[SummaryEvent](e)
	case KindComplete:
		return decodeVariant[CompleteEvent](e)
	case KindError:
		return decodeVariant[ErrorEvent](e)
	case KindPong:
		return decodeVariant[PongEvent](e)
	case KindStatus:
		return decodeVariant[StatusEvent](e)
	case KindKeepalive:
		return decodeVariant[KeepaliveEvent](e)
	case KindCrawlResult:
		return decodeVariant[CrawlResultEvent](e)
	case KindSearchResult:
		return decodeVariant[SearchResultEvent](e)
	case KindMessage:
		return &MessageEvent{Payload: e.Payload}, nil
	default:
		return &UnknownEvent{Tag: e.Kind, Payload: e.Payload}, nil
	}
}

// decodeVariant re-decodes the payload into T through JSON.
func decodeVariant[T any, PT interface {
	*T
	Variant
}](e *Event) (Variant, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("riptide: encode %s payload: %w", e.Kind, err)
	}
	v := PT(new(T))
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("riptide: decode %s payload: %w", e.Kind, err)
	}
	return v, nil
}
