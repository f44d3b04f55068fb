package riptide

import (
	"encoding/json"
	"fmt"
)

// CacheMode controls how the server uses its result cache.
type CacheMode string

const (
	CacheReadWrite CacheMode = "read_write"
	CacheReadOnly  CacheMode = "read_only"
	CacheWriteOnly CacheMode = "write_only"
	CacheDisabled  CacheMode = "disabled"
)

// CrawlOptions are the optional crawl settings sent with every request.
// Zero values are omitted from the request.
type CrawlOptions struct {
	CacheMode      CacheMode      `json:"cache_mode,omitempty" yaml:"cache_mode,omitempty"`
	Concurrency    int            `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	TimeoutSecs    int            `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty"`
	UseSpider      bool           `json:"use_spider,omitempty" yaml:"use_spider,omitempty"`
	ChunkingConfig map[string]any `json:"chunking_config,omitempty" yaml:"chunking_config,omitempty"`
	MaxDepth       int            `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	MaxPages       int            `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
	FollowExternal bool           `json:"follow_external,omitempty" yaml:"follow_external,omitempty"`

	// Extra holds server options this type does not model. Keys are merged
	// into the encoded object; typed fields win on conflict.
	Extra map[string]any `json:"-" yaml:"extra,omitempty"`
}

// MarshalJSON merges Extra into the encoded options object.
func (o CrawlOptions) MarshalJSON() ([]byte, error) {
	type plain CrawlOptions
	data, err := json.Marshal(plain(o))
	if err != nil {
		return nil, err
	}
	if len(o.Extra) == 0 {
		return data, nil
	}
	merged := make(map[string]any, len(o.Extra)+8)
	for k, v := range o.Extra {
		merged[k] = v
	}
	var typed map[string]any
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Validate checks option values that the server would reject.
func (o *CrawlOptions) Validate() error {
	if o == nil {
		return nil
	}
	switch o.CacheMode {
	case "", CacheReadWrite, CacheReadOnly, CacheWriteOnly, CacheDisabled:
	default:
		return &ValidationError{Field: "options.cache_mode", Message: fmt.Sprintf("unknown cache mode %q", o.CacheMode)}
	}
	if o.Concurrency < 0 {
		return &ValidationError{Field: "options.concurrency", Message: "must not be negative"}
	}
	if o.TimeoutSecs < 0 {
		return &ValidationError{Field: "options.timeout_secs", Message: "must not be negative"}
	}
	return nil
}

// crawlRequest is the body of a crawl call on every transport.
type crawlRequest struct {
	URLs    []string      `json:"urls"`
	Options *CrawlOptions `json:"options,omitempty"`
}

// deepSearchRequest is the body of a deep search call.
type deepSearchRequest struct {
	Query   string        `json:"query"`
	Limit   int           `json:"limit"`
	Options *CrawlOptions `json:"options,omitempty"`
}

// DecodePolicy selects what happens to a frame that cannot be decoded.
type DecodePolicy int

const (
	// DecodeTransportDefault fails NDJSON streams, reports WebSocket
	// messages inline and keeps SSE data as {"raw": ...}.
	DecodeTransportDefault DecodePolicy = iota

	// DecodeFailFast ends every stream with a StreamingError. SSE data that
	// is not JSON is still kept raw since SSE carries no JSON contract.
	DecodeFailFast

	// DecodeInline reports malformed NDJSON lines and WebSocket messages as
	// error events and continues.
	DecodeInline

	// DecodeRepair attempts to repair malformed JSON before falling back to
	// DecodeInline behaviour.
	DecodeRepair
)

// String returns the policy name.
func (p DecodePolicy) String() string {
	switch p {
	case DecodeTransportDefault:
		return "default"
	case DecodeFailFast:
		return "fail-fast"
	case DecodeInline:
		return "inline"
	case DecodeRepair:
		return "repair"
	default:
		return fmt.Sprintf("DecodePolicy(%d)", int(p))
	}
}

// ParseDecodePolicy parses a policy name as returned by String.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch s {
	case "", "default":
		return DecodeTransportDefault, nil
	case "fail-fast":
		return DecodeFailFast, nil
	case "inline":
		return DecodeInline, nil
	case "repair":
		return DecodeRepair, nil
	}
	return 0, fmt.Errorf("riptide: unknown decode policy %q", s)
}

// failsOn reports whether a malformed frame on the transport ends the stream.
func (p DecodePolicy) failsOn(t Transport) bool {
	switch p {
	case DecodeFailFast:
		return true
	case DecodeInline, DecodeRepair:
		return false
	}
	return t == TransportNDJSON
}
