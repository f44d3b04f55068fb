// Package riptide provides a Go streaming client for the RipTide crawling API.
//
// The API streams crawl results over three transports: newline-delimited JSON
// over chunked HTTP, Server-Sent Events, and WebSocket. This package reduces
// all three to one abstraction, a lazily produced sequence of *Event values.
//
// # Basic Usage
//
//	client := riptide.NewClient(riptide.WithBaseURL("http://localhost:8080"))
//
//	for ev, err := range client.Streaming.CrawlNDJSON(ctx, []string{"https://example.com"}, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Kind, ev.Payload["result"])
//	}
//
// # WebSocket
//
// A WebSocket crawl yields welcome, metadata, result and progress events and
// ends with the summary event. A callback sees every event before the loop:
//
//	onMessage := riptide.SinkFunc(func(ctx context.Context, ev *riptide.Event) error {
//	    log.Println("got", ev.Kind)
//	    return nil
//	})
//	for ev, err := range client.Streaming.CrawlWebSocket(ctx, urls, nil, onMessage) {
//	    ...
//	}
//
//	ping, err := client.Streaming.PingWebSocket(ctx, "")
//	fmt.Println(ping.SessionID, ping.LatencyMs)
//
// Every WebSocket call opens its own connection. Nothing is pooled or reused.
//
// # Typed Events
//
// Event.Variant decodes the payload into a typed value:
//
//	v, err := ev.Variant()
//	if r, ok := v.(*riptide.ResultEvent); ok {
//	    fmt.Println(r.Result.URL, r.Progress.Completed)
//	}
//
// # Errors
//
// Caller mistakes (an empty URL list, an empty query) are reported as
// *ValidationError before any connection is made. Connection, handshake and
// read failures, non-2xx responses and fatal decode failures are reported as
// *StreamingError and end the stream. Events yielded before an error remain
// valid.
//
// What a malformed frame does depends on the DecodePolicy. By default an
// NDJSON line ends the stream, a WebSocket message becomes an "error" event
// and the stream continues, and SSE data that is not JSON is kept as
// {"raw": data}.
package riptide
