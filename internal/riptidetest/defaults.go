package riptidetest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// crawlBody is the part of a crawl or deep search request the defaults use.
type crawlBody struct {
	URLs  []string `json:"urls"`
	Query string   `json:"query"`
	Limit int      `json:"limit"`
}

// Result returns a successful crawl result payload for url.
func Result(url string) map[string]any {
	return map[string]any{
		"url":                url,
		"status":             200,
		"from_cache":         false,
		"gate_decision":      "raw",
		"quality_score":      0.8,
		"processing_time_ms": 12,
		"document": map[string]any{
			"url":   url,
			"title": "Example Domain",
			"text":  "This domain is for use in illustrative examples.",
		},
		"cache_key": "riptide:v1:" + url,
	}
}

// ResultLine returns an NDJSON crawl result line.
func ResultLine(index, total int, url string) string {
	return mustJSON(map[string]any{
		"index":  index,
		"result": Result(url),
		"progress": map[string]any{
			"completed":    index + 1,
			"total":        total,
			"success_rate": 1.0,
		},
	})
}

// CrawlMessages returns a well-formed WebSocket crawl reply for urls:
// metadata, one result per URL, and the summary.
func CrawlMessages(sessionID string, urls ...string) []Message {
	msgs := []Message{Envelope("metadata", map[string]any{
		"total_urls":  len(urls),
		"session_id":  sessionID,
		"timestamp":   now(),
		"stream_type": "crawl",
	})}
	for i, u := range urls {
		msgs = append(msgs, Envelope("result", map[string]any{
			"index":  i,
			"result": Result(u),
			"progress": map[string]any{
				"completed":    i + 1,
				"total":        len(urls),
				"success_rate": 1.0,
			},
		}))
	}
	return append(msgs, Envelope("summary", map[string]any{
		"total_urls":               len(urls),
		"successful":               len(urls),
		"failed":                   0,
		"total_processing_time_ms": 12 * len(urls),
	}))
}

func defaultCrawlLines(body []byte) []string {
	var req crawlBody
	json.Unmarshal(body, &req)
	lines := []string{mustJSON(map[string]any{
		"total_urls":  len(req.URLs),
		"request_id":  "req-1",
		"timestamp":   now(),
		"stream_type": "crawl",
	})}
	for i, u := range req.URLs {
		lines = append(lines, ResultLine(i, len(req.URLs), u))
	}
	return append(lines, mustJSON(map[string]any{
		"total_urls":               len(req.URLs),
		"successful":               len(req.URLs),
		"failed":                   0,
		"from_cache":               0,
		"total_processing_time_ms": 12 * len(req.URLs),
		"cache_hit_rate":           0.0,
	}))
}

func defaultSearchLines(body []byte) []string {
	var req crawlBody
	json.Unmarshal(body, &req)
	n := min(req.Limit, 3)
	lines := []string{mustJSON(map[string]any{
		"query":          req.Query,
		"urls_found":     n,
		"search_time_ms": 5,
	})}
	for i := range n {
		u := fmt.Sprintf("https://example.com/%s/%d", strings.ReplaceAll(req.Query, " ", "-"), i)
		lines = append(lines, mustJSON(map[string]any{
			"index": i,
			"search_result": map[string]any{
				"url":     u,
				"rank":    i + 1,
				"title":   fmt.Sprintf("%s result %d", req.Query, i+1),
				"snippet": "snippet",
			},
			"crawl_result": Result(u),
		}))
	}
	return append(lines, mustJSON(map[string]any{
		"query":                    req.Query,
		"total_urls_found":         n,
		"total_processing_time_ms": 40,
		"status":                   "completed",
	}))
}

func defaultSSE(body []byte) []string {
	var req crawlBody
	json.Unmarshal(body, &req)
	chunks := []string{sseBlock("metadata", map[string]any{
		"total_urls":  len(req.URLs),
		"timestamp":   now(),
		"stream_type": "crawl",
	})}
	for i, u := range req.URLs {
		chunks = append(chunks, sseBlock("result", map[string]any{
			"index":  i,
			"result": Result(u),
			"progress": map[string]any{
				"completed":    i + 1,
				"total":        len(req.URLs),
				"success_rate": 1.0,
			},
		}))
	}
	return append(chunks, sseBlock("complete", map[string]any{
		"total_urls":               len(req.URLs),
		"successful":               len(req.URLs),
		"failed":                   0,
		"total_processing_time_ms": 12 * len(req.URLs),
	}))
}

func defaultCrawlMessages(req map[string]any, sessionID string) []Message {
	var urls []string
	if data, ok := req["data"].(map[string]any); ok {
		if list, ok := data["urls"].([]any); ok {
			for _, u := range list {
				if s, ok := u.(string); ok {
					urls = append(urls, s)
				}
			}
		}
	}
	return CrawlMessages(sessionID, urls...)
}

func sseBlock(event string, data map[string]any) string {
	return "event: " + event + "\ndata: " + mustJSON(data) + "\n\n"
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
