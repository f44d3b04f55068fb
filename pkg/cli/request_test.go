package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCrawlOptions_YAML(t *testing.T) {
	path := writeFile(t, "opts.yaml", `
cache_mode: read_only
concurrency: 4
use_spider: true
chunking_config:
  method: sentence
extra:
  render_js: true
`)
	opts, err := LoadCrawlOptions(path)
	if err != nil {
		t.Fatalf("LoadCrawlOptions error: %v", err)
	}
	if opts.CacheMode != riptide.CacheReadOnly || opts.Concurrency != 4 || !opts.UseSpider {
		t.Errorf("opts = %+v", opts)
	}
	if opts.ChunkingConfig["method"] != "sentence" {
		t.Errorf("ChunkingConfig = %v", opts.ChunkingConfig)
	}
	if opts.Extra["render_js"] != true {
		t.Errorf("Extra = %v", opts.Extra)
	}
}

func TestLoadCrawlOptions_JSON(t *testing.T) {
	path := writeFile(t, "opts.json", `{"cache_mode": "disabled", "max_depth": 2}`)
	opts, err := LoadCrawlOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if opts.CacheMode != riptide.CacheDisabled || opts.MaxDepth != 2 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestLoadCrawlOptions_Invalid(t *testing.T) {
	path := writeFile(t, "opts.yaml", "cache_mode: sometimes\n")
	_, err := LoadCrawlOptions(path)
	if _, ok := riptide.AsValidationError(err); !ok {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestLoadCrawlOptions_Empty(t *testing.T) {
	opts, err := LoadCrawlOptions("")
	if opts != nil || err != nil {
		t.Errorf("LoadCrawlOptions(\"\") = %v, %v", opts, err)
	}
}

func TestParseRequest_UnknownExtension(t *testing.T) {
	var v map[string]any
	if err := ParseRequest([]byte(`{"limit": 3}`), "request.txt", &v); err != nil {
		t.Fatal(err)
	}
	if v["limit"] != 3 {
		t.Errorf("v = %v", v)
	}
}

func TestLoadRequestFromReader(t *testing.T) {
	var v struct {
		Query string `json:"query" yaml:"query"`
	}
	if err := LoadRequestFromReader(strings.NewReader("query: rust crawlers\n"), &v); err != nil {
		t.Fatal(err)
	}
	if v.Query != "rust crawlers" {
		t.Errorf("Query = %q", v.Query)
	}
	if err := LoadRequestFromReader(strings.NewReader("key: [unclosed"), &v); err == nil {
		t.Error("expected parse error")
	}
}
