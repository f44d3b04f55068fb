// Package cli holds the plumbing behind the riptide command.
//
// It covers:
//   - Contexts: named server profiles (base URL, WebSocket URL, headers)
//     stored in ~/.riptide/<app>/config.yaml, switched like kubectl contexts
//   - Crawl options files in YAML or JSON
//   - Output of single results (YAML, JSON, raw) and of event streams
//     (styled lines or NDJSON), optionally projected through a jq filter
//
// Example:
//
//	cfg, err := cli.LoadConfig("riptide")
//	rc, err := cfg.ResolveContext("")
//	client := riptide.NewClient(rc.ClientOptions()...)
//
//	p := cli.NewEventPrinter(os.Stdout, cli.EventOptions{JSON: true})
//	for ev, err := range client.Streaming.CrawlNDJSON(ctx, urls, nil) {
//	    ...
//	    p.Print(ev)
//	}
package cli
