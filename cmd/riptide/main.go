// Package main provides the RipTide streaming CLI.
//
// Usage:
//
//	riptide [flags] <command> [args]
//
// Commands:
//
//	crawl    - Stream a crawl over NDJSON, SSE or WebSocket
//	search   - Stream a deep search over NDJSON
//	ws       - WebSocket ping and status
//	replay   - List and replay recorded runs
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.riptide/riptide/
//	Use 'riptide config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/foofork/riptidecrawler/go/cmd/riptide/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
