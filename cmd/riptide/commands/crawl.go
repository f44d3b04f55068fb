package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

var (
	crawlOut       outputFlags
	crawlTransport string
	crawlRecord    string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>...",
	Short: "Stream a crawl",
	Long: `Crawl one or more URLs and print events as they arrive.

Transports:
  ndjson  POST /crawl/stream, one JSON object per line (default)
  sse     POST /crawl/sse, Server-Sent Events
  ws      WebSocket /crawl/ws, ends after the summary

Examples:
  riptide crawl https://example.com https://example.org
  riptide crawl https://example.com --transport sse -f options.yaml
  riptide crawl https://example.com --transport ws --json > events.ndjson
  riptide crawl https://example.com --record --metrics-addr :9090`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlOut.register(crawlCmd, true)
	crawlCmd.Flags().StringVarP(&crawlTransport, "transport", "t", "ndjson", "stream transport: ndjson, sse, ws")
	crawlCmd.Flags().StringVar(&crawlRecord, "record", "", "record events into a journal (--record=DIR, bare --record uses ~/.riptide/riptide/journal)")
	crawlCmd.Flags().Lookup("record").NoOptDefVal = defaultJournalDir()
}

func runCrawl(cmd *cobra.Command, args []string) error {
	opts, err := cli.LoadCrawlOptions(crawlOut.options)
	if err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	printer, err := crawlOut.printer()
	if err != nil {
		return err
	}

	s, err := openSinks(crawlRecord)
	if err != nil {
		return err
	}
	defer s.close()

	client, err := newClient(s.options()...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	printVerbose("Crawling %d URL(s) over %s", len(args), crawlTransport)
	switch crawlTransport {
	case "ndjson":
		return printStream(ctx, client.Streaming.CrawlNDJSON(ctx, args, opts), printer, crawlOut.quiet)
	case "sse":
		return printStream(ctx, client.Streaming.CrawlSSE(ctx, args, opts), printer, crawlOut.quiet)
	case "ws", "websocket":
		return printStream(ctx, client.Streaming.CrawlWebSocket(ctx, args, opts, nil), printer, crawlOut.quiet)
	default:
		return fmt.Errorf("unknown transport %q (want ndjson, sse or ws)", crawlTransport)
	}
}

var (
	searchOut    outputFlags
	searchLimit  int
	searchRecord string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Stream a deep search",
	Long: `Run a deep search and print events as they arrive over NDJSON.

Examples:
  riptide search "rust web crawlers" --limit 5
  riptide search "rust web crawlers" --jq 'select(.kind == "search_result") | .payload.url'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := cli.LoadCrawlOptions(searchOut.options)
		if err != nil {
			return fmt.Errorf("failed to load options: %w", err)
		}
		printer, err := searchOut.printer()
		if err != nil {
			return err
		}

		s, err := openSinks(searchRecord)
		if err != nil {
			return err
		}
		defer s.close()

		client, err := newClient(s.options()...)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return printStream(ctx, client.Streaming.DeepSearchNDJSON(ctx, args[0], searchLimit, opts), printer, searchOut.quiet)
	},
}

func init() {
	searchOut.register(searchCmd, true)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", riptide.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().StringVar(&searchRecord, "record", "", "record events into a journal (--record=DIR, bare --record uses ~/.riptide/riptide/journal)")
	searchCmd.Flags().Lookup("record").NoOptDefVal = defaultJournalDir()
}
