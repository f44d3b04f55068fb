package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

const appName = "riptide"

var (
	// Global flags
	cfgFile     string
	contextName string
	metricsAddr string
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "riptide",
	Short: "RipTide streaming client",
	Long: `RipTide CLI - stream crawl and deep search results from a RipTide server.

Results arrive as a sequence of events (metadata, result, summary, ...)
over NDJSON, Server-Sent Events or WebSocket.

Configuration is stored in ~/.riptide/riptide/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Point a context at a server
  riptide config add-context local --base-url http://localhost:8080

  # Crawl over WebSocket and keep only result URLs
  riptide crawl https://example.com --transport ws --jq '.payload.result.url // empty'

  # Record a crawl, then replay it
  riptide crawl https://example.com --record
  riptide replay ~/.riptide/riptide/journal
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.riptide/riptide/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(wsCmd)
	rootCmd.AddCommand(replayCmd)
}

func initConfig() {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context to use. Without -c and without a current
// context, library defaults apply.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}

// newClient builds a client from the selected context.
func newClient(extra ...riptide.Option) (*riptide.Client, error) {
	rc, err := getContext()
	if err != nil {
		return nil, err
	}
	opts, err := rc.ClientOptions()
	if err != nil {
		return nil, err
	}
	printVerbose("Using context %q (base url %s)", rc.Name, orDefault(rc.BaseURL, riptide.DefaultBaseURL))
	return riptide.NewClient(append(opts, extra...)...), nil
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

func printSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
