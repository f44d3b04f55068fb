package commands

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
	"github.com/foofork/riptidecrawler/go/pkg/journal"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
	"github.com/foofork/riptidecrawler/go/pkg/streammetrics"
)

// outputFlags are shared by every command that prints events.
type outputFlags struct {
	jq      string
	json    bool
	quiet   bool
	options string
}

func (f *outputFlags) register(cmd *cobra.Command, withOptions bool) {
	cmd.Flags().StringVar(&f.jq, "jq", "", "jq expression applied to each event {kind, payload, timestamp, id}")
	cmd.Flags().BoolVar(&f.json, "json", false, "print one JSON document per line")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print the event count at the end")
	if withOptions {
		cmd.Flags().StringVarP(&f.options, "file", "f", "", "crawl options file (YAML or JSON, - for stdin)")
	}
}

func (f *outputFlags) printer() (*cli.EventPrinter, error) {
	opts := cli.EventOptions{JSON: f.json}
	if f.jq != "" {
		filter, err := cli.ParseFilter(f.jq)
		if err != nil {
			return nil, err
		}
		opts.Filter = filter
	}
	return cli.NewEventPrinter(os.Stdout, opts), nil
}

// printStream drains events into p. The first stream error is returned.
func printStream(ctx context.Context, events iter.Seq2[*riptide.Event, error], p *cli.EventPrinter, quiet bool) error {
	for ev, err := range events {
		if err != nil {
			return err
		}
		if err := p.Print(ctx, ev); err != nil {
			return err
		}
	}
	if !quiet {
		fmt.Fprintln(os.Stderr, p.Summary())
	}
	return nil
}

// sinks holds the optional sinks a streaming command attaches to its client.
type sinks struct {
	journal *journal.Journal
	metrics *streammetrics.Metrics
	server  *http.Server
	addr    net.Addr
}

// shutdownTimeout bounds how long close waits for metrics scrapes in flight.
var shutdownTimeout = 2 * time.Second

// openSinks opens the journal when recordDir is set and starts the metrics
// endpoint when --metrics-addr is set.
func openSinks(recordDir string) (*sinks, error) {
	s := &sinks{}
	if recordDir != "" {
		if err := os.MkdirAll(recordDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		j, err := journal.Open(recordDir)
		if err != nil {
			return nil, err
		}
		s.journal = j
		printVerbose("Recording to %s", recordDir)
	}
	if metricsAddr != "" {
		if err := s.serveMetrics(metricsAddr); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func (s *sinks) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = streammetrics.New(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", streammetrics.Handler(reg))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.addr = ln.Addr()
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()
	printVerbose("Serving metrics on http://%s/metrics", s.addr)
	return nil
}

// options returns the client options attaching the open sinks.
func (s *sinks) options() []riptide.Option {
	var out []riptide.Option
	if s.journal != nil {
		out = append(out, riptide.WithSink(s.journal))
	}
	if s.metrics != nil {
		out = append(out, riptide.WithSink(s.metrics))
	}
	return out
}

func (s *sinks) close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Warn("failed to stop metrics server", "error", err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Warn("failed to close journal", "error", err)
		}
	}
}

// defaultJournalDir is used by --record without a value.
func defaultJournalDir() string {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return "journal"
	}
	return paths.JournalDir()
}
