package cli

import (
	"fmt"
	"io"
	"iter"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	"github.com/foofork/riptidecrawler/go/pkg/journal"
	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

// ResultPrinter writes the single results of session commands and journal
// listings. With JSON set every result is one JSON document per line, the
// same framing EventPrinter uses.
type ResultPrinter struct {
	w      io.Writer
	json   bool
	styles Styles
}

// NewResultPrinter returns a printer writing to w.
func NewResultPrinter(w io.Writer, json bool) *ResultPrinter {
	return &ResultPrinter{
		w:      w,
		json:   json,
		styles: NewStyles(lipgloss.NewRenderer(w), DefaultTheme),
	}
}

// Ping writes one ping round trip, e.g.
//
//	pong          1.52ms session=session-1 server_time=2024-01-01T00:00:00Z
func (p *ResultPrinter) Ping(res *riptide.PingResult) error {
	if p.json {
		return writeJSONLine(p.w, res)
	}
	style := p.styles.For(riptide.KindPong)
	label := string(riptide.KindPong)
	if !res.Success {
		style = p.styles.Error
		label = "ping failed"
	}
	_, err := fmt.Fprintf(p.w, "%s %s session=%s server_time=%s\n",
		style.Render(fmt.Sprintf("%-*s", kindWidth, label)),
		res.Latency().Round(10*time.Microsecond), res.SessionID, res.ServerTime)
	return err
}

// Status writes a session status payload.
func (p *ResultPrinter) Status(status map[string]any) error {
	if p.json {
		return writeJSONLine(p.w, status)
	}
	return writeYAML(p.w, status)
}

// Runs writes a journal listing, oldest run first. The first error from runs
// stops the listing and is returned.
func (p *ResultPrinter) Runs(runs iter.Seq2[*journal.Run, error]) error {
	if p.json {
		for run, err := range runs {
			if err != nil {
				return err
			}
			if err := writeJSONLine(p.w, run); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tOPERATION\tTRANSPORT\tEVENTS\tDURATION\tCORRELATION\tERROR")
	for run, err := range runs {
		if err != nil {
			return err
		}
		duration := "running"
		if run.Done() {
			duration = run.Duration().Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			run.ID, run.Started.Local().Format(time.DateTime), run.Operation, run.Transport,
			run.Events, duration, run.CorrelationID, run.Error)
	}
	return w.Flush()
}

// Context writes ctx as YAML with header values masked.
func (p *ResultPrinter) Context(ctx *Context) error {
	return writeYAML(p.w, ctx.Redacted())
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
