package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

// Theme defines the colors of event lines.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f87"),
}

// Styles holds the per-kind styles derived from a theme.
type Styles struct {
	Kind     lipgloss.Style
	Terminal lipgloss.Style
	Control  lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style
}

// NewStyles creates styles from a theme. Colors are only emitted when r
// renders to a terminal.
func NewStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Kind:     r.NewStyle().Bold(true).Foreground(t.Primary),
		Terminal: r.NewStyle().Bold(true).Reverse(true).Foreground(t.Primary),
		Control:  r.NewStyle().Foreground(t.Dim),
		Error:    r.NewStyle().Bold(true).Foreground(t.Error),
		Help:     r.NewStyle().Foreground(t.Dim),
	}
}

// For returns the style of an event kind.
func (s Styles) For(kind riptide.Kind) lipgloss.Style {
	switch kind {
	case riptide.KindError:
		return s.Error
	case riptide.KindSummary, riptide.KindComplete:
		return s.Terminal
	case riptide.KindWelcome, riptide.KindMetadata, riptide.KindPong,
		riptide.KindStatus, riptide.KindKeepalive, riptide.KindProgress:
		return s.Control
	default:
		return s.Kind
	}
}

// EventOptions configures an EventPrinter.
type EventOptions struct {
	// JSON prints one JSON document per line instead of styled lines.
	JSON bool

	// Filter, if set, projects each event; its outputs are printed instead
	// of the event.
	Filter *Filter

	Theme *Theme
}

// kindWidth pads kinds so payloads line up.
const kindWidth = 13

// EventPrinter writes events as they arrive.
type EventPrinter struct {
	w      io.Writer
	opts   EventOptions
	styles Styles
	counts map[riptide.Kind]int
}

// NewEventPrinter returns a printer writing to w.
func NewEventPrinter(w io.Writer, opts EventOptions) *EventPrinter {
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	return &EventPrinter{
		w:      w,
		opts:   opts,
		styles: NewStyles(lipgloss.NewRenderer(w), theme),
		counts: make(map[riptide.Kind]int),
	}
}

// Print writes ev.
func (p *EventPrinter) Print(ctx context.Context, ev *riptide.Event) error {
	p.counts[ev.Kind]++
	if p.opts.Filter != nil {
		values, err := p.opts.Filter.Apply(ctx, ev)
		if err != nil {
			return err
		}
		for _, v := range values {
			if err := p.printValue(ev.Kind, v); err != nil {
				return err
			}
		}
		return nil
	}
	if p.opts.JSON {
		return p.printJSON(ev)
	}
	return p.printValue(ev.Kind, ev.Payload)
}

func (p *EventPrinter) printValue(kind riptide.Kind, v any) error {
	if p.opts.JSON {
		return p.printJSON(v)
	}
	var text string
	if s, ok := v.(string); ok {
		text = s
	} else {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		text = string(data)
	}
	label := p.styles.For(kind).Render(fmt.Sprintf("%-*s", kindWidth, kind))
	_, err := fmt.Fprintf(p.w, "%s %s\n", label, text)
	return err
}

func (p *EventPrinter) printJSON(v any) error {
	return writeJSONLine(p.w, v)
}

// writeJSONLine writes v as compact JSON followed by a newline.
func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Summary returns a one-line count of the events printed so far, e.g.
// "12 events (metadata 1, result 10, summary 1)".
func (p *EventPrinter) Summary() string {
	total := 0
	var parts []string
	for _, kind := range slices.Sorted(maps.Keys(p.counts)) {
		n := p.counts[kind]
		total += n
		parts = append(parts, fmt.Sprintf("%s %d", kind, n))
	}
	s := fmt.Sprintf("%d events", total)
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	return p.styles.Help.Render(s)
}
