package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

// Filter is a compiled jq expression applied to events. The input of the
// expression is the event object {kind, payload, timestamp, id}, so
// `select(.kind == "result") | .payload.result.url` works as expected.
type Filter struct {
	expr string
	code *gojq.Code
}

// ParseFilter compiles expr.
func ParseFilter(expr string) (*Filter, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	return &Filter{expr: expr, code: code}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Apply runs the filter on ev and returns every value it emits. An event
// the filter drops yields no values.
func (f *Filter) Apply(ctx context.Context, ev *riptide.Event) ([]any, error) {
	input, err := jqInput(ev)
	if err != nil {
		return nil, err
	}
	var out []any
	it := f.code.RunWithContext(ctx, input)
	for {
		v, ok := it.Next()
		if !ok {
			return out, nil
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq %s: %w", f.expr, err)
		}
		out = append(out, v)
	}
}

// jqInput normalizes ev into the plain JSON types gojq accepts. Payloads
// decoded from msgpack may hold sized integers that gojq rejects.
func jqInput(ev *riptide.Event) (any, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
