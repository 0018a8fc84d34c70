package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/odapt/internal/adapter"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
	"github.com/roach88/odapt/internal/store"
)

// Harness executes scenario steps against an adapter.
type Harness struct {
	adapter *adapter.TableAdapter
	logger  *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// outcome is what one step produced.
type outcome struct {
	rows  []*ir.Record
	count int
	total *int64
	err   error
}

// Run executes a scenario against an adapter and returns the result.
//
// Execution flow:
//  1. Execute setup steps; any failure aborts the run
//  2. Execute steps, checking each against its expect clause
//  3. Evaluate assertions against the final data
//
// A returned error means the scenario could not run. Failed expectations
// are reported in the Result.
func Run(ctx context.Context, a *adapter.TableAdapter, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		adapter: a,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	for i, step := range scenario.Setup {
		if out := h.execute(ctx, step); out.err != nil {
			return nil, fmt.Errorf("setup step %d (%s %s): %w", i, step.Op, step.Table, out.err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		out := h.execute(ctx, step)
		result.Trace = append(result.Trace, StepTrace{
			Step:    i,
			Op:      step.Op,
			Table:   step.Table,
			Command: h.render(step),
			Count:   out.count,
			Total:   out.total,
			Error:   adapter.CodeOf(out.err),
		})
		for _, msg := range checkExpect(step, out) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: %s", i, step.Op, step.Table, msg))
		}

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op,
			"table", step.Table,
			"count", out.count,
			"error", adapter.CodeOf(out.err),
		)
	}

	for _, msg := range EvaluateAssertions(ctx, a, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// RunSandbox executes a scenario against a fresh in-memory SQLite sandbox
// built from a schema. The sandbox is empty; setup steps provide the data.
func RunSandbox(ctx context.Context, sch *schema.Schema, opts adapter.Options, scenario *Scenario, options ...Option) (*Result, error) {
	st, err := store.Open(":memory:", sch)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	a, err := adapter.Open(ctx, opts, st)
	if err != nil {
		return nil, err
	}
	return Run(ctx, a, scenario, options...)
}

func (h *Harness) execute(ctx context.Context, step Step) outcome {
	a := h.adapter
	switch step.Op {
	case OpGet:
		key, err := keyValues(step.Key)
		if err != nil {
			return outcome{err: err}
		}
		rec, err := a.Get(ctx, step.Table, key...)
		return rowsOutcome(single(rec), err)

	case OpFind:
		criteria, err := parseWhere(step.Where)
		if err != nil {
			return outcome{err: err}
		}
		rows, err := a.Find(ctx, step.Table, criteria)
		return rowsOutcome(rows, err)

	case OpQuery:
		q, total, err := buildQuery(step)
		if err != nil {
			return outcome{err: err}
		}
		rows, _, err := a.RunQuery(ctx, q)
		out := rowsOutcome(rows, err)
		if step.TotalCount && err == nil {
			out.total = total
		}
		return out

	case OpInsert:
		data, err := record(step.Data)
		if err != nil {
			return outcome{err: err}
		}
		rec, err := a.Insert(ctx, step.Table, data, step.ResultRequired)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{rows: single(rec), count: 1}

	case OpUpdate:
		data, err := record(step.Data)
		if err != nil {
			return outcome{err: err}
		}
		criteria, err := parseWhere(step.Where)
		if err != nil {
			return outcome{err: err}
		}
		n, err := a.Update(ctx, step.Table, data, criteria)
		return outcome{count: n, err: err}

	case OpDelete:
		criteria, err := parseWhere(step.Where)
		if err != nil {
			return outcome{err: err}
		}
		n, err := a.Delete(ctx, step.Table, criteria)
		return outcome{count: n, err: err}
	}
	return outcome{err: fmt.Errorf("unknown op %q", step.Op)}
}

// render returns the protocol command a step sends, prefixed with its
// method. Steps that cannot be built render as "".
func (h *Harness) render(step Step) string {
	b := h.adapter.Builder()
	switch step.Op {
	case OpGet:
		key, err := keyValues(step.Key)
		if err != nil {
			return ""
		}
		cmd, err := b.FromKey(step.Table, key...)
		if err != nil {
			return ""
		}
		return "GET " + cmd.String()

	case OpQuery:
		q, _, err := buildQuery(step)
		if err != nil {
			return ""
		}
		cmd, err := b.FromQuery(q)
		if err != nil {
			return ""
		}
		return "GET " + cmd.String()

	case OpInsert:
		path, err := h.adapter.Schema().ResolvePath(step.Table)
		if err != nil {
			return ""
		}
		return "POST " + path
	}

	criteria, err := parseWhere(step.Where)
	if err != nil {
		return ""
	}
	cmd, err := b.FromCriteria(step.Table, criteria)
	if err != nil {
		return ""
	}
	method := map[string]string{OpFind: "GET", OpUpdate: "PATCH", OpDelete: "DELETE"}[step.Op]
	return method + " " + cmd.String()
}

func rowsOutcome(rows []*ir.Record, err error) outcome {
	return outcome{rows: rows, count: len(rows), err: err}
}

func single(rec *ir.Record) []*ir.Record {
	if rec == nil {
		return nil
	}
	return []*ir.Record{rec}
}

func parseWhere(text string) (expr.Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return filter.Parse(text)
}

func keyValues(raw []any) ([]ir.Value, error) {
	out := make([]ir.Value, len(raw))
	for i, v := range raw {
		val, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("key[%d]: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// record converts a YAML mapping. A missing mapping stays nil.
func record(data map[string]any) (*ir.Record, error) {
	if data == nil {
		return nil, nil
	}
	v, err := ir.FromGo(data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return v.(*ir.Record), nil
}

// buildQuery assembles a query from a step. The returned pointer receives
// the total count when total_count is set.
func buildQuery(step Step) (*expr.Query, *int64, error) {
	q := expr.From(step.Table)
	criteria, err := parseWhere(step.Where)
	if err != nil {
		return nil, nil, err
	}
	if criteria != nil {
		q.Where(criteria)
	}
	if step.CountOnly {
		q.Select(expr.Count())
	} else if len(step.Select) > 0 {
		refs := make([]expr.Reference, len(step.Select))
		for i, name := range step.Select {
			refs[i] = expr.Ref(name)
		}
		q.Select(refs...)
	}
	for _, link := range step.Expand {
		q.Expand(link)
	}
	for _, term := range step.OrderBy {
		column, dir, err := parseOrder(term)
		if err != nil {
			return nil, nil, err
		}
		q.OrderBy(column, dir)
	}
	if step.Skip != nil {
		q.Skip(*step.Skip)
	}
	if step.Take != nil {
		q.Take(*step.Take)
	}

	var total *int64
	if step.TotalCount {
		total = new(int64)
		q.WithTotalCount(func(n int64) { *total = n })
	}
	return q, total, nil
}

// parseOrder parses "Column" or "Column asc|desc".
func parseOrder(term string) (string, expr.Direction, error) {
	fields := strings.Fields(term)
	switch {
	case len(fields) == 1:
		return fields[0], expr.Ascending, nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
		return fields[0], expr.Ascending, nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
		return fields[0], expr.Descending, nil
	}
	return "", expr.Ascending, fmt.Errorf("invalid order_by term %q", term)
}
