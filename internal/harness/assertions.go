package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/odapt/internal/adapter"
	"github.com/roach88/odapt/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Table    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s on %s: expected %s, got %s", e.Type, e.Table, e.Expected, e.Actual)
}

// checkExpect compares a step outcome with its expect clause and returns one
// message per mismatch. A step without expect must succeed.
func checkExpect(step Step, out outcome) []string {
	exp := step.Expect
	if exp == nil {
		if out.err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", out.err)}
		}
		return nil
	}

	if exp.Error != "" {
		got := adapter.CodeOf(out.err)
		if got != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s", exp.Error, describeErr(out.err))}
		}
		return nil
	}
	if out.err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", out.err)}
	}

	var msgs []string
	if exp.Count != nil && *exp.Count != out.count {
		msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *exp.Count, out.count))
	}
	if exp.Total != nil {
		switch {
		case out.total == nil:
			msgs = append(msgs, "expected a total count, got none")
		case *exp.Total != *out.total:
			msgs = append(msgs, fmt.Sprintf("expected total %d, got %d", *exp.Total, *out.total))
		}
	}
	if exp.Record != nil {
		if len(out.rows) == 0 {
			msgs = append(msgs, fmt.Sprintf("expected record %v, got no rows", exp.Record))
		} else if diff := matchSubset(out.rows[0], exp.Record); diff != "" {
			msgs = append(msgs, "record: "+diff)
		}
	}
	if exp.Rows != nil {
		if len(exp.Rows) != len(out.rows) {
			msgs = append(msgs, fmt.Sprintf("expected %d rows, got %d", len(exp.Rows), len(out.rows)))
		} else {
			for i, want := range exp.Rows {
				if diff := matchSubset(out.rows[i], want); diff != "" {
					msgs = append(msgs, fmt.Sprintf("rows[%d]: %s", i, diff))
				}
			}
		}
	}
	return msgs
}

func describeErr(err error) string {
	if err == nil {
		return "success"
	}
	return fmt.Sprintf("%s (%v)", adapter.CodeOf(err), err)
}

// matchSubset checks that every expected field is present in rec with an
// equal value. Numbers compare numerically. Returns "" on match.
func matchSubset(rec *ir.Record, expected map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		want, err := ir.FromGo(expected[k])
		if err != nil {
			diffs = append(diffs, fmt.Sprintf("%s: %v", k, err))
			continue
		}
		got, ok := rec.Get(k)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing", k))
			continue
		}
		if !ir.Equal(got, want) {
			diffs = append(diffs, fmt.Sprintf("%s: expected %s, got %s", k, format(want), format(got)))
		}
	}
	return strings.Join(diffs, "; ")
}

func format(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(ctx context.Context, a *adapter.TableAdapter, assertions []Assertion) []string {
	var msgs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(ctx, a, assertion)
		case AssertRowCount:
			err = assertRowCount(ctx, a, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func findRows(ctx context.Context, a *adapter.TableAdapter, assertion Assertion) ([]*ir.Record, error) {
	criteria, err := parseWhere(assertion.Where)
	if err != nil {
		return nil, err
	}
	return a.Find(ctx, assertion.Table, criteria)
}

// assertFinalState checks that some row matching where has the expected
// values.
func assertFinalState(ctx context.Context, a *adapter.TableAdapter, assertion Assertion) error {
	rows, err := findRows(ctx, a, assertion)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Table:    assertion.Table,
			Expected: fmt.Sprintf("rows where %q", assertion.Where),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Table:    assertion.Table,
			Expected: fmt.Sprintf("a row where %q", assertion.Where),
			Actual:   "row not found",
		}
	}

	var diff string
	for _, row := range rows {
		if diff = matchSubset(row, assertion.Expect); diff == "" {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Table:    assertion.Table,
		Expected: fmt.Sprintf("%v", assertion.Expect),
		Actual:   diff,
	}
}

// assertRowCount checks the number of rows matching where.
func assertRowCount(ctx context.Context, a *adapter.TableAdapter, assertion Assertion) error {
	rows, err := findRows(ctx, a, assertion)
	if err != nil && !adapter.IsNotFound(err) {
		return &AssertionError{
			Type:     AssertRowCount,
			Table:    assertion.Table,
			Expected: fmt.Sprintf("%d rows", assertion.Count),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Table:    assertion.Table,
			Expected: fmt.Sprintf("%d rows", assertion.Count),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	return nil
}
