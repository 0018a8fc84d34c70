package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
)

// QueryOptions holds flags for the query and explain commands.
type QueryOptions struct {
	*RootOptions
	Where   string
	Select  []string
	OrderBy []string
	Expand  []string
	Skip    int
	Top     int
	Count   bool
	Total   bool
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Rows        []*ir.Record `json:"rows"`
	Total       *int64       `json:"total,omitempty"`
	Unprocessed []string     `json:"unprocessed,omitempty"`
}

func (o *QueryOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Where, "where", "w", "", "filter criteria")
	cmd.Flags().StringSliceVar(&o.Select, "select", nil, "columns to return")
	cmd.Flags().StringSliceVar(&o.OrderBy, "orderby", nil, `ordering terms ("UnitPrice desc")`)
	cmd.Flags().StringSliceVar(&o.Expand, "expand", nil, "links to expand")
	cmd.Flags().IntVar(&o.Skip, "skip", -1, "entries to skip")
	cmd.Flags().IntVar(&o.Top, "top", -1, "maximum entries to return")
	cmd.Flags().BoolVar(&o.Count, "count", false, "return only the number of matching entries")
	cmd.Flags().BoolVar(&o.Total, "total", false, "also report the total match count ignoring paging")
}

// build assembles the query. The returned pointer receives the total count
// when --total is set.
func (o *QueryOptions) build(table string) (*expr.Query, *int64, error) {
	q := expr.From(table)
	criteria, err := parseWhere(o.Where)
	if err != nil {
		return nil, nil, err
	}
	if criteria != nil {
		q.Where(criteria)
	}

	if o.Count && len(o.Select) > 0 {
		return nil, nil, NewExitError(ExitCommandError, "--count and --select are exclusive")
	}
	if o.Count {
		q.Select(expr.Count())
	} else if len(o.Select) > 0 {
		refs := make([]expr.Reference, len(o.Select))
		for i, name := range o.Select {
			refs[i] = expr.Ref(name)
		}
		q.Select(refs...)
	}
	for _, link := range o.Expand {
		q.Expand(link)
	}
	for _, term := range o.OrderBy {
		fields := strings.Fields(term)
		switch {
		case len(fields) == 1:
			q.OrderBy(fields[0], expr.Ascending)
		case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
			q.OrderBy(fields[0], expr.Descending)
		case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
			q.OrderBy(fields[0], expr.Ascending)
		default:
			return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --orderby term %q", term))
		}
	}
	if o.Skip >= 0 {
		q.Skip(o.Skip)
	}
	if o.Top >= 0 {
		q.Take(o.Top)
	}

	var total *int64
	if o.Total {
		total = new(int64)
		q.WithTotalCount(func(n int64) { *total = n })
	}
	return q, total, nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a query with projection, ordering and paging",
		Long: `Run a query. Clauses the service cannot carry are reported as
unprocessed instead of failing the query.

Examples:
  odapt query Products --where "Discontinued eq false" --orderby "UnitPrice desc" --skip 1 --top 2 --total
  odapt query Products --where "Discontinued eq true" --count
  odapt query Orders --select OrderID,ShipCity --expand Customer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, total, err := opts.build(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, unprocessed, err := s.adapter.RunQuery(cmd.Context(), q)
			if err != nil {
				return s.out.Fail("query", err)
			}
			if rows == nil {
				rows = []*ir.Record{}
			}
			result := QueryResult{Rows: rows, Total: total, Unprocessed: clauseNames(unprocessed)}

			if s.out.Format == "json" {
				return s.out.Success(result)
			}
			if err := s.out.Records(rows); err != nil {
				return err
			}
			if total != nil {
				fmt.Fprintf(s.out.Writer, "total: %d\n", *total)
			}
			for _, name := range result.Unprocessed {
				fmt.Fprintf(s.out.Writer, "unprocessed: %s\n", name)
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

// clauseNames names clauses for reports ("Where", "Distinct").
func clauseNames(clauses []expr.Clause) []string {
	names := make([]string, len(clauses))
	for i, c := range clauses {
		names[i] = strings.TrimPrefix(fmt.Sprintf("%T", c), "expr.")
	}
	return names
}
