package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Where string
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <table>",
		Short: "Find entries matching criteria",
		Long: `Find entries matching filter criteria. Without --where every entry is
returned. Criteria naming every key column are sent as a key lookup.

Examples:
  odapt find Products --where "CategoryID eq 1 and UnitPrice gt 18.5"
  odapt find Customers.Orders --where "ShipCity ne 'Reims'"
  odapt find Transport --where "__resourcetype eq 'Ships'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseWhere(opts.Where)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.adapter.Find(cmd.Context(), args[0], criteria)
			if err != nil {
				return s.out.Fail("find", err)
			}
			return s.out.Records(records)
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "filter criteria")
	return cmd
}

// parseWhere parses --where text. Empty text means no criteria.
func parseWhere(text string) (expr.Expression, error) {
	if text == "" {
		return nil, nil
	}
	criteria, err := filter.Parse(text)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --where", err)
	}
	return criteria, nil
}
