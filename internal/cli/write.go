package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// WriteOptions holds flags for the insert, update and delete commands.
type WriteOptions struct {
	*RootOptions
	Data   string
	Where  string
	Result bool
}

// WriteResult is the JSON payload of update and delete.
type WriteResult struct {
	Affected int `json:"affected"`
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert an entry",
		Long: `Insert an entry. --data is a JSON object; fields that map to no
column are sent as given. With --result the stored entry is printed.

Examples:
  odapt insert Categories --data '{"CategoryID":9,"CategoryName":"Seafood"}' --result
  odapt insert Transport --data '{"__resourcetype":"Ships","TransportID":3,"ShipName":"Endurance"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(opts.Data)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.adapter.Insert(cmd.Context(), args[0], data, opts.Result)
			if err != nil {
				return s.out.Fail("insert", err)
			}
			switch {
			case s.out.Format == "json":
				return s.out.Success(rec)
			case rec != nil:
				return s.out.Success(rec.String())
			}
			return s.out.Success("inserted")
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "entry as a JSON object")
	cmd.Flags().BoolVar(&opts.Result, "result", false, "print the stored entry")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <table>",
		Short: "Update entries matching criteria",
		Long: `Update entries matching criteria. Criteria naming every key column
update one entry by key; other criteria update by filter. Without --where
every entry is updated.

Examples:
  odapt update Products --where "ProductID eq 1" --data '{"UnitPrice":25.0}'
  odapt update Products --where "Discontinued eq true" --data '{"UnitsInStock":0}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Data == "" {
				return NewExitError(ExitCommandError, "--data is required")
			}
			data, err := parseData(opts.Data)
			if err != nil {
				return err
			}
			criteria, err := parseWhere(opts.Where)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.adapter.Update(cmd.Context(), args[0], data, criteria)
			if err != nil {
				return s.out.Fail("update", err)
			}
			return reportAffected(s.out, n)
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "changed fields as a JSON object")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "filter criteria")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete entries matching criteria",
		Long: `Delete entries matching criteria. Key and filter selection work as
for update.

Examples:
  odapt delete OrderDetails --where "OrderID eq 10248 and ProductID eq 42"
  odapt delete Products --where "Discontinued eq true"`,
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

			n, err := s.adapter.Delete(cmd.Context(), args[0], criteria)
			if err != nil {
				return s.out.Fail("delete", err)
			}
			return reportAffected(s.out, n)
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "filter criteria")
	return cmd
}

func reportAffected(out *OutputFormatter, n int) error {
	if out.Format == "json" {
		return out.Success(WriteResult{Affected: n})
	}
	return out.Success(fmt.Sprintf("%d affected", n))
}
