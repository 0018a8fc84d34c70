package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>...",
		Short: "Get one entry by key",
		Long: `Get one entry by key. Key values are given in key column order.

Values are read as integers, decimals, true, false, null or 'quoted'
strings; anything else is a bare string.

Exit codes:
  0 - Entry found (or not found with ignore_resource_not_found)
  1 - Lookup failed
  2 - Command error

Examples:
  odapt get Products 1
  odapt get Customers ALFKI
  odapt get OrderDetails 10248 11 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.adapter.Get(cmd.Context(), args[0], parseLiterals(args[1:])...)
			if err != nil {
				return s.out.Fail("get", err)
			}
			if rec == nil {
				if s.out.Format == "json" {
					return s.out.Success(nil)
				}
				fmt.Fprintln(s.out.Writer, "(no entry)")
				return nil
			}
			if s.out.Format == "json" {
				return s.out.Success(rec)
			}
			return s.out.Success(rec.String())
		},
	}
}
