package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/odapt/internal/command"
	"github.com/roach88/odapt/internal/filter"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	QueryOptions
	Key []string
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Command     string   `json:"command"`
	Unprocessed []string `json:"unprocessed,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "explain <table>",
		Short: "Show the protocol command without sending it",
		Long: `Show the protocol command a get or query would send. Only the
configuration and schema are read; the service is not contacted.

Examples:
  odapt explain OrderDetails --key 10248 --key 11
  odapt explain Categories.Products --where "CategoryID eq 1" --orderby "ProductName desc" --skip 1 --top 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sch, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			builder := command.NewBuilder(sch, filter.Converter{IncludeResourceType: cfg.IncludeResourceTypeInEntryProperties})

			var built *command.QueryCommand
			if len(opts.Key) > 0 {
				built, err = builder.FromKey(args[0], parseLiterals(opts.Key)...)
			} else {
				q, _, qerr := opts.build(args[0])
				if qerr != nil {
					return qerr
				}
				built, err = builder.FromQuery(q)
			}
			if err != nil {
				return out.Fail("explain", err)
			}

			if out.Format == "json" {
				return out.Success(ExplainResult{Command: built.String(), Unprocessed: clauseNames(built.UnprocessedClauses)})
			}
			return out.Success(built.String())
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Key, "key", nil, "key value, in key column order (repeatable)")
	return cmd
}
