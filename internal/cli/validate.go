package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Protocol string `json:"protocol"`
	Tables   int    `json:"tables"`
	Derived  int    `json:"derived"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and schema",
		Long: `Validate the configuration file and the schema it points to
without opening the service.

Exit codes:
  0 - Configuration and schema are valid
  2 - Configuration or schema error

Examples:
  odapt validate
  odapt validate --config ./northwind.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sch, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			result := ValidationResult{Valid: true, Protocol: cfg.Protocol}
			for _, t := range sch.Tables() {
				result.Tables++
				result.Derived += len(t.Derived)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if out.Format == "json" {
				return out.Success(result)
			}
			return out.Success(fmt.Sprintf("✓ %s: %d tables, %d derived", cfg.Protocol, result.Tables, result.Derived))
		},
	}
}
