package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/odapt/internal/schema"
)

// TableInfo describes one table for the schema command.
type TableInfo struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Key     []string     `json:"key"`
	Columns []ColumnInfo `json:"columns"`
	Links   []string     `json:"links,omitempty"`
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [table]",
		Short: "Show tables of the configured schema",
		Long: `Show the tables of the configured schema. With a table name, only
that table is shown; the name is resolved the way operations resolve it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sch, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			tables := sch.Tables()
			if len(args) == 1 {
				t, err := sch.FindTable(args[0])
				if err != nil {
					return out.Fail("schema", err)
				}
				tables = []*schema.Table{t}
			}

			infos := make([]TableInfo, len(tables))
			for i, t := range tables {
				infos[i] = describeTable(t)
			}
			if out.Format == "json" {
				return out.Success(infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out.Writer, "%s (%s) key=%s\n", info.Name, info.Path, strings.Join(info.Key, ","))
				for _, c := range info.Columns {
					fmt.Fprintf(out.Writer, "  %s %s\n", c.Name, c.Type)
				}
				for _, l := range info.Links {
					fmt.Fprintf(out.Writer, "  -> %s\n", l)
				}
			}
			return nil
		},
	}
}

func describeTable(t *schema.Table) TableInfo {
	info := TableInfo{
		Name: t.Name,
		Path: schema.PathOf(t),
		Key:  t.KeyNames(),
	}
	for _, c := range t.Columns {
		info.Columns = append(info.Columns, ColumnInfo{Name: c.Name, Type: string(c.Type)})
	}
	for _, l := range t.Links {
		info.Links = append(info.Links, l.Name)
	}
	return info
}
