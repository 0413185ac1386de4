package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables the configured catalog knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, closeCatalog, err := openCatalog(opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeCatalog() }()

			tables, err := cat.ListTables(schemaFlag(cmd))
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Table", "Columns", "Metadata", "Mode", "Primary Key"})
			for _, tbl := range tables {
				var names []string
				for _, col := range tbl.Columns {
					names = append(names, col.Name)
				}
				t.AppendRow(table.Row{
					tbl.TableName,
					strings.Join(names, ", "),
					strings.Join(tbl.MetadataKeys(), ", "),
					tbl.ChangelogMode.String(),
					strings.Join(tbl.PrimaryKey(), ", "),
				})
			}
			t.Render()
			return nil
		},
	}
}
