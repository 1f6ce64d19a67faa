package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and refresh cached dataset schemas",
		Long: `Schemas are read from the cache, or fetched from the warehouse and
cached on first use. The planner sees exactly what these commands show.`,
	}

	cmd.AddCommand(newSchemaListCommand())
	cmd.AddCommand(newSchemaShowCommand())
	cmd.AddCommand(newSchemaRefreshCommand())

	return cmd
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables of every configured dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newCommandApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Dataset", "Table", "Columns", "Rows", "Description"})
			for _, id := range app.Datasets {
				set, err := app.Schemas.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("schema for %s: %w", id, err)
				}
				for _, ts := range set.Tables() {
					t.AppendRow(table.Row{id.String(), ts.Name, len(ts.Columns), ts.RowCount, ts.Description})
				}
			}
			t.Render()
			return nil
		},
	}
}

func newSchemaShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show <dataset>",
		Short:   "Show the columns of every table in a dataset",
		Example: `  dataexplorer schema show local:main`,
		Args:    cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			cfg, err := getConfig(cmd)
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return cfg.Datasets, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseDatasetID(args[0])
			if err != nil {
				return err
			}
			app, err := newCommandApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			set, err := app.Schemas.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("schema for %s: %w", id, err)
			}
			renderSchema(cmd.OutOrStdout(), set)
			return nil
		},
	}
}

func newSchemaRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [dataset...]",
		Short: "Re-fetch schemas from the warehouse and update the cache",
		Long:  `Refresh the given datasets, or every configured dataset when none are named.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCommandApp(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ids := app.Datasets
			if len(args) > 0 {
				ids = ids[:0:0]
				for _, a := range args {
					id, err := core.ParseDatasetID(a)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
			}

			for _, id := range ids {
				set, err := app.Schemas.Refresh(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("refresh %s: %w", id, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tables\n", id, set.Len())
			}
			return nil
		},
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSchema(w io.Writer, set core.SchemaSet) {
	if set.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 tables)")
		return
	}
	for _, ts := range set.Tables() {
		_, _ = fmt.Fprintf(w, "%s (%d rows)\n", ts.Name, ts.RowCount)
		if ts.Description != "" {
			_, _ = fmt.Fprintln(w, ts.Description)
		}
		t := newTable(w)
		t.AppendHeader(table.Row{"Column", "Type", "Description"})
		for _, c := range ts.Columns {
			t.AppendRow(table.Row{c.Name, c.Type, c.Description})
		}
		t.Render()
		_, _ = fmt.Fprintln(w)
	}
}
