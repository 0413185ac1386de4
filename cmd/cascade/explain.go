package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/source"
	"github.com/cascadedb/cascade/internal/source/inmem"
	"github.com/cascadedb/cascade/internal/sql/planner"
	"github.com/cascadedb/cascade/internal/sql/types"
)

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var nested bool

	cmd := &cobra.Command{
		Use:   "explain TABLE [COLUMN...]",
		Short: "Plan a projection over a table and show the optimized plan",
		Long: `explain builds a projection of the given columns over a table scan,
runs the optimizer and prints the resulting plan. Columns may be nested
paths such as addr.geo.lat; with no columns, the whole row is selected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeCatalog, err := openCatalog(opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeCatalog() }()

			tbl, err := cat.GetTable(schemaFlag(cmd), args[0])
			if err != nil {
				return err
			}

			plan, err := buildPlan(tbl, args[1:], nested)
			if err != nil {
				return err
			}

			opt := planner.NewOptimizer(catalog.ChangelogOptions{
				SourceEventsDuplicate: opts.cfg.Optimizer.SourceEventsDuplicate,
			})
			for _, rule := range opts.cfg.Optimizer.DisabledRules {
				opt.DisableRule(rule)
			}

			optimized, err := opt.Optimize(plan)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, planner.Explain(optimized))
			if scan := leafScan(optimized); scan != nil {
				fmt.Fprintln(out)
				renderScan(cmd, scan)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nested, "nested", false, "source supports nested projection pushdown")
	return cmd
}

// buildPlan assembles Project(Scan(table)) for the requested columns over
// an in-memory source bound to the table.
func buildPlan(tbl *catalog.Table, columns []string, nested bool) (planner.LogicalPlan, error) {
	var src source.Source
	if keys := tbl.MetadataKeys(); len(keys) > 0 {
		src = inmem.NewWithMetadata(tbl.TableName, nested, keys)
	} else {
		src = inmem.New(tbl.TableName, nested)
	}

	scan := planner.NewLogicalScan(tbl, "", src)
	if len(columns) == 0 {
		return scan, nil
	}

	origin := tbl.ProducedRowType()
	exprs := make([]planner.Expression, len(columns))
	aliases := make([]string, len(columns))
	cols := make([]planner.Column, len(columns))
	for i, col := range columns {
		expr, err := resolvePath(origin, tbl.TableName, col)
		if err != nil {
			return nil, err
		}
		alias := strings.ReplaceAll(col, ".", "_")
		exprs[i] = expr
		aliases[i] = alias
		cols[i] = planner.Column{Name: alias, DataType: expr.DataType()}
	}
	return planner.NewLogicalProject(scan, exprs, aliases, &planner.Schema{Columns: cols}), nil
}

// resolvePath turns a dotted column path into a ColumnRef or a chain of
// FieldAccess expressions.
func resolvePath(origin types.Row, tableName, path string) (planner.Expression, error) {
	if path == "*" {
		return &planner.Star{}, nil
	}

	parts := strings.Split(path, ".")
	idx := origin.FieldIndex(parts[0])
	if idx < 0 {
		return nil, errors.UndefinedColumnError(parts[0], tableName)
	}

	var expr planner.Expression = &planner.ColumnRef{
		ColumnName: parts[0],
		Index:      idx,
		ColumnType: origin.Fields[idx].Type,
	}
	for _, part := range parts[1:] {
		row, ok := expr.DataType().(types.Row)
		if !ok {
			return nil, errors.Newf(errors.InvalidParameterValue,
				"%q is not a struct column; cannot select %q", expr.String(), part)
		}
		fieldIdx := row.FieldIndex(part)
		if fieldIdx < 0 {
			return nil, errors.UndefinedColumnError(part, tableName).
				WithDetailf("struct %q has no field %q", expr.String(), part)
		}
		expr = &planner.FieldAccess{
			Expr:       expr,
			FieldName:  part,
			FieldIndex: fieldIdx,
			Type:       row.Fields[fieldIdx].Type,
		}
	}
	return expr, nil
}

// leafScan returns the scan at the bottom of a single-child plan chain.
func leafScan(plan planner.Plan) *planner.LogicalScan {
	for plan != nil {
		if scan, ok := plan.(*planner.LogicalScan); ok {
			return scan
		}
		children := plan.Children()
		if len(children) != 1 {
			return nil
		}
		plan = children[0]
	}
	return nil
}

// renderScan prints the scan's produced columns and applied pushdowns.
func renderScan(cmd *cobra.Command, scan *planner.LogicalScan) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable"})
	for i, col := range scan.Schema().Columns {
		t.AppendRow(table.Row{i, col.Name, col.DataType.Name(), col.Nullable})
	}
	t.Render()

	for _, spec := range scan.AbilitySpecs {
		fmt.Fprintf(cmd.OutOrStdout(), "pushed: %s\n", spec.Digest())
	}
}
