package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/source/inmem"
	"github.com/cascadedb/cascade/internal/sql/types"
)

func TestOptimizePushesThroughFilterIntoSource(t *testing.T) {
	table := flatTable(t)
	origin := table.ProducedRowType()
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	filter := amountFilter(scan, origin)
	project := NewLogicalProject(filter, []Expression{colRef("name", origin)},
		[]string{"name"}, &Schema{Columns: []Column{{Name: "name", DataType: types.Text}}})

	opt := NewOptimizer(catalog.ChangelogOptions{})
	result, err := opt.Optimize(project)
	require.NoError(t, err)

	// the narrowing projection was inserted below the filter, then
	// absorbed into the source; only project, filter and scan remain
	newProject, ok := result.(*LogicalProject)
	require.True(t, ok)
	newFilter, ok := newProject.Children()[0].(*LogicalFilter)
	require.True(t, ok)
	newScan, ok := newFilter.Children()[0].(*LogicalScan)
	require.True(t, ok)

	assert.Equal(t, []string{"name", "amount"}, schemaNames(newScan.Schema()))
	assert.Equal(t, []string{"project=[name, amount]"}, newScan.ExtraDigests)
	assert.True(t, newScan.Source.(*inmem.Source).ProjectionApplied())
}

func TestOptimizeConverges(t *testing.T) {
	table := flatTable(t)
	origin := table.ProducedRowType()
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	filter := amountFilter(scan, origin)
	project := NewLogicalProject(filter, []Expression{colRef("name", origin)},
		[]string{"name"}, &Schema{Columns: []Column{{Name: "name", DataType: types.Text}}})

	opt := NewOptimizer(catalog.ChangelogOptions{})
	once, err := opt.Optimize(project)
	require.NoError(t, err)

	twice, err := opt.Optimize(once)
	require.NoError(t, err)
	assert.Equal(t, planFingerprint(once), planFingerprint(twice))
}

func TestOptimizeDisabledRule(t *testing.T) {
	table := flatTable(t)
	origin := table.ProducedRowType()
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	filter := amountFilter(scan, origin)
	project := NewLogicalProject(filter, []Expression{colRef("name", origin)},
		[]string{"name"}, &Schema{Columns: []Column{{Name: "name", DataType: types.Text}}})

	opt := NewOptimizer(catalog.ChangelogOptions{})
	opt.DisableRule("push_project_into_scan")
	result, err := opt.Optimize(project)
	require.NoError(t, err)

	// the narrowing projection stays above the scan and no spec reaches
	// the source
	newFilter := result.(*LogicalProject).Children()[0].(*LogicalFilter)
	inner, ok := newFilter.Children()[0].(*LogicalProject)
	require.True(t, ok)
	innerScan := inner.Children()[0].(*LogicalScan)
	assert.Empty(t, innerScan.AbilitySpecs)
	assert.False(t, innerScan.Source.(*inmem.Source).ProjectionApplied())
}

func TestOptimizeBareScanUnchanged(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))

	opt := NewOptimizer(catalog.ChangelogOptions{})
	result, err := opt.Optimize(scan)
	require.NoError(t, err)
	assert.Equal(t, planFingerprint(scan), planFingerprint(result))
}

func TestOptimizeRuleErrorAborts(t *testing.T) {
	table := flatTable(t)
	table.Constraints = append(table.Constraints, catalog.PrimaryKeyConstraint{Columns: []string{"uid"}})
	table.ChangelogMode = catalog.UpsertMode

	origin := table.ProducedRowType()
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := NewLogicalProject(scan, []Expression{colRef("name", origin)},
		[]string{"name"}, &Schema{Columns: []Column{{Name: "name", DataType: types.Text}}})

	opt := NewOptimizer(catalog.ChangelogOptions{})
	_, err := opt.Optimize(project)
	require.Error(t, err)
	assert.True(t, errors.IsError(err, errors.UndefinedColumn))
}
