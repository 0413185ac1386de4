package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/source"
	"github.com/cascadedb/cascade/internal/source/inmem"
	"github.com/cascadedb/cascade/internal/sql/types"
)

func mustTable(t *testing.T, schema *catalog.TableSchema) *catalog.Table {
	t.Helper()
	table, err := catalog.NewMemoryCatalog().CreateTable(schema)
	require.NoError(t, err)
	return table
}

func flatTable(t *testing.T) *catalog.Table {
	return mustTable(t, &catalog.TableSchema{
		TableName: "orders",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "name", DataType: types.Text},
			{Name: "amount", DataType: types.Double},
		},
	})
}

func projectColumns(scan *LogicalScan, names ...string) *LogicalProject {
	origin := scan.Table.ProducedRowType()
	exprs := make([]Expression, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		exprs[i] = colRef(name, origin)
		cols[i] = Column{Name: name, DataType: origin.Fields[origin.FieldIndex(name)].Type}
	}
	return NewLogicalProject(scan, exprs, names, &Schema{Columns: cols})
}

func TestPushProjectIntoScanBasic(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "amount", "id")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newProject, ok := result.(*LogicalProject)
	require.True(t, ok, "reordering projection must survive")
	newScan, ok := newProject.Children()[0].(*LogicalScan)
	require.True(t, ok)

	// scan now produces only the referenced columns, in reference order
	assert.Equal(t, []string{"amount", "id"}, schemaNames(newScan.Schema()))
	require.Len(t, newScan.AbilitySpecs, 1)
	spec := newScan.AbilitySpecs[0].(*source.ProjectPushDownSpec)
	assert.Equal(t, [][]int{{2}, {0}}, spec.ProjectedPaths)

	// the source copy received the projection; the original did not
	assert.True(t, newScan.Source.(*inmem.Source).ProjectionApplied())
	assert.False(t, scan.Source.(*inmem.Source).ProjectionApplied())
	assert.Equal(t, []string{"id", "name", "amount"}, schemaNames(scan.Schema()))
}

func schemaNames(s *Schema) []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func TestIdempotence(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "name")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	// the rewritten scan carries a ProjectPushDownSpec, so the rule must
	// never fire on it again
	newScan := result.(*LogicalScan)
	assert.True(t, newScan.HasProjectionPushDown())
	assert.False(t, rule.matches(newScan))

	again, applied, err := rule.Apply(result)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, planFingerprint(result), planFingerprint(again))
}

func TestNoOpGuardFullColumnSet(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "id", "name", "amount")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	assert.False(t, applied, "requesting every column of a non-nested source is a no-op")
	assert.Same(t, project, result)
	assert.False(t, scan.Source.(*inmem.Source).ProjectionApplied())
}

func TestPositionBijection(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "users",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "addr", DataType: types.NewRow(
				types.RowField{Name: "city", Type: types.Text},
				types.RowField{Name: "zip", Type: types.Text},
			)},
			{Name: "name", DataType: types.Text},
		},
	})
	scan := NewLogicalScan(table, "", inmem.New("users", true))
	origin := table.ProducedRowType()
	exprs := []Expression{
		fieldRef(origin, "addr", "zip"),
		colRef("name", origin),
		fieldRef(origin, "addr", "city"),
	}
	project := NewLogicalProject(scan, exprs, []string{"zip", "name", "city"}, &Schema{Columns: []Column{
		{Name: "zip", DataType: types.Text},
		{Name: "name", DataType: types.Text},
		{Name: "city", DataType: types.Text},
	}})

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newScan := result.(*LogicalProject).Children()[0].(*LogicalScan)
	spec := newScan.AbilitySpecs[0].(*source.ProjectPushDownSpec)

	// exactly k leaves with positions 0..k-1, no duplicates
	require.Len(t, spec.ProjectedPaths, 3)
	assert.Len(t, newScan.Schema().Columns, 3)

	seen := make(map[int]bool)
	for _, expr := range result.(*LogicalProject).Projections {
		ref := expr.(*ColumnRef)
		assert.False(t, seen[ref.Index], "duplicate output position %d", ref.Index)
		seen[ref.Index] = true
		assert.GreaterOrEqual(t, ref.Index, 0)
		assert.Less(t, ref.Index, 3)
	}
}

func metadataTable(t *testing.T) *catalog.Table {
	return mustTable(t, &catalog.TableSchema{
		TableName: "events",
		Columns: []catalog.ColumnDef{
			{Name: "x", DataType: types.Integer},
			{Name: "y", DataType: types.Text},
			{Name: "rowtime", DataType: types.Timestamp, Kind: catalog.MetadataColumn},
			{Name: "partition", DataType: types.Integer, Kind: catalog.MetadataColumn},
		},
	})
}

func TestMetadataOrdering(t *testing.T) {
	table := metadataTable(t)
	src := inmem.NewWithMetadata("events", false, []string{"rowtime", "partition"})
	scan := NewLogicalScan(table, "", src)

	// metadata referenced before the physical column and in reverse
	// declaration order
	project := projectColumns(scan, "partition", "rowtime", "x")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newScan := result.(*LogicalProject).Children()[0].(*LogicalScan)

	// physical leaves come first; metadata keeps declaration order
	assert.Equal(t, []string{"x", "rowtime", "partition"}, schemaNames(newScan.Schema()))

	require.Len(t, newScan.AbilitySpecs, 2)
	push := newScan.AbilitySpecs[0].(*source.ProjectPushDownSpec)
	assert.Equal(t, [][]int{{0}}, push.ProjectedPaths, "metadata never joins physical index-paths")
	read := newScan.AbilitySpecs[1].(*source.ReadingMetadataSpec)
	assert.Equal(t, []string{"rowtime", "partition"}, read.MetadataKeys)

	// projections were re-pointed at the merged layout
	refs := result.(*LogicalProject).Projections
	assert.Equal(t, 2, refs[0].(*ColumnRef).Index) // partition
	assert.Equal(t, 1, refs[1].(*ColumnRef).Index) // rowtime
	assert.Equal(t, 0, refs[2].(*ColumnRef).Index) // x
}

func TestMetadataUnreferencedKeysDropped(t *testing.T) {
	table := metadataTable(t)
	src := inmem.NewWithMetadata("events", false, []string{"rowtime", "partition"})
	scan := NewLogicalScan(table, "", src)
	project := projectColumns(scan, "y", "rowtime")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newScan := result.(*LogicalScan)
	assert.Equal(t, []string{"y", "rowtime"}, schemaNames(newScan.Schema()))
	read := newScan.AbilitySpecs[1].(*source.ReadingMetadataSpec)
	assert.Equal(t, []string{"rowtime"}, read.MetadataKeys)
	assert.Equal(t, []string{"rowtime"}, newScan.Source.(*inmem.MetadataSource).RequestedKeys)
}

func TestPrimaryKeyForcing(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "accounts",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "name", DataType: types.Text},
			{Name: "balance", DataType: types.Double},
		},
		Constraints:   []catalog.Constraint{catalog.PrimaryKeyConstraint{Columns: []string{"id"}}},
		ChangelogMode: catalog.UpsertMode,
	})
	scan := NewLogicalScan(table, "", inmem.New("accounts", false))
	project := projectColumns(scan, "name")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newProject := result.(*LogicalProject)
	newScan := newProject.Children()[0].(*LogicalScan)

	// id was never referenced but the upsert source keeps it
	assert.Equal(t, []string{"name", "id"}, schemaNames(newScan.Schema()))

	// the projection itself still only returns name
	require.Len(t, newProject.Projections, 1)
	assert.Equal(t, 0, newProject.Projections[0].(*ColumnRef).Index)
}

func TestPrimaryKeyForcingViaDuplicateChanges(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "ledger",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "delta", DataType: types.Double},
		},
		Constraints:   []catalog.Constraint{catalog.PrimaryKeyConstraint{Columns: []string{"id"}}},
		ChangelogMode: catalog.RetractMode,
	})
	scan := NewLogicalScan(table, "", inmem.New("ledger", false))
	project := projectColumns(scan, "delta")

	rule := &PushProjectIntoScan{Changelog: catalog.ChangelogOptions{SourceEventsDuplicate: true}}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newScan := result.(*LogicalProject).Children()[0].(*LogicalScan)
	assert.Equal(t, []string{"delta", "id"}, schemaNames(newScan.Schema()))
}

func TestTrivialProjectionElision(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "id", "name")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	// the projection became the identity over the new scan and is gone
	newScan, ok := result.(*LogicalScan)
	require.True(t, ok, "expected bare scan, got %T", result)
	assert.Equal(t, []string{"id", "name"}, schemaNames(newScan.Schema()))
}

func TestNestedFallback(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "users",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "addr", DataType: types.NewRow(
				types.RowField{Name: "city", Type: types.Text},
				types.RowField{Name: "zip", Type: types.Text},
			)},
		},
	})
	scan := NewLogicalScan(table, "", inmem.New("users", false))
	origin := table.ProducedRowType()
	exprs := []Expression{fieldRef(origin, "addr", "city")}
	project := NewLogicalProject(scan, exprs, []string{"city"},
		&Schema{Columns: []Column{{Name: "city", DataType: types.Text}}})

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newProject := result.(*LogicalProject)
	newScan := newProject.Children()[0].(*LogicalScan)

	// the whole struct column is pushed, not a sub-path
	spec := newScan.AbilitySpecs[0].(*source.ProjectPushDownSpec)
	assert.Equal(t, [][]int{{1}}, spec.ProjectedPaths)
	assert.Equal(t, []string{"addr"}, schemaNames(newScan.Schema()))

	// the projection still extracts the field above the scan
	access, ok := newProject.Projections[0].(*FieldAccess)
	require.True(t, ok)
	assert.Equal(t, "city", access.FieldName)
}

func TestNestedProjectionPushesSubPath(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "users",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "addr", DataType: types.NewRow(
				types.RowField{Name: "city", Type: types.Text},
				types.RowField{Name: "zip", Type: types.Text},
			)},
		},
	})
	scan := NewLogicalScan(table, "", inmem.New("users", true))
	origin := table.ProducedRowType()
	exprs := []Expression{fieldRef(origin, "addr", "city")}
	project := NewLogicalProject(scan, exprs, []string{"city"},
		&Schema{Columns: []Column{{Name: "city", DataType: types.Text}}})

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	// nested-capable source receives the sub-path and the projection
	// collapses to the identity
	newScan, ok := result.(*LogicalScan)
	require.True(t, ok, "expected bare scan, got %T", result)
	spec := newScan.AbilitySpecs[0].(*source.ProjectPushDownSpec)
	assert.Equal(t, [][]int{{1, 0}}, spec.ProjectedPaths)
	assert.Equal(t, []string{"addr_city"}, schemaNames(newScan.Schema()))
}

func TestDigestLiterals(t *testing.T) {
	table := mustTable(t, &catalog.TableSchema{
		TableName: "events",
		Columns: []catalog.ColumnDef{
			{Name: "x", DataType: types.Integer},
			{Name: "y", DataType: types.Text},
			{Name: "z", DataType: types.Double},
			{Name: "rowtime", DataType: types.Timestamp, Kind: catalog.MetadataColumn},
		},
	})
	src := inmem.NewWithMetadata("events", false, []string{"rowtime"})
	scan := NewLogicalScan(table, "", src)
	project := projectColumns(scan, "x", "y", "rowtime")

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(project)
	require.NoError(t, err)
	require.True(t, applied)

	newScan, ok := result.(*LogicalScan)
	require.True(t, ok)
	assert.Equal(t, []string{"project=[x, y, rowtime]", "metadata=[rowtime]"}, newScan.ExtraDigests)
	assert.Equal(t, "Scan(events, project=[x, y, rowtime], metadata=[rowtime])", newScan.String())
}

func TestUnknownPrimaryKeyColumnAbortsPlanning(t *testing.T) {
	// assemble a table whose constraint bypassed catalog validation to
	// simulate inconsistent metadata
	table := flatTable(t)
	table.Constraints = append(table.Constraints, catalog.PrimaryKeyConstraint{Columns: []string{"uid"}})
	table.ChangelogMode = catalog.UpsertMode

	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "name")

	rule := &PushProjectIntoScan{}
	_, _, err := rule.Apply(project)
	require.Error(t, err)
	assert.True(t, errors.IsError(err, errors.UndefinedColumn))
	assert.Contains(t, err.Error(), "uid")
}

func TestRuleSkipsNonCapableSource(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", bareSource{})
	project := projectColumns(scan, "name")

	rule := &PushProjectIntoScan{}
	_, applied, err := rule.Apply(project)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRuleRecursesThroughOperators(t *testing.T) {
	table := flatTable(t)
	scan := NewLogicalScan(table, "", inmem.New("orders", false))
	project := projectColumns(scan, "name")
	limit := NewLogicalLimit(project, 10, 0)

	rule := &PushProjectIntoScan{}
	result, applied, err := rule.Apply(limit)
	require.NoError(t, err)
	require.True(t, applied)

	newLimit, ok := result.(*LogicalLimit)
	require.True(t, ok)
	newScan, ok := newLimit.Children()[0].(*LogicalScan)
	require.True(t, ok, "identity projection under the limit is elided")
	assert.Equal(t, []string{"name"}, schemaNames(newScan.Schema()))

	// the original limit subtree is untouched
	assert.Same(t, project, limit.Children()[0])
}

// bareSource implements source.Source with no capabilities.
type bareSource struct{}

func (bareSource) Name() string          { return "bare" }
func (b bareSource) Copy() source.Source { return b }
