package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// userRow is id BIGINT, addr ROW(city TEXT, geo ROW(lat DOUBLE, lon DOUBLE)), name TEXT
func userRow() types.Row {
	return types.NewRow(
		types.RowField{Name: "id", Type: types.BigInt},
		types.RowField{Name: "addr", Type: types.NewRow(
			types.RowField{Name: "city", Type: types.Text},
			types.RowField{Name: "geo", Type: types.NewRow(
				types.RowField{Name: "lat", Type: types.Double},
				types.RowField{Name: "lon", Type: types.Double},
			)},
		)},
		types.RowField{Name: "name", Type: types.Text},
	)
}

func colRef(name string, origin types.Row) *ColumnRef {
	idx := origin.FieldIndex(name)
	return &ColumnRef{ColumnName: name, Index: idx, ColumnType: origin.Fields[idx].Type}
}

// fieldRef builds addr.geo.lat style access chains against origin.
func fieldRef(origin types.Row, names ...string) Expression {
	var expr Expression = colRef(names[0], origin)
	current := origin.Fields[origin.FieldIndex(names[0])].Type
	for _, name := range names[1:] {
		row := current.(types.Row)
		idx := row.FieldIndex(name)
		current = row.Fields[idx].Type
		expr = &FieldAccess{Expr: expr, FieldName: name, FieldIndex: idx, Type: current}
	}
	return expr
}

func TestBuildNestedSchemaPaths(t *testing.T) {
	origin := userRow()

	tests := []struct {
		name      string
		exprs     []Expression
		wantPaths [][]int
	}{
		{
			name:      "whole columns in reference order",
			exprs:     []Expression{colRef("name", origin), colRef("id", origin)},
			wantPaths: [][]int{{2}, {0}},
		},
		{
			name:      "nested leaf",
			exprs:     []Expression{fieldRef(origin, "addr", "city")},
			wantPaths: [][]int{{1, 0}},
		},
		{
			name:      "deeply nested leaf",
			exprs:     []Expression{fieldRef(origin, "addr", "geo", "lat"), colRef("id", origin)},
			wantPaths: [][]int{{1, 1, 0}, {0}},
		},
		{
			name:      "duplicate references share a node",
			exprs:     []Expression{colRef("id", origin), colRef("id", origin), fieldRef(origin, "addr", "city"), fieldRef(origin, "addr", "city")},
			wantPaths: [][]int{{0}, {1, 0}},
		},
		{
			name:      "whole column subsumes nested reference",
			exprs:     []Expression{colRef("addr", origin), fieldRef(origin, "addr", "geo", "lat")},
			wantPaths: [][]int{{1}},
		},
		{
			name:      "nested references collapse once whole column arrives",
			exprs:     []Expression{fieldRef(origin, "addr", "city"), fieldRef(origin, "addr", "geo", "lon"), colRef("addr", origin)},
			wantPaths: [][]int{{1}},
		},
		{
			name: "references inside compound expressions",
			exprs: []Expression{&BinaryOp{
				Left:     fieldRef(origin, "addr", "geo", "lon"),
				Right:    &Literal{Value: "0", Type: types.Double},
				Operator: OpGreater,
				Type:     types.Boolean,
			}},
			wantPaths: [][]int{{1, 1, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := BuildNestedSchema(tt.exprs, origin)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaths, tree.ToIndexPaths())
		})
	}
}

func TestBuildNestedSchemaUnknownColumn(t *testing.T) {
	origin := userRow()
	_, err := BuildNestedSchema([]Expression{&ColumnRef{ColumnName: "ghost"}}, origin)
	require.Error(t, err)
	assert.True(t, errors.IsError(err, errors.UndefinedColumn))
}

func TestMarkTopLevelLeaves(t *testing.T) {
	origin := userRow()
	tree, err := BuildNestedSchema([]Expression{
		fieldRef(origin, "addr", "geo", "lat"),
		colRef("name", origin),
	}, origin)
	require.NoError(t, err)

	tree.MarkTopLevelLeaves()

	assert.Equal(t, [][]int{{1}, {2}}, tree.ToIndexPaths())
	for _, col := range tree.Columns() {
		assert.True(t, col.IsLeaf())
		assert.Empty(t, col.Children())
	}
}

func TestLeafPositionsAreContiguous(t *testing.T) {
	origin := userRow()
	tree, err := BuildNestedSchema([]Expression{
		fieldRef(origin, "addr", "geo", "lon"),
		fieldRef(origin, "addr", "city"),
		colRef("id", origin),
	}, origin)
	require.NoError(t, err)

	paths := tree.ToIndexPaths()
	require.Len(t, paths, 3)

	// leaves get 0..k-1 in depth-first order of the retained tree
	addr := tree.Column("addr")
	geo := addr.Children()[0]
	assert.Equal(t, "geo", geo.Name())
	assert.Equal(t, 0, geo.Children()[0].IndexOfLeafInNewSchema())
	assert.Equal(t, 1, addr.Children()[1].IndexOfLeafInNewSchema())
	assert.Equal(t, 2, tree.Column("id").IndexOfLeafInNewSchema())
}

func TestRewriteProjections(t *testing.T) {
	origin := userRow()
	exprs := []Expression{
		fieldRef(origin, "addr", "geo", "lat"),
		colRef("name", origin),
	}
	tree, err := BuildNestedSchema(exprs, origin)
	require.NoError(t, err)
	paths := tree.ToIndexPaths()
	newType, err := types.ProjectRow(origin, paths)
	require.NoError(t, err)
	require.Equal(t, []string{"addr_geo_lat", "name"}, newType.FieldNames())

	rewritten, err := RewriteProjections(exprs, tree, newType)
	require.NoError(t, err)
	require.Len(t, rewritten, 2)

	lat, ok := rewritten[0].(*ColumnRef)
	require.True(t, ok, "nested leaf becomes a flat reference")
	assert.Equal(t, 0, lat.Index)
	assert.Equal(t, "addr_geo_lat", lat.ColumnName)
	assert.True(t, lat.ColumnType.Equals(types.Double))

	name, ok := rewritten[1].(*ColumnRef)
	require.True(t, ok)
	assert.Equal(t, 1, name.Index)
}

func TestRewriteWholeColumnFallback(t *testing.T) {
	origin := userRow()
	exprs := []Expression{fieldRef(origin, "addr", "geo", "lat")}
	tree, err := BuildNestedSchema(exprs, origin)
	require.NoError(t, err)

	// source cannot prune nested fields: addr is retained whole
	tree.MarkTopLevelLeaves()
	paths := tree.ToIndexPaths()
	require.Equal(t, [][]int{{1}}, paths)
	newType, err := types.ProjectRow(origin, paths)
	require.NoError(t, err)

	rewritten, err := RewriteProjections(exprs, tree, newType)
	require.NoError(t, err)

	// the nested access is rebuilt on top of the new whole-column ref
	geoLat, ok := rewritten[0].(*FieldAccess)
	require.True(t, ok)
	assert.Equal(t, "lat", geoLat.FieldName)
	geo, ok := geoLat.Expr.(*FieldAccess)
	require.True(t, ok)
	assert.Equal(t, "geo", geo.FieldName)
	base, ok := geo.Expr.(*ColumnRef)
	require.True(t, ok)
	assert.Equal(t, 0, base.Index)
	assert.Equal(t, "addr", base.ColumnName)
}

func TestRewriteCompoundExpressions(t *testing.T) {
	origin := userRow()
	exprs := []Expression{
		&FunctionCall{
			FunctionName: "upper",
			Args:         []Expression{colRef("name", origin)},
			Type:         types.Text,
		},
	}
	tree, err := BuildNestedSchema(exprs, origin)
	require.NoError(t, err)
	paths := tree.ToIndexPaths()
	newType, err := types.ProjectRow(origin, paths)
	require.NoError(t, err)

	rewritten, err := RewriteProjections(exprs, tree, newType)
	require.NoError(t, err)

	fn, ok := rewritten[0].(*FunctionCall)
	require.True(t, ok)
	ref, ok := fn.Args[0].(*ColumnRef)
	require.True(t, ok)
	assert.Equal(t, 0, ref.Index)
}

func TestRewriteUnmappedReferenceIsFatal(t *testing.T) {
	origin := userRow()
	tree, err := BuildNestedSchema([]Expression{colRef("id", origin)}, origin)
	require.NoError(t, err)
	paths := tree.ToIndexPaths()
	newType, err := types.ProjectRow(origin, paths)
	require.NoError(t, err)

	// a reference that never went into the tree is a planner defect
	_, err = RewriteProjections([]Expression{colRef("name", origin)}, tree, newType)
	require.Error(t, err)
	assert.True(t, errors.IsError(err, errors.InternalError))
}
