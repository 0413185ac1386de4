package main

import (
	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// demoCatalog returns the memory backend preloaded with tables that
// exercise each pushdown path: flat columns, nested structs, metadata
// pseudo-columns and an upsert table with a primary key.
func demoCatalog() *catalog.MemoryCatalog {
	cat := catalog.NewMemoryCatalog()

	// these definitions are static; CreateTable cannot fail on them
	mustCreate(cat, &catalog.TableSchema{
		TableName: "orders",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "customer", DataType: types.Text},
			{Name: "amount", DataType: types.Double},
			{Name: "created_at", DataType: types.Timestamp},
		},
	})

	mustCreate(cat, &catalog.TableSchema{
		TableName: "users",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "name", DataType: types.Text},
			{Name: "addr", DataType: types.NewRow(
				types.RowField{Name: "city", Type: types.Text},
				types.RowField{Name: "zip", Type: types.Text},
				types.RowField{Name: "geo", Type: types.NewRow(
					types.RowField{Name: "lat", Type: types.Double},
					types.RowField{Name: "lon", Type: types.Double},
				)},
			)},
		},
	})

	mustCreate(cat, &catalog.TableSchema{
		TableName: "events",
		Columns: []catalog.ColumnDef{
			{Name: "key", DataType: types.Text},
			{Name: "payload", DataType: types.Bytea},
			{Name: "rowtime", DataType: types.Timestamp, Kind: catalog.MetadataColumn},
			{Name: "partition", DataType: types.Integer, Kind: catalog.MetadataColumn},
		},
	})

	mustCreate(cat, &catalog.TableSchema{
		TableName: "accounts",
		Columns: []catalog.ColumnDef{
			{Name: "id", DataType: types.BigInt},
			{Name: "owner", DataType: types.Text},
			{Name: "balance", DataType: types.Double},
		},
		Constraints:   []catalog.Constraint{catalog.PrimaryKeyConstraint{Columns: []string{"id"}}},
		ChangelogMode: catalog.UpsertMode,
	})

	return cat
}

func mustCreate(cat *catalog.MemoryCatalog, schema *catalog.TableSchema) {
	if _, err := cat.CreateTable(schema); err != nil {
		panic(err)
	}
}
