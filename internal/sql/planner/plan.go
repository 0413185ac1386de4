package planner

import (
	"github.com/cascadedb/cascade/internal/sql/types"
)

// Plan represents a node in a query plan.
type Plan interface {
	// Children returns the child plans.
	Children() []Plan
	// Schema returns the output schema of this plan node.
	Schema() *Schema
	// String returns a string representation for debugging.
	String() string
}

// Schema represents the output schema of a plan node.
type Schema struct {
	Columns []Column
}

// Column represents a column in a schema.
type Column struct {
	Name       string
	DataType   types.DataType
	Nullable   bool
	TableName  string // Source table name
	TableAlias string // Table alias used in query
}

// LogicalPlan represents a logical plan node.
type LogicalPlan interface {
	Plan
	logicalNode()
}

// basePlan provides common functionality for plan nodes.
type basePlan struct {
	children []Plan
	schema   *Schema
}

func (p *basePlan) Children() []Plan {
	return p.children
}

func (p *basePlan) Schema() *Schema {
	return p.schema
}

// SortOrder represents the sort order.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (s SortOrder) String() string {
	if s == Descending {
		return "DESC"
	}
	return "ASC"
}

// RowSchema converts a produced row type into a plan schema.
func RowSchema(row types.Row, tableName, tableAlias string) *Schema {
	cols := make([]Column, len(row.Fields))
	for i, f := range row.Fields {
		cols[i] = Column{
			Name:       f.Name,
			DataType:   f.Type,
			Nullable:   f.Nullable,
			TableName:  tableName,
			TableAlias: tableAlias,
		}
	}
	return &Schema{Columns: cols}
}
