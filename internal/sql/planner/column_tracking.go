package planner

import (
	"sort"
	"strings"
)

// columnKey identifies a top-level column reference.
type columnKey struct {
	TableAlias string
	ColumnName string
}

func (k columnKey) String() string {
	if k.TableAlias != "" {
		return k.TableAlias + "." + k.ColumnName
	}
	return k.ColumnName
}

// ColumnSet represents the set of top-level columns referenced by a group
// of expressions. Nested references count as references to their root
// column.
type ColumnSet struct {
	columns map[columnKey]bool
	hasStar bool // true if SELECT * is used
}

// NewColumnSet creates an empty column set
func NewColumnSet() *ColumnSet {
	return &ColumnSet{
		columns: make(map[columnKey]bool),
	}
}

// Add adds a column to the set
func (cs *ColumnSet) Add(tableAlias, columnName string) {
	cs.columns[columnKey{TableAlias: tableAlias, ColumnName: columnName}] = true
}

// AddAll adds all columns from another set
func (cs *ColumnSet) AddAll(other *ColumnSet) {
	if other.hasStar {
		cs.hasStar = true
	}
	for col := range other.columns {
		cs.columns[col] = true
	}
}

// Contains checks if a column is in the set
func (cs *ColumnSet) Contains(columnName string) bool {
	for col := range cs.columns {
		if col.ColumnName == columnName {
			return true
		}
	}
	return false
}

// IsEmpty returns true if the set has no columns
func (cs *ColumnSet) IsEmpty() bool {
	return len(cs.columns) == 0 && !cs.hasStar
}

// Size returns the number of columns in the set
func (cs *ColumnSet) Size() int {
	return len(cs.columns)
}

// HasStar returns true if SELECT * is used
func (cs *ColumnSet) HasStar() bool {
	return cs.hasStar
}

// SetStar marks that all columns are needed
func (cs *ColumnSet) SetStar() {
	cs.hasStar = true
}

// Clone creates a copy of the column set
func (cs *ColumnSet) Clone() *ColumnSet {
	clone := NewColumnSet()
	clone.hasStar = cs.hasStar
	for col := range cs.columns {
		clone.columns[col] = true
	}
	return clone
}

// String returns a string representation of the column set
func (cs *ColumnSet) String() string {
	if cs.hasStar {
		return "[*]"
	}
	if cs.IsEmpty() {
		return "[]"
	}
	keys := make([]columnKey, 0, len(cs.columns))
	for col := range cs.columns {
		keys = append(keys, col)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TableAlias != keys[j].TableAlias {
			return keys[i].TableAlias < keys[j].TableAlias
		}
		return keys[i].ColumnName < keys[j].ColumnName
	})
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = k.String()
	}
	return "[" + strings.Join(strs, ", ") + "]"
}

// extractColumns finds all top-level column references in an expression.
// A nested field access contributes its root column.
func extractColumns(expr Expression, cols *ColumnSet) {
	switch e := expr.(type) {
	case *ColumnRef:
		cols.Add(e.TableAlias, e.ColumnName)
	case *FieldAccess:
		if root, _, onColumn := accessChain(e); onColumn {
			cols.Add(root.TableAlias, root.ColumnName)
		} else {
			extractColumns(e.Expr, cols)
		}
	case *BinaryOp:
		extractColumns(e.Left, cols)
		extractColumns(e.Right, cols)
	case *UnaryOp:
		extractColumns(e.Expr, cols)
	case *FunctionCall:
		for _, arg := range e.Args {
			extractColumns(arg, cols)
		}
	case *Star:
		// Star requires all columns
		cols.SetStar()
	case *Literal:
		// No column references
	default:
		// For unknown expression types, be conservative and assume we
		// need all columns
		cols.SetStar()
	}
}

// referencedRoots returns the distinct top-level columns referenced by
// the expressions, and whether a star reference was seen.
func referencedRoots(exprs []Expression) (*ColumnSet, bool) {
	cols := NewColumnSet()
	for _, expr := range exprs {
		extractColumns(expr, cols)
	}
	return cols, cols.HasStar()
}
