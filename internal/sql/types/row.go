package types

import (
	"fmt"
	"strings"
)

// RowField is a named field inside a Row type.
type RowField struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Row represents a structured row type with ordered, named fields. It is
// the produced type of a table scan and the element type of struct-typed
// columns, so nested rows are allowed.
type Row struct {
	Fields []RowField
}

// NewRow creates a row type from the given fields.
func NewRow(fields ...RowField) Row {
	return Row{Fields: fields}
}

func (r Row) Name() string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = fmt.Sprintf("%s %s", f.Name, f.Type.Name())
	}
	return "ROW(" + strings.Join(names, ", ") + ")"
}

func (r Row) Equals(other DataType) bool {
	o, ok := other.(Row)
	if !ok || len(o.Fields) != len(r.Fields) {
		return false
	}
	for i, f := range r.Fields {
		if o.Fields[i].Name != f.Name || !o.Fields[i].Type.Equals(f.Type) {
			return false
		}
	}
	return true
}

// FieldNames returns the field names in declaration order.
func (r Row) FieldNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldIndex returns the position of the named field, or -1 if absent.
func (r Row) FieldIndex(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ProjectRow computes the row type produced by projecting the given
// index-paths out of origin. Each path is a non-empty root-to-leaf walk:
// length 1 selects a whole top-level field, longer paths select a nested
// field inside struct-typed columns. Nested selections are flattened to
// top-level fields whose names join the path segments with underscores;
// a numeric suffix disambiguates any resulting collision.
func ProjectRow(origin Row, paths [][]int) (Row, error) {
	projected := Row{Fields: make([]RowField, 0, len(paths))}
	seen := make(map[string]int)
	for _, path := range paths {
		if len(path) == 0 {
			return Row{}, fmt.Errorf("empty projection path")
		}
		field, err := fieldAt(origin, path)
		if err != nil {
			return Row{}, err
		}
		name := projectedFieldName(origin, path)
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n)
		} else {
			seen[name] = 0
		}
		projected.Fields = append(projected.Fields, RowField{
			Name:     name,
			Type:     field.Type,
			Nullable: field.Nullable,
		})
	}
	return projected, nil
}

// fieldAt walks the path through possibly nested row types.
func fieldAt(row Row, path []int) (RowField, error) {
	var field RowField
	current := row
	for depth, idx := range path {
		if idx < 0 || idx >= len(current.Fields) {
			return RowField{}, fmt.Errorf("projection path %v out of range at depth %d", path, depth)
		}
		field = current.Fields[idx]
		if depth < len(path)-1 {
			inner, ok := field.Type.(Row)
			if !ok {
				return RowField{}, fmt.Errorf("projection path %v descends into non-struct field %q", path, field.Name)
			}
			current = inner
		}
	}
	return field, nil
}

func projectedFieldName(origin Row, path []int) string {
	parts := make([]string, 0, len(path))
	current := origin
	for depth, idx := range path {
		field := current.Fields[idx]
		parts = append(parts, field.Name)
		if depth < len(path)-1 {
			current = field.Type.(Row)
		}
	}
	return strings.Join(parts, "_")
}
