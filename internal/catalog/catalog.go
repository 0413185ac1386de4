package catalog

import (
	"time"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// Catalog manages table metadata: columns, constraints and the changelog
// mode a source produces records in.
type Catalog interface {
	CreateTable(schema *TableSchema) (*Table, error)
	GetTable(schemaName, tableName string) (*Table, error)
	DropTable(schemaName, tableName string) error
	ListTables(schemaName string) ([]*Table, error)

	CreateSchema(name string) error
	DropSchema(name string) error
	ListSchemas() ([]string, error)
}

// ColumnKind distinguishes physical columns from metadata pseudo-columns.
type ColumnKind int

const (
	// PhysicalColumn is stored by the source.
	PhysicalColumn ColumnKind = iota
	// MetadataColumn is a pseudo-column supplied by the source on request,
	// identified by a metadata key (e.g. an ingestion timestamp).
	MetadataColumn
)

// ChangelogMode describes the kind of change stream a table's source emits.
type ChangelogMode int

const (
	// AppendMode sources emit inserts only.
	AppendMode ChangelogMode = iota
	// UpsertMode sources emit upserts and deletions correlated by primary key.
	UpsertMode
	// RetractMode sources emit paired retract/add events.
	RetractMode
)

func (m ChangelogMode) String() string {
	switch m {
	case AppendMode:
		return "append"
	case UpsertMode:
		return "upsert"
	case RetractMode:
		return "retract"
	default:
		return "unknown"
	}
}

// TableSchema defines the structure for creating a new table.
type TableSchema struct {
	SchemaName    string
	TableName     string
	Columns       []ColumnDef
	Constraints   []Constraint
	ChangelogMode ChangelogMode
}

// ColumnDef defines a column in a table. Metadata columns must follow all
// physical columns; CreateTable rejects interleaved declarations.
type ColumnDef struct {
	Name        string
	DataType    types.DataType
	IsNullable  bool
	Kind        ColumnKind
	MetadataKey string // for MetadataColumn; defaults to the column name
}

// Table represents a resolved table with its metadata.
type Table struct {
	ID            int64
	SchemaName    string
	TableName     string
	Columns       []*Column
	Constraints   []Constraint
	ChangelogMode ChangelogMode
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Column represents a resolved column.
type Column struct {
	ID              int64
	Name            string
	DataType        types.DataType
	OrdinalPosition int
	IsNullable      bool
	Kind            ColumnKind
	MetadataKey     string
}

// Constraint represents a table constraint.
type Constraint interface {
	constraintType() string
	String() string
}

// PrimaryKeyConstraint represents a primary key constraint.
type PrimaryKeyConstraint struct {
	Columns []string
}

func (c PrimaryKeyConstraint) constraintType() string { return "PRIMARY KEY" }
func (c PrimaryKeyConstraint) String() string {
	return "PRIMARY KEY (" + joinColumns(c.Columns) + ")"
}

// UniqueConstraint represents a unique constraint.
type UniqueConstraint struct {
	Columns []string
}

func (c UniqueConstraint) constraintType() string { return "UNIQUE" }
func (c UniqueConstraint) String() string {
	return "UNIQUE (" + joinColumns(c.Columns) + ")"
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// GetColumn returns the named column, or nil if it does not exist.
func (t *Table) GetColumn(name string) *Column {
	for _, col := range t.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// PrimaryKey returns the primary key column names, or nil when the table
// declares no primary key.
func (t *Table) PrimaryKey() []string {
	for _, c := range t.Constraints {
		if pk, ok := c.(PrimaryKeyConstraint); ok {
			return pk.Columns
		}
	}
	return nil
}

// PhysicalColumnCount returns the number of physical columns. Metadata
// columns always trail physical ones, so this is also the origin-schema
// position of the first metadata column.
func (t *Table) PhysicalColumnCount() int {
	n := 0
	for _, col := range t.Columns {
		if col.Kind == PhysicalColumn {
			n++
		}
	}
	return n
}

// MetadataKeys returns the metadata keys of the table's metadata columns
// in declaration order.
func (t *Table) MetadataKeys() []string {
	var keys []string
	for _, col := range t.Columns {
		if col.Kind == MetadataColumn {
			keys = append(keys, col.MetadataKey)
		}
	}
	return keys
}

// ProducedRowType returns the row type a scan of this table produces:
// physical columns first, metadata columns trailing, in declaration order.
func (t *Table) ProducedRowType() types.Row {
	fields := make([]types.RowField, len(t.Columns))
	for i, col := range t.Columns {
		fields[i] = types.RowField{
			Name:     col.Name,
			Type:     col.DataType,
			Nullable: col.IsNullable,
		}
	}
	return types.Row{Fields: fields}
}

// validate checks structural rules shared by all catalog implementations.
func (s *TableSchema) validate() error {
	if len(s.Columns) == 0 {
		return errors.Newf(errors.InvalidParameterValue, "table %q must have at least one column", s.TableName)
	}
	names := make(map[string]bool, len(s.Columns))
	sawMetadata := false
	for _, def := range s.Columns {
		if names[def.Name] {
			return errors.Newf(errors.DuplicateColumn, "column %q specified more than once", def.Name).
				WithTable(s.SchemaName, s.TableName).
				WithColumn(def.Name)
		}
		names[def.Name] = true
		if def.Kind == MetadataColumn {
			sawMetadata = true
		} else if sawMetadata {
			return errors.Newf(errors.InvalidParameterValue,
				"physical column %q declared after metadata columns", def.Name).
				WithTable(s.SchemaName, s.TableName).
				WithColumn(def.Name)
		}
	}
	for _, c := range s.Constraints {
		if pk, ok := c.(PrimaryKeyConstraint); ok {
			for _, col := range pk.Columns {
				if !names[col] {
					return errors.UndefinedColumnError(col, s.TableName).
						WithDetailf("primary key references unknown column %q", col)
				}
			}
		}
	}
	return nil
}
