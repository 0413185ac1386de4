package catalog

import (
	"database/sql"
	"fmt"

	// driver for OpenPG
	_ "github.com/lib/pq"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// PGCatalog is a read-only Catalog backed by a PostgreSQL database. Table
// definitions are resolved from information_schema on demand. Tables read
// this way are plain append-only relations: Postgres has no notion of
// metadata pseudo-columns or changelog modes.
type PGCatalog struct {
	db *sql.DB
}

// NewPGCatalog wraps an existing database handle.
func NewPGCatalog(db *sql.DB) *PGCatalog {
	return &PGCatalog{db: db}
}

// OpenPG connects to Postgres with the given DSN and returns a catalog
// over the connection.
func OpenPG(dsn string) (*PGCatalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres catalog: %w", err)
	}
	return &PGCatalog{db: db}, nil
}

// Close releases the underlying connection pool.
func (c *PGCatalog) Close() error {
	return c.db.Close()
}

const pgColumnsQuery = `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const pgPrimaryKeyQuery = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY kcu.ordinal_position`

// GetTable resolves a table definition from information_schema.
func (c *PGCatalog) GetTable(schemaName, tableName string) (*Table, error) {
	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	rows, err := c.db.Query(pgColumnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	table := &Table{
		SchemaName:    schemaName,
		TableName:     tableName,
		ChangelogMode: AppendMode,
	}
	ordinal := 1
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		table.Columns = append(table.Columns, &Column{
			Name:            name,
			DataType:        pgTypeToDataType(dataType),
			OrdinalPosition: ordinal,
			IsNullable:      nullable == "YES",
			Kind:            PhysicalColumn,
		})
		ordinal++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(table.Columns) == 0 {
		return nil, errors.UndefinedTableError(fmt.Sprintf("%s.%s", schemaName, tableName))
	}

	pk, err := c.primaryKey(schemaName, tableName)
	if err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		table.Constraints = append(table.Constraints, PrimaryKeyConstraint{Columns: pk})
	}

	return table, nil
}

func (c *PGCatalog) primaryKey(schemaName, tableName string) ([]string, error) {
	rows, err := c.db.Query(pgPrimaryKeyQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query primary key for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan primary key row: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ListSchemas returns the non-system schemas.
func (c *PGCatalog) ListSchemas() ([]string, error) {
	rows, err := c.db.Query(`
SELECT schema_name FROM information_schema.schemata
WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// ListTables returns the tables in a schema.
func (c *PGCatalog) ListTables(schemaName string) ([]*Table, error) {
	if schemaName == "" {
		schemaName = defaultSchemaName
	}
	rows, err := c.db.Query(`
SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		t, err := c.GetTable(schemaName, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// CreateTable is not supported; the backing database owns its DDL.
func (c *PGCatalog) CreateTable(*TableSchema) (*Table, error) {
	return nil, errors.FeatureNotSupportedError("CREATE TABLE through pg catalog")
}

// DropTable is not supported; the backing database owns its DDL.
func (c *PGCatalog) DropTable(string, string) error {
	return errors.FeatureNotSupportedError("DROP TABLE through pg catalog")
}

// CreateSchema is not supported; the backing database owns its DDL.
func (c *PGCatalog) CreateSchema(string) error {
	return errors.FeatureNotSupportedError("CREATE SCHEMA through pg catalog")
}

// DropSchema is not supported; the backing database owns its DDL.
func (c *PGCatalog) DropSchema(string) error {
	return errors.FeatureNotSupportedError("DROP SCHEMA through pg catalog")
}

func pgTypeToDataType(pgType string) types.DataType {
	switch pgType {
	case "integer", "smallint":
		return types.Integer
	case "bigint":
		return types.BigInt
	case "boolean":
		return types.Boolean
	case "double precision", "real", "numeric":
		return types.Double
	case "text", "character varying", "character":
		return types.Text
	case "timestamp without time zone", "timestamp with time zone", "date":
		return types.Timestamp
	case "bytea":
		return types.Bytea
	default:
		return types.Unknown
	}
}
