package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/cascadedb/cascade/internal/errors"
)

const defaultSchemaName = "public"

// MemoryCatalog is an in-memory implementation of the Catalog interface.
// It's useful for testing and development.
type MemoryCatalog struct {
	mu      sync.RWMutex
	schemas map[string]*schema
	tables  map[string]*Table // "schema.table" -> Table
	nextID  int64
}

// schema represents a database schema.
type schema struct {
	name   string
	tables map[string]*Table
}

// NewMemoryCatalog creates a new in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	c := &MemoryCatalog{
		schemas: make(map[string]*schema),
		tables:  make(map[string]*Table),
		nextID:  1,
	}

	// Create default public schema
	c.schemas[defaultSchemaName] = &schema{
		name:   defaultSchemaName,
		tables: make(map[string]*Table),
	}

	return c
}

// CreateSchema creates a new schema.
func (c *MemoryCatalog) CreateSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[name]; exists {
		return errors.Newf(errors.InvalidSchema, "schema %q already exists", name)
	}

	c.schemas[name] = &schema{
		name:   name,
		tables: make(map[string]*Table),
	}

	return nil
}

// DropSchema drops a schema and all its tables.
func (c *MemoryCatalog) DropSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == defaultSchemaName {
		return errors.Newf(errors.InvalidSchema, "cannot drop %s schema", defaultSchemaName)
	}

	sch, exists := c.schemas[name]
	if !exists {
		return errors.Newf(errors.InvalidSchema, "schema %q does not exist", name)
	}

	for tableName := range sch.tables {
		delete(c.tables, fmt.Sprintf("%s.%s", name, tableName))
	}

	delete(c.schemas, name)
	return nil
}

// ListSchemas returns a list of all schemas.
func (c *MemoryCatalog) ListSchemas() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	schemas := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		schemas = append(schemas, name)
	}

	return schemas, nil
}

// CreateTable creates a new table.
func (c *MemoryCatalog) CreateTable(tableSchema *TableSchema) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := tableSchema.validate(); err != nil {
		return nil, err
	}

	schemaName := tableSchema.SchemaName
	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	sch, exists := c.schemas[schemaName]
	if !exists {
		return nil, errors.Newf(errors.InvalidSchema, "schema %q does not exist", schemaName)
	}

	key := fmt.Sprintf("%s.%s", schemaName, tableSchema.TableName)
	if _, exists := c.tables[key]; exists {
		return nil, errors.DuplicateTableError(key)
	}

	table := &Table{
		ID:            c.nextID,
		SchemaName:    schemaName,
		TableName:     tableSchema.TableName,
		Columns:       make([]*Column, 0, len(tableSchema.Columns)),
		Constraints:   tableSchema.Constraints,
		ChangelogMode: tableSchema.ChangelogMode,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	c.nextID++

	for i, colDef := range tableSchema.Columns {
		metadataKey := colDef.MetadataKey
		if colDef.Kind == MetadataColumn && metadataKey == "" {
			metadataKey = colDef.Name
		}
		column := &Column{
			ID:              c.nextID,
			Name:            colDef.Name,
			DataType:        colDef.DataType,
			OrdinalPosition: i + 1,
			IsNullable:      colDef.IsNullable,
			Kind:            colDef.Kind,
			MetadataKey:     metadataKey,
		}
		c.nextID++
		table.Columns = append(table.Columns, column)
	}

	c.tables[key] = table
	sch.tables[tableSchema.TableName] = table

	return table, nil
}

// GetTable retrieves a table by name.
func (c *MemoryCatalog) GetTable(schemaName, tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	key := fmt.Sprintf("%s.%s", schemaName, tableName)
	table, exists := c.tables[key]
	if !exists {
		return nil, errors.UndefinedTableError(key)
	}

	return table, nil
}

// DropTable drops a table.
func (c *MemoryCatalog) DropTable(schemaName, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	sch, exists := c.schemas[schemaName]
	if !exists {
		return errors.Newf(errors.InvalidSchema, "schema %q does not exist", schemaName)
	}

	key := fmt.Sprintf("%s.%s", schemaName, tableName)
	if _, exists := c.tables[key]; !exists {
		return errors.UndefinedTableError(key)
	}

	delete(c.tables, key)
	delete(sch.tables, tableName)
	return nil
}

// ListTables returns all tables in a schema.
func (c *MemoryCatalog) ListTables(schemaName string) ([]*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if schemaName == "" {
		schemaName = defaultSchemaName
	}

	sch, exists := c.schemas[schemaName]
	if !exists {
		return nil, errors.Newf(errors.InvalidSchema, "schema %q does not exist", schemaName)
	}

	tables := make([]*Table, 0, len(sch.tables))
	for _, t := range sch.tables {
		tables = append(tables, t)
	}

	return tables, nil
}
