package types

// DataType represents a logical SQL data type as seen by the planner.
// Planning never serializes values, so a type is identified purely by
// its logical shape.
type DataType interface {
	// Name returns the SQL name of the type (e.g., "INTEGER", "TEXT")
	Name() string

	// Equals reports whether two types describe the same logical type
	Equals(other DataType) bool
}

// scalarType is a simple named type with no inner structure.
type scalarType struct {
	name string
}

func (t scalarType) Name() string { return t.name }

func (t scalarType) Equals(other DataType) bool {
	o, ok := other.(scalarType)
	return ok && o.name == t.name
}

// Scalar type singletons.
var (
	Boolean   DataType = scalarType{name: "BOOLEAN"}
	Integer   DataType = scalarType{name: "INTEGER"}
	BigInt    DataType = scalarType{name: "BIGINT"}
	Double    DataType = scalarType{name: "DOUBLE PRECISION"}
	Text      DataType = scalarType{name: "TEXT"}
	Timestamp DataType = scalarType{name: "TIMESTAMP"}
	Bytea     DataType = scalarType{name: "BYTEA"}
	Unknown   DataType = scalarType{name: "UNKNOWN"}
)
