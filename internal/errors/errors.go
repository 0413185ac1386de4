package errors

import (
	"fmt"
	"strings"
)

// Error represents a planner error with a SQLSTATE code and the schema
// object it concerns. Fatal planning defects (inconsistent catalog
// metadata, broken rewrite invariants) surface as these so the enclosing
// compile step can abort with a descriptive message.
type Error struct {
	Code    string // SQLSTATE code
	Message string // Primary error message
	Detail  string // Optional detailed error message
	Hint    string // Optional hint message
	Schema  string // Schema name if applicable
	Table   string // Table name if applicable
	Column  string // Column name if applicable
	Path    []int  // Index-path if the error concerns a projected path
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (SQLSTATE %s)", e.Message, e.Code)
	if e.Detail != "" {
		fmt.Fprintf(&b, " DETAIL: %s", e.Detail)
	}
	return b.String()
}

// New creates a new Error with the given code and message
func New(code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail adds detail to the error
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf adds formatted detail to the error
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint adds a hint to the error
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithTable sets the table name
func (e *Error) WithTable(schema, table string) *Error {
	e.Schema = schema
	e.Table = table
	return e
}

// WithColumn sets the column name
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithPath sets the offending index-path
func (e *Error) WithPath(path []int) *Error {
	e.Path = path
	return e
}

// Common error constructors

// UndefinedTableError creates an undefined table error
func UndefinedTableError(tableName string) *Error {
	return Newf(UndefinedTable, "relation \"%s\" does not exist", tableName).
		WithTable("", tableName)
}

// UndefinedColumnError creates an undefined column error
func UndefinedColumnError(columnName string, tableName string) *Error {
	return Newf(UndefinedColumn, "column \"%s\" does not exist", columnName).
		WithTable("", tableName).
		WithColumn(columnName)
}

// DuplicateTableError creates a duplicate table error
func DuplicateTableError(tableName string) *Error {
	return Newf(DuplicateTable, "relation \"%s\" already exists", tableName).
		WithTable("", tableName)
}

// InvalidPathError creates an error for a malformed or rejected index-path
func InvalidPathError(path []int, reason string) *Error {
	return Newf(InvalidParameterValue, "invalid projection path %v: %s", path, reason).
		WithPath(path)
}

// InternalErrorf creates an internal error
func InternalErrorf(format string, args ...interface{}) *Error {
	return Newf(InternalError, format, args...)
}

// FeatureNotSupportedError creates a feature not supported error
func FeatureNotSupportedError(feature string) *Error {
	return Newf(FeatureNotSupported, "%s is not supported", feature)
}

// IsError checks if an error is a planner Error with a specific code
func IsError(err error, code string) bool {
	if err == nil {
		return false
	}
	cErr, ok := err.(*Error)
	return ok && cErr.Code == code
}

// GetError attempts to extract a planner Error from any error
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	if cErr, ok := err.(*Error); ok {
		return cErr
	}
	// Wrap generic errors as internal errors
	return InternalErrorf("%v", err)
}
