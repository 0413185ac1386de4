package errors

// SQLSTATE error codes used by the planner.
// Based on PostgreSQL error codes: https://www.postgresql.org/docs/current/errcodes-appendix.html

// Class 0A - Feature Not Supported
const (
	FeatureNotSupported = "0A000"
)

// Class 22 - Data Exception
const (
	InvalidParameterValue = "22023"
)

// Class 42 - Syntax Error or Access Rule Violation
const (
	UndefinedTable  = "42P01"
	UndefinedColumn = "42703"
	DuplicateTable  = "42P07"
	DuplicateColumn = "42701"
	InvalidSchema   = "3F000"
)

// Class XX - Internal Error
const (
	InternalError = "XX000"
)
