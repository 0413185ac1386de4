package planner

import (
	"fmt"
	"strings"

	"github.com/cascadedb/cascade/internal/sql/types"
)

// Expression represents an expression in a query plan.
type Expression interface {
	// String returns a string representation.
	String() string
	// DataType returns the data type of the expression.
	DataType() types.DataType
}

// ColumnRef represents a reference to a top-level column. Index is the
// column's position in the schema of the plan node the expression reads
// from; rewrites that compact a schema update it.
type ColumnRef struct {
	TableAlias string
	ColumnName string
	Index      int
	ColumnType types.DataType
}

func (c *ColumnRef) String() string {
	if c.TableAlias != "" {
		return fmt.Sprintf("%s.%s", c.TableAlias, c.ColumnName)
	}
	return c.ColumnName
}

func (c *ColumnRef) DataType() types.DataType {
	return c.ColumnType
}

// FieldAccess selects a named field out of a struct-typed expression.
// Chained accesses express nested references such as addr.geo.lat.
type FieldAccess struct {
	Expr      Expression
	FieldName string
	// FieldIndex is the field's position inside the struct type of Expr.
	FieldIndex int
	Type       types.DataType
}

func (f *FieldAccess) String() string {
	return fmt.Sprintf("%s.%s", f.Expr.String(), f.FieldName)
}

func (f *FieldAccess) DataType() types.DataType {
	return f.Type
}

// Literal represents a literal value.
type Literal struct {
	Value string
	Type  types.DataType
}

func (l *Literal) String() string {
	if l.Type != nil && l.Type.Equals(types.Text) {
		return fmt.Sprintf("'%s'", strings.ReplaceAll(l.Value, "'", "''"))
	}
	return l.Value
}

func (l *Literal) DataType() types.DataType {
	return l.Type
}

// BinaryOp represents a binary operation.
type BinaryOp struct {
	Left     Expression
	Right    Expression
	Operator BinaryOperator
	Type     types.DataType
}

// BinaryOperator represents a binary operator.
type BinaryOperator int

const (
	// Arithmetic operators
	OpAdd BinaryOperator = iota
	OpSubtract
	OpMultiply
	OpDivide

	// Comparison operators
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	// Logical operators
	OpAnd
	OpOr

	// String operators
	OpConcat
	OpLike
)

func (op BinaryOperator) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpConcat:
		return "||"
	case OpLike:
		return "LIKE"
	default:
		return fmt.Sprintf("Unknown(%d)", op)
	}
}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Operator.String(), b.Right.String())
}

func (b *BinaryOp) DataType() types.DataType {
	return b.Type
}

// UnaryOp represents a unary operation.
type UnaryOp struct {
	Expr     Expression
	Operator UnaryOperator
	Type     types.DataType
}

// UnaryOperator represents a unary operator.
type UnaryOperator int

const (
	OpNot UnaryOperator = iota
	OpNegate
	OpIsNull
	OpIsNotNull
)

func (op UnaryOperator) String() string {
	switch op {
	case OpNot:
		return "NOT"
	case OpNegate:
		return "-"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return fmt.Sprintf("Unknown(%d)", op)
	}
}

func (u *UnaryOp) String() string {
	switch u.Operator {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("(%s %s)", u.Expr.String(), u.Operator.String())
	default:
		return fmt.Sprintf("%s %s", u.Operator.String(), u.Expr.String())
	}
}

func (u *UnaryOp) DataType() types.DataType {
	return u.Type
}

// FunctionCall represents a function call.
type FunctionCall struct {
	FunctionName string
	Args         []Expression
	Type         types.DataType
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, arg := range f.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", f.FunctionName, strings.Join(args, ", "))
}

func (f *FunctionCall) DataType() types.DataType {
	return f.Type
}

// Star represents * in SELECT *.
type Star struct{}

func (s *Star) String() string {
	return "*"
}

func (s *Star) DataType() types.DataType {
	return types.Unknown
}
