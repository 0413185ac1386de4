package planner

import (
	"fmt"
	"strings"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/source"
)

// LogicalScan represents a table scan operation. It carries the resolved
// catalog table, the bound source and every ability spec already applied
// to that source.
type LogicalScan struct {
	basePlan
	TableName string
	Alias     string
	Table     *catalog.Table
	Source    source.Source
	// AbilitySpecs records the pushdowns applied to Source, in
	// application order.
	AbilitySpecs []source.AbilitySpec
	// ExtraDigests are rendered in explain output after the table name.
	ExtraDigests []string
}

func (s *LogicalScan) logicalNode() {}

func (s *LogicalScan) String() string {
	name := s.TableName
	if s.Alias != "" && s.Alias != s.TableName {
		name = fmt.Sprintf("%s AS %s", s.TableName, s.Alias)
	}
	if len(s.ExtraDigests) > 0 {
		return fmt.Sprintf("Scan(%s, %s)", name, strings.Join(s.ExtraDigests, ", "))
	}
	return fmt.Sprintf("Scan(%s)", name)
}

// HasProjectionPushDown reports whether a projection has already been
// pushed into this scan's source.
func (s *LogicalScan) HasProjectionPushDown() bool {
	for _, spec := range s.AbilitySpecs {
		if _, ok := spec.(*source.ProjectPushDownSpec); ok {
			return true
		}
	}
	return false
}

// LogicalProject represents a projection operation.
type LogicalProject struct {
	basePlan
	Projections []Expression
	Aliases     []string
}

func (p *LogicalProject) logicalNode() {}

func (p *LogicalProject) String() string {
	var projStrs []string
	for i, proj := range p.Projections {
		str := proj.String()
		if i < len(p.Aliases) && p.Aliases[i] != "" && p.Aliases[i] != str {
			str += " AS " + p.Aliases[i]
		}
		projStrs = append(projStrs, str)
	}
	return fmt.Sprintf("Project(%s)", strings.Join(projStrs, ", "))
}

// LogicalFilter represents a filter operation.
type LogicalFilter struct {
	basePlan
	Predicate Expression
}

func (f *LogicalFilter) logicalNode() {}

func (f *LogicalFilter) String() string {
	return fmt.Sprintf("Filter(%s)", f.Predicate.String())
}

// LogicalSort represents a sort operation.
type LogicalSort struct {
	basePlan
	OrderBy []OrderByExpr
}

func (s *LogicalSort) logicalNode() {}

func (s *LogicalSort) String() string {
	var orderStrs []string
	for _, o := range s.OrderBy {
		orderStrs = append(orderStrs, o.String())
	}
	return fmt.Sprintf("Sort(%s)", strings.Join(orderStrs, ", "))
}

// OrderByExpr represents an ORDER BY expression.
type OrderByExpr struct {
	Expr  Expression
	Order SortOrder
}

func (o OrderByExpr) String() string {
	return fmt.Sprintf("%s %s", o.Expr.String(), o.Order.String())
}

// LogicalLimit represents a limit operation.
type LogicalLimit struct {
	basePlan
	Limit  int64
	Offset int64
}

func (l *LogicalLimit) logicalNode() {}

func (l *LogicalLimit) String() string {
	if l.Offset > 0 {
		return fmt.Sprintf("Limit(%d, %d)", l.Limit, l.Offset)
	}
	return fmt.Sprintf("Limit(%d)", l.Limit)
}

// NewLogicalScan creates a scan over a resolved table bound to a source.
// The scan's schema is the table's produced row type.
func NewLogicalScan(table *catalog.Table, alias string, src source.Source) *LogicalScan {
	if alias == "" {
		alias = table.TableName
	}
	return &LogicalScan{
		basePlan: basePlan{
			schema: RowSchema(table.ProducedRowType(), table.TableName, alias),
		},
		TableName: table.TableName,
		Alias:     alias,
		Table:     table,
		Source:    src,
	}
}

// NewLogicalProject creates a new logical project node.
func NewLogicalProject(child LogicalPlan, projections []Expression, aliases []string, schema *Schema) *LogicalProject {
	return &LogicalProject{
		basePlan: basePlan{
			children: []Plan{child},
			schema:   schema,
		},
		Projections: projections,
		Aliases:     aliases,
	}
}

// NewLogicalFilter creates a new logical filter node.
func NewLogicalFilter(child LogicalPlan, predicate Expression) *LogicalFilter {
	return &LogicalFilter{
		basePlan: basePlan{
			children: []Plan{child},
			schema:   child.Schema(),
		},
		Predicate: predicate,
	}
}

// NewLogicalSort creates a new logical sort node.
func NewLogicalSort(child LogicalPlan, orderBy []OrderByExpr) *LogicalSort {
	return &LogicalSort{
		basePlan: basePlan{
			children: []Plan{child},
			schema:   child.Schema(),
		},
		OrderBy: orderBy,
	}
}

// NewLogicalLimit creates a new logical limit node.
func NewLogicalLimit(child LogicalPlan, limit, offset int64) *LogicalLimit {
	return &LogicalLimit{
		basePlan: basePlan{
			children: []Plan{child},
			schema:   child.Schema(),
		},
		Limit:  limit,
		Offset: offset,
	}
}
