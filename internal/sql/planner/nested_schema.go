package planner

import (
	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// NestedColumn is one node in the requested-fields tree. A leaf means the
// node's entire (sub)column is needed; a node with children means only
// some of its struct fields are. Children keep insertion order so output
// positions and digest text are deterministic.
type NestedColumn struct {
	name string
	// indexInOriginSchema is the node's position within its parent row
	// type; for a root node that is the position in the scan's produced
	// schema.
	indexInOriginSchema int
	dataType            types.DataType

	children   map[string]*NestedColumn
	childOrder []string

	leaf bool
	// indexOfLeafInNewSchema is the node's position in the compacted
	// output schema, assigned during pruning; -1 until then.
	indexOfLeafInNewSchema int
}

func newNestedColumn(name string, index int, dataType types.DataType) *NestedColumn {
	return &NestedColumn{
		name:                   name,
		indexInOriginSchema:    index,
		dataType:               dataType,
		children:               make(map[string]*NestedColumn),
		indexOfLeafInNewSchema: -1,
	}
}

func (c *NestedColumn) Name() string              { return c.name }
func (c *NestedColumn) IndexInOriginSchema() int  { return c.indexInOriginSchema }
func (c *NestedColumn) DataType() types.DataType  { return c.dataType }
func (c *NestedColumn) IsLeaf() bool              { return c.leaf }
func (c *NestedColumn) IndexOfLeafInNewSchema() int { return c.indexOfLeafInNewSchema }

// MarkLeaf requests the node's whole column, discarding any finer-grained
// child requests recorded so far.
func (c *NestedColumn) MarkLeaf() {
	c.leaf = true
	c.children = make(map[string]*NestedColumn)
	c.childOrder = nil
}

func (c *NestedColumn) child(name string) *NestedColumn {
	return c.children[name]
}

func (c *NestedColumn) addChild(child *NestedColumn) {
	if _, exists := c.children[child.name]; !exists {
		c.childOrder = append(c.childOrder, child.name)
	}
	c.children[child.name] = child
}

// Children returns the child nodes in insertion order.
func (c *NestedColumn) Children() []*NestedColumn {
	out := make([]*NestedColumn, 0, len(c.childOrder))
	for _, name := range c.childOrder {
		out = append(out, c.children[name])
	}
	return out
}

// NestedSchema is the requested-projection tree: one root NestedColumn
// per referenced top-level column, in first-reference order. It is built
// fresh for every rewrite attempt and never shared.
type NestedSchema struct {
	originType types.Row
	columns    map[string]*NestedColumn
	order      []string
}

// Column returns the root node for a top-level column, or nil.
func (s *NestedSchema) Column(name string) *NestedColumn {
	return s.columns[name]
}

// Columns returns the root nodes in first-reference order.
func (s *NestedSchema) Columns() []*NestedColumn {
	out := make([]*NestedColumn, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.columns[name])
	}
	return out
}

// Remove detaches and returns the root node for a top-level column, or
// nil if the column was never referenced.
func (s *NestedSchema) Remove(name string) *NestedColumn {
	col, ok := s.columns[name]
	if !ok {
		return nil
	}
	delete(s.columns, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return col
}

// Put re-attaches a root node at the end of the traversal order.
func (s *NestedSchema) Put(col *NestedColumn) {
	if _, exists := s.columns[col.name]; !exists {
		s.order = append(s.order, col.name)
	}
	s.columns[col.name] = col
}

// MarkTopLevelLeaves flattens the tree to depth one: every referenced
// top-level column is requested whole. Used when the source cannot prune
// nested fields.
func (s *NestedSchema) MarkTopLevelLeaves() {
	for _, col := range s.Columns() {
		col.MarkLeaf()
	}
}

// BuildNestedSchema derives the requested-fields tree from the field
// references appearing in exprs, resolved against the scan's produced row
// type. Repeated references to the same path share one node.
func BuildNestedSchema(exprs []Expression, origin types.Row) (*NestedSchema, error) {
	s := &NestedSchema{
		originType: origin,
		columns:    make(map[string]*NestedColumn),
	}
	for _, expr := range exprs {
		if err := s.addReferences(expr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *NestedSchema) addReferences(expr Expression) error {
	switch e := expr.(type) {
	case *ColumnRef:
		_, err := s.addWholeColumn(e)
		return err
	case *FieldAccess:
		root, fields, onColumn := accessChain(e)
		if !onColumn {
			// struct access over a computed value; only the inner
			// expression can reference scan columns
			return s.addReferences(e.Expr)
		}
		return s.addNestedPath(root, fields)
	case *BinaryOp:
		if err := s.addReferences(e.Left); err != nil {
			return err
		}
		return s.addReferences(e.Right)
	case *UnaryOp:
		return s.addReferences(e.Expr)
	case *FunctionCall:
		for _, arg := range e.Args {
			if err := s.addReferences(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		// literals, stars and future expression kinds carry no
		// column-level references to record
		return nil
	}
}

func (s *NestedSchema) addWholeColumn(ref *ColumnRef) (*NestedColumn, error) {
	idx := s.originType.FieldIndex(ref.ColumnName)
	if idx < 0 {
		return nil, errors.UndefinedColumnError(ref.ColumnName, "").
			WithDetail("projection references a column missing from the scan schema")
	}
	col, ok := s.columns[ref.ColumnName]
	if !ok {
		col = newNestedColumn(ref.ColumnName, idx, s.originType.Fields[idx].Type)
		s.Put(col)
	}
	col.MarkLeaf()
	return col, nil
}

func (s *NestedSchema) addNestedPath(root *ColumnRef, fields []*FieldAccess) error {
	idx := s.originType.FieldIndex(root.ColumnName)
	if idx < 0 {
		return errors.UndefinedColumnError(root.ColumnName, "").
			WithDetail("projection references a column missing from the scan schema")
	}
	node, ok := s.columns[root.ColumnName]
	if !ok {
		node = newNestedColumn(root.ColumnName, idx, s.originType.Fields[idx].Type)
		s.Put(node)
	}

	for _, access := range fields {
		if node.leaf {
			// the whole column is already requested; deeper paths are
			// subsumed
			return nil
		}
		parentType, ok := node.dataType.(types.Row)
		if !ok {
			return errors.InternalErrorf(
				"field %q accessed on non-struct column %q", access.FieldName, node.name)
		}
		childIdx := parentType.FieldIndex(access.FieldName)
		if childIdx < 0 {
			return errors.UndefinedColumnError(access.FieldName, "").
				WithDetailf("struct column %q has no field %q", node.name, access.FieldName)
		}
		child := node.child(access.FieldName)
		if child == nil {
			child = newNestedColumn(access.FieldName, childIdx, parentType.Fields[childIdx].Type)
			node.addChild(child)
		}
		node = child
	}
	node.MarkLeaf()
	return nil
}

// accessChain unwinds a FieldAccess chain. When the chain bottoms out at
// a ColumnRef it returns the root and the accesses in root-to-leaf order.
func accessChain(fa *FieldAccess) (*ColumnRef, []*FieldAccess, bool) {
	var fields []*FieldAccess
	cur := fa
	for {
		fields = append([]*FieldAccess{cur}, fields...)
		switch inner := cur.Expr.(type) {
		case *ColumnRef:
			return inner, fields, true
		case *FieldAccess:
			cur = inner
		default:
			return nil, nil, false
		}
	}
}

// ToIndexPaths prunes the tree: it assigns each retained leaf its
// position in the compacted output schema, in depth-first traversal
// order, and returns one root-to-leaf index-path per leaf in that order.
func (s *NestedSchema) ToIndexPaths() [][]int {
	paths := make([][]int, 0, len(s.order))
	for _, col := range s.Columns() {
		collectLeafPaths(col, []int{col.indexInOriginSchema}, &paths)
	}
	return paths
}

func collectLeafPaths(node *NestedColumn, prefix []int, paths *[][]int) {
	if node.leaf {
		node.indexOfLeafInNewSchema = len(*paths)
		path := make([]int, len(prefix))
		copy(path, prefix)
		*paths = append(*paths, path)
		return
	}
	for _, child := range node.Children() {
		collectLeafPaths(child, append(prefix, child.indexInOriginSchema), paths)
	}
}

// RewriteProjections rewrites the original projection expressions so each
// field reference points at its leaf's position in the compacted schema.
// Every reference is guaranteed an entry by construction; a miss means
// the tree was built from different expressions and is a planner defect.
func RewriteProjections(exprs []Expression, s *NestedSchema, newType types.Row) ([]Expression, error) {
	out := make([]Expression, len(exprs))
	for i, expr := range exprs {
		rewritten, err := rewriteExpr(expr, s, newType)
		if err != nil {
			return nil, err
		}
		out[i] = rewritten
	}
	return out, nil
}

func rewriteExpr(expr Expression, s *NestedSchema, newType types.Row) (Expression, error) {
	switch e := expr.(type) {
	case *ColumnRef:
		col := s.Column(e.ColumnName)
		if col == nil || !col.leaf || col.indexOfLeafInNewSchema < 0 {
			return nil, errors.InternalErrorf(
				"field reference %q has no entry in the projected schema", e.ColumnName).
				WithColumn(e.ColumnName)
		}
		return newRef(col.indexOfLeafInNewSchema, newType), nil
	case *FieldAccess:
		root, fields, onColumn := accessChain(e)
		if !onColumn {
			inner, err := rewriteExpr(e.Expr, s, newType)
			if err != nil {
				return nil, err
			}
			return &FieldAccess{Expr: inner, FieldName: e.FieldName, FieldIndex: e.FieldIndex, Type: e.Type}, nil
		}
		return rewriteNestedRef(root, fields, s, newType)
	case *BinaryOp:
		left, err := rewriteExpr(e.Left, s, newType)
		if err != nil {
			return nil, err
		}
		right, err := rewriteExpr(e.Right, s, newType)
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Left: left, Right: right, Operator: e.Operator, Type: e.Type}, nil
	case *UnaryOp:
		inner, err := rewriteExpr(e.Expr, s, newType)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Expr: inner, Operator: e.Operator, Type: e.Type}, nil
	case *FunctionCall:
		args := make([]Expression, len(e.Args))
		for i, arg := range e.Args {
			rewritten, err := rewriteExpr(arg, s, newType)
			if err != nil {
				return nil, err
			}
			args[i] = rewritten
		}
		return &FunctionCall{FunctionName: e.FunctionName, Args: args, Type: e.Type}, nil
	default:
		return expr, nil
	}
}

// rewriteNestedRef maps a root-to-leaf reference onto the compacted
// schema. The walk stops at the first node marked leaf: the reference
// lands on that leaf's new position, and any remaining accesses (possible
// under whole-column fallback) are re-applied on top of the new ref.
func rewriteNestedRef(root *ColumnRef, fields []*FieldAccess, s *NestedSchema, newType types.Row) (Expression, error) {
	node := s.Column(root.ColumnName)
	if node == nil {
		return nil, errors.InternalErrorf(
			"field reference %q has no entry in the projected schema", root.ColumnName).
			WithColumn(root.ColumnName)
	}

	rest := fields
	for !node.leaf {
		if len(rest) == 0 {
			return nil, errors.InternalErrorf(
				"field reference %q resolves to a pruned branch", root.ColumnName).
				WithColumn(root.ColumnName)
		}
		child := node.child(rest[0].FieldName)
		if child == nil {
			return nil, errors.InternalErrorf(
				"field reference %q.%s has no entry in the projected schema",
				root.ColumnName, rest[0].FieldName).
				WithColumn(rest[0].FieldName)
		}
		node = child
		rest = rest[1:]
	}
	if node.indexOfLeafInNewSchema < 0 {
		return nil, errors.InternalErrorf(
			"leaf %q was never assigned an output position", node.name).
			WithColumn(node.name)
	}

	var result Expression = newRef(node.indexOfLeafInNewSchema, newType)
	currentType := newType.Fields[node.indexOfLeafInNewSchema].Type
	for _, access := range rest {
		row, ok := currentType.(types.Row)
		if !ok {
			return nil, errors.InternalErrorf(
				"field %q accessed on non-struct type %s", access.FieldName, currentType.Name())
		}
		idx := row.FieldIndex(access.FieldName)
		if idx < 0 {
			return nil, errors.InternalErrorf(
				"struct type %s has no field %q", currentType.Name(), access.FieldName)
		}
		currentType = row.Fields[idx].Type
		result = &FieldAccess{Expr: result, FieldName: access.FieldName, FieldIndex: idx, Type: currentType}
	}
	return result, nil
}

func newRef(index int, newType types.Row) *ColumnRef {
	field := newType.Fields[index]
	return &ColumnRef{
		ColumnName: field.Name,
		Index:      index,
		ColumnType: field.Type,
	}
}
