package planner

// ProjectionPushdown moves projections below filters and sorts so scans
// see the tightest possible column set. It inserts a column-only
// projection under the intervening operator; PushProjectIntoScan then
// takes that projection the rest of the way into the source.
type ProjectionPushdown struct{}

// Name returns the rule name used for configuration and logging.
func (p *ProjectionPushdown) Name() string { return "projection_pushdown" }

// Apply pushes projections down through the plan tree.
func (p *ProjectionPushdown) Apply(plan LogicalPlan) (LogicalPlan, bool, error) {
	project, ok := plan.(*LogicalProject)
	if !ok {
		return p.applyToChild(plan)
	}

	required, hasStar := referencedRoots(project.Projections)
	if hasStar {
		return p.applyToChild(plan)
	}

	switch child := project.Children()[0].(type) {
	case *LogicalFilter:
		filterCols := NewColumnSet()
		extractColumns(child.Predicate, filterCols)
		combined := required.Clone()
		combined.AddAll(filterCols)

		inner, ok := p.narrowingProjection(child.Children()[0].(LogicalPlan), combined)
		if !ok {
			return p.applyToChild(plan)
		}
		newFilter := NewLogicalFilter(inner, child.Predicate)
		return NewLogicalProject(newFilter, project.Projections, project.Aliases, project.Schema()), true, nil

	case *LogicalSort:
		sortCols := NewColumnSet()
		for _, o := range child.OrderBy {
			extractColumns(o.Expr, sortCols)
		}
		combined := required.Clone()
		combined.AddAll(sortCols)

		inner, ok := p.narrowingProjection(child.Children()[0].(LogicalPlan), combined)
		if !ok {
			return p.applyToChild(plan)
		}
		newSort := NewLogicalSort(inner, child.OrderBy)
		return NewLogicalProject(newSort, project.Projections, project.Aliases, project.Schema()), true, nil
	}

	return p.applyToChild(plan)
}

func (p *ProjectionPushdown) applyToChild(plan LogicalPlan) (LogicalPlan, bool, error) {
	children := plan.Children()
	if len(children) != 1 {
		return plan, false, nil
	}
	lp, ok := children[0].(LogicalPlan)
	if !ok {
		return plan, false, nil
	}
	newChild, changed, err := p.Apply(lp)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return plan, false, nil
	}
	return replaceChild(plan, newChild), true, nil
}

// narrowingProjection builds a column-only projection of the required
// columns over child, in child schema order. It declines when the
// projection would not narrow anything: the child is already a
// projection, the set contains a star, or every column is required.
func (p *ProjectionPushdown) narrowingProjection(child LogicalPlan, required *ColumnSet) (*LogicalProject, bool) {
	if required.HasStar() {
		return nil, false
	}
	if _, ok := child.(*LogicalProject); ok {
		return nil, false
	}
	childSchema := child.Schema()
	if childSchema == nil || required.Size() >= len(childSchema.Columns) {
		return nil, false
	}

	var exprs []Expression
	var aliases []string
	var cols []Column
	for i, col := range childSchema.Columns {
		if !required.Contains(col.Name) {
			continue
		}
		exprs = append(exprs, &ColumnRef{
			TableAlias: col.TableAlias,
			ColumnName: col.Name,
			Index:      i,
			ColumnType: col.DataType,
		})
		aliases = append(aliases, col.Name)
		cols = append(cols, col)
	}
	if len(exprs) == 0 || len(exprs) == len(childSchema.Columns) {
		return nil, false
	}
	return NewLogicalProject(child, exprs, aliases, &Schema{Columns: cols}), true
}
