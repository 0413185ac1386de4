package planner

import (
	"strings"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/log"
	"github.com/cascadedb/cascade/internal/source"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// PushProjectIntoScan pushes a projection into a scan whose source
// supports projection pushdown. The rewrite builds the requested-fields
// tree from the projection expressions, prunes it, applies the resulting
// ability specs to a copy of the source and re-points every field
// reference at the compacted schema. The original project and scan are
// never mutated.
type PushProjectIntoScan struct {
	// Changelog influences whether primary-key columns are force-retained
	// for sources whose records need key-based correlation downstream.
	Changelog catalog.ChangelogOptions
}

// Name returns the rule name used for configuration and logging.
func (r *PushProjectIntoScan) Name() string { return "push_project_into_scan" }

// matches reports whether the rule applies to the scan: the source must
// declare projection pushdown and no projection may have been pushed
// already. The second check keeps the rule from firing on its own output
// forever.
func (r *PushProjectIntoScan) matches(scan *LogicalScan) bool {
	if scan.Table == nil || scan.Source == nil {
		return false
	}
	if _, ok := scan.Source.(source.SupportsProjectionPushDown); !ok {
		return false
	}
	return !scan.HasProjectionPushDown()
}

// Apply searches the plan for a Project directly over a matching Scan
// and rewrites that pair.
func (r *PushProjectIntoScan) Apply(plan LogicalPlan) (LogicalPlan, bool, error) {
	if project, ok := plan.(*LogicalProject); ok {
		if scan, ok := project.Children()[0].(*LogicalScan); ok && r.matches(scan) {
			return r.pushInto(project, scan)
		}
	}

	children := plan.Children()
	if len(children) == 1 {
		if lp, ok := children[0].(LogicalPlan); ok {
			newChild, childChanged, err := r.Apply(lp)
			if err != nil {
				return nil, false, err
			}
			if childChanged {
				return replaceChild(plan, newChild), true, nil
			}
		}
	}
	return plan, false, nil
}

// replaceChild rebuilds a single-child node over a new child, leaving the
// original untouched.
func replaceChild(plan LogicalPlan, child LogicalPlan) LogicalPlan {
	switch p := plan.(type) {
	case *LogicalProject:
		return NewLogicalProject(child, p.Projections, p.Aliases, p.Schema())
	case *LogicalFilter:
		return NewLogicalFilter(child, p.Predicate)
	case *LogicalSort:
		return NewLogicalSort(child, p.OrderBy)
	case *LogicalLimit:
		return NewLogicalLimit(child, p.Limit, p.Offset)
	default:
		return plan
	}
}

func (r *PushProjectIntoScan) pushInto(project *LogicalProject, scan *LogicalScan) (LogicalPlan, bool, error) {
	pushDownSource := scan.Source.(source.SupportsProjectionPushDown)
	supportsNested := pushDownSource.SupportsNestedProjection()
	table := scan.Table
	origin := table.ProducedRowType()

	roots, hasStar := referencedRoots(project.Projections)
	if hasStar {
		// a star projection needs every column; nothing to prune
		return project, false, nil
	}
	if !supportsNested && countReferenced(roots, origin) == len(origin.Fields) {
		// pushing down "everything" would rewrite the plan to itself
		return project, false, nil
	}

	requested := project.Projections
	if r.primaryKeyRequired(table) {
		withPK, err := appendPrimaryKeyRefs(requested, table, origin)
		if err != nil {
			return nil, false, err
		}
		requested = withPK
	}

	tree, err := BuildNestedSchema(requested, origin)
	if err != nil {
		return nil, false, err
	}
	if !supportsNested {
		tree.MarkTopLevelLeaves()
	}

	var specs []source.AbilitySpec
	var newType types.Row
	if _, ok := scan.Source.(source.SupportsReadingMetadata); ok {
		newType, specs, err = applyPhysicalAndMetadataPushDown(tree, table, origin)
	} else {
		newType, specs, err = applyPhysicalPushDown(tree, origin)
	}
	if err != nil {
		return nil, false, err
	}

	newSource := scan.Source.Copy()
	for _, spec := range specs {
		if err := spec.Apply(newSource); err != nil {
			return nil, false, err
		}
	}

	newScan := &LogicalScan{
		basePlan: basePlan{
			schema: RowSchema(newType, scan.TableName, scan.Alias),
		},
		TableName:    scan.TableName,
		Alias:        scan.Alias,
		Table:        table,
		Source:       newSource,
		AbilitySpecs: specs,
		ExtraDigests: extraDigests(newType, specs),
	}

	newProjections, err := RewriteProjections(project.Projections, tree, newType)
	if err != nil {
		return nil, false, err
	}

	log.Debug("pushed projection into scan",
		log.String("table", scan.TableName),
		log.Int("leaves", len(newType.Fields)),
		log.Bool("nested", supportsNested))

	if isTrivialProjection(newProjections, newScan.Schema()) {
		// the project merely returns its input; drop it
		return newScan, true, nil
	}
	return NewLogicalProject(newScan, newProjections, project.Aliases, project.Schema()), true, nil
}

// primaryKeyRequired reports whether primary-key columns must be retained
// even when the query never references them.
func (r *PushProjectIntoScan) primaryKeyRequired(table *catalog.Table) bool {
	return catalog.IsUpsertSource(table) ||
		catalog.IsSourceChangesDuplicated(table, r.Changelog)
}

// appendPrimaryKeyRefs unions whole-column references to the primary key
// into the requested expressions. A key column missing from the origin
// schema is inconsistent catalog metadata and aborts planning.
func appendPrimaryKeyRefs(exprs []Expression, table *catalog.Table, origin types.Row) ([]Expression, error) {
	out := make([]Expression, len(exprs), len(exprs)+2)
	copy(out, exprs)
	for _, name := range table.PrimaryKey() {
		idx := origin.FieldIndex(name)
		if idx < 0 {
			return nil, errors.UndefinedColumnError(name, table.TableName).
				WithDetailf("primary key declares column %q which the scan schema does not produce", name)
		}
		out = append(out, &ColumnRef{
			ColumnName: name,
			Index:      idx,
			ColumnType: origin.Fields[idx].Type,
		})
	}
	return out, nil
}

// applyPhysicalPushDown prunes the tree and produces the single
// projection spec for sources without metadata support.
func applyPhysicalPushDown(tree *NestedSchema, origin types.Row) (types.Row, []source.AbilitySpec, error) {
	paths := tree.ToIndexPaths()
	newType, err := types.ProjectRow(origin, paths)
	if err != nil {
		return types.Row{}, nil, err
	}
	spec := &source.ProjectPushDownSpec{ProjectedPaths: paths, ProducedType: newType}
	return newType, []source.AbilitySpec{spec}, nil
}

// applyPhysicalAndMetadataPushDown splits metadata pseudo-columns out of
// the tree, prunes the physical remainder, then re-attaches the requested
// metadata leaves after the physical ones. Metadata columns are always
// requested whole; nested pruning does not reach into them.
func applyPhysicalAndMetadataPushDown(tree *NestedSchema, table *catalog.Table, origin types.Row) (types.Row, []source.AbilitySpec, error) {
	metadataKeys := table.MetadataKeys()
	physicalCount := len(origin.Fields) - len(metadataKeys)

	// detach requested metadata before pruning; declaration order is
	// preserved because keys iterate in schema order
	var usedMetadata []*NestedColumn
	for i := range metadataKeys {
		if col := tree.Remove(origin.Fields[physicalCount+i].Name); col != nil {
			usedMetadata = append(usedMetadata, col)
		}
	}

	physicalPaths := tree.ToIndexPaths()

	// re-attach metadata leaves at the positions after the physical ones
	// so reference rewriting can find them
	newIndex := len(physicalPaths)
	usedKeys := make([]string, 0, len(usedMetadata))
	combinedPaths := make([][]int, len(physicalPaths), len(physicalPaths)+len(usedMetadata))
	copy(combinedPaths, physicalPaths)
	for _, col := range usedMetadata {
		col.MarkLeaf()
		col.indexOfLeafInNewSchema = newIndex
		newIndex++
		tree.Put(col)
		usedKeys = append(usedKeys, metadataKeys[col.IndexInOriginSchema()-physicalCount])
		combinedPaths = append(combinedPaths, []int{col.IndexInOriginSchema()})
	}

	newType, err := types.ProjectRow(origin, combinedPaths)
	if err != nil {
		return types.Row{}, nil, err
	}

	specs := []source.AbilitySpec{
		&source.ProjectPushDownSpec{ProjectedPaths: physicalPaths, ProducedType: newType},
		&source.ReadingMetadataSpec{MetadataKeys: usedKeys, ProducedType: newType},
	}
	return newType, specs, nil
}

// extraDigests renders the scan digests: the projected field list and,
// when metadata pushdown applied, the metadata key list.
func extraDigests(newType types.Row, specs []source.AbilitySpec) []string {
	digests := []string{"project=[" + strings.Join(newType.FieldNames(), ", ") + "]"}
	for _, spec := range specs {
		if metadata, ok := spec.(*source.ReadingMetadataSpec); ok {
			digests = append(digests, metadata.Digest())
		}
	}
	return digests
}

// isTrivialProjection reports whether the projection is an identity
// mapping over the schema: same count, same order, same types, each
// expression a bare reference to its own position.
func isTrivialProjection(exprs []Expression, schema *Schema) bool {
	if len(exprs) != len(schema.Columns) {
		return false
	}
	for i, expr := range exprs {
		ref, ok := expr.(*ColumnRef)
		if !ok || ref.Index != i {
			return false
		}
		if ref.ColumnType == nil || !ref.ColumnType.Equals(schema.Columns[i].DataType) {
			return false
		}
	}
	return true
}

// countReferenced counts how many origin fields appear in the set.
func countReferenced(cols *ColumnSet, origin types.Row) int {
	n := 0
	for _, f := range origin.Fields {
		if cols.Contains(f.Name) {
			n++
		}
	}
	return n
}
