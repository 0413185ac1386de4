package catalog

// ChangelogOptions carries the session options that influence changelog
// classification.
type ChangelogOptions struct {
	// SourceEventsDuplicate is set when sources are known to deliver change
	// events at-least-once, so updates and deletions may arrive more than
	// once and need primary-key deduplication downstream.
	SourceEventsDuplicate bool
}

// IsUpsertSource reports whether the table's source emits records that must
// be correlated by primary key to apply insert/update/delete semantics.
func IsUpsertSource(t *Table) bool {
	return t.ChangelogMode == UpsertMode && len(t.PrimaryKey()) > 0
}

// IsSourceChangesDuplicated reports whether the source may replay change
// events, requiring the primary key downstream for deduplication.
func IsSourceChangesDuplicated(t *Table, opts ChangelogOptions) bool {
	return opts.SourceEventsDuplicate &&
		t.ChangelogMode != AppendMode &&
		len(t.PrimaryKey()) > 0
}
