// Package source defines the abstract table source the planner pushes
// work into. A concrete source advertises optional capabilities by
// implementing the corresponding interface; the planner tests for them
// with type assertions and records every applied pushdown as an
// AbilitySpec on the scan.
package source

import (
	"github.com/cascadedb/cascade/internal/sql/types"
)

// Source is a handle to a table source implementation. Sources are
// mutated only through ability specs, and only ever on a copy, so a
// failed rewrite leaves the original scan untouched.
type Source interface {
	// Name identifies the source kind (e.g. "inmem").
	Name() string
	// Copy returns a deep copy the planner may apply ability specs to.
	Copy() Source
}

// SupportsProjectionPushDown is implemented by sources that can limit the
// columns they produce.
type SupportsProjectionPushDown interface {
	Source

	// SupportsNestedProjection reports whether the source can project
	// individual fields out of struct-typed columns. Without it the
	// planner falls back to whole top-level columns.
	SupportsNestedProjection() bool

	// ApplyProjection declares that the source will only produce the
	// given leaf paths, in the given compacted row type. Paths are
	// root-to-leaf index walks through the source's original schema.
	ApplyProjection(paths [][]int, producedType types.Row) error
}

// SupportsReadingMetadata is implemented by sources that can surface
// metadata pseudo-columns (e.g. an ingestion timestamp) on request.
type SupportsReadingMetadata interface {
	Source

	// ApplyReadableMetadata declares the metadata keys the source must
	// emit, appended after the physical columns of producedType.
	ApplyReadableMetadata(metadataKeys []string, producedType types.Row) error
}
