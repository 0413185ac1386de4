package source

import (
	"strings"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// AbilitySpec is a declarative record of one capability application. The
// scan node keeps the specs that produced it, both so the rewrite never
// fires twice and so explain output can show what was pushed down.
type AbilitySpec interface {
	// Apply mutates the given source. The planner only ever calls this
	// on a copy of the original source.
	Apply(src Source) error
	// Digest returns the human-readable form used in plan explain output.
	Digest() string
}

// ProjectPushDownSpec narrows the source output to the projected paths.
type ProjectPushDownSpec struct {
	// ProjectedPaths are root-to-leaf index walks through the original
	// schema, one per retained leaf, in output order.
	ProjectedPaths [][]int
	// ProducedType is the compacted row type the source produces after
	// the projection is applied.
	ProducedType types.Row
}

func (s *ProjectPushDownSpec) Apply(src Source) error {
	pushDown, ok := src.(SupportsProjectionPushDown)
	if !ok {
		return errors.InternalErrorf("source %q does not support projection push down", src.Name())
	}
	for _, path := range s.ProjectedPaths {
		if len(path) == 0 {
			return errors.InvalidPathError(path, "path must not be empty")
		}
	}
	return pushDown.ApplyProjection(s.ProjectedPaths, s.ProducedType)
}

func (s *ProjectPushDownSpec) Digest() string {
	return "project=[" + strings.Join(s.ProducedType.FieldNames(), ", ") + "]"
}

// ReadingMetadataSpec requests metadata keys from the source. It is
// always expressed against a produced type that already reflects
// physical projection, with the metadata fields trailing.
type ReadingMetadataSpec struct {
	MetadataKeys []string
	ProducedType types.Row
}

func (s *ReadingMetadataSpec) Apply(src Source) error {
	reading, ok := src.(SupportsReadingMetadata)
	if !ok {
		return errors.InternalErrorf("source %q does not support reading metadata", src.Name())
	}
	return reading.ApplyReadableMetadata(s.MetadataKeys, s.ProducedType)
}

func (s *ReadingMetadataSpec) Digest() string {
	return "metadata=[" + strings.Join(s.MetadataKeys, ", ") + "]"
}
