// Package inmem provides an in-memory table source used by tests and the
// explain CLI. It implements projection pushdown (optionally nested) and,
// via MetadataSource, readable metadata.
package inmem

import (
	"github.com/google/uuid"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/log"
	"github.com/cascadedb/cascade/internal/source"
	"github.com/cascadedb/cascade/internal/sql/types"
)

// Source is an in-memory source supporting projection pushdown. Each
// instance carries a unique id; copies get fresh ids so applied state is
// traceable in logs.
type Source struct {
	id     string
	table  string
	nested bool

	// state set by applied ability specs
	ProjectedPaths [][]int
	ProducedType   types.Row
	applied        bool
}

// New creates a source for the named table. nested controls whether the
// source claims nested-projection support.
func New(table string, nested bool) *Source {
	return &Source{
		id:     uuid.NewString(),
		table:  table,
		nested: nested,
	}
}

func (s *Source) Name() string { return "inmem" }

// ID returns the unique instance id.
func (s *Source) ID() string { return s.id }

func (s *Source) Copy() source.Source {
	return s.copy()
}

func (s *Source) copy() *Source {
	cp := *s
	cp.id = uuid.NewString()
	cp.ProjectedPaths = make([][]int, len(s.ProjectedPaths))
	for i, p := range s.ProjectedPaths {
		cp.ProjectedPaths[i] = append([]int(nil), p...)
	}
	return &cp
}

func (s *Source) SupportsNestedProjection() bool { return s.nested }

func (s *Source) ApplyProjection(paths [][]int, producedType types.Row) error {
	for _, path := range paths {
		if len(path) > 1 && !s.nested {
			return errors.InvalidPathError(path, "source does not support nested projection")
		}
	}
	s.ProjectedPaths = paths
	s.ProducedType = producedType
	s.applied = true
	log.Debug("projection applied to inmem source",
		log.String("source_id", s.id),
		log.String("table", s.table),
		log.Int("paths", len(paths)))
	return nil
}

// ProjectionApplied reports whether a projection has been pushed into
// this instance.
func (s *Source) ProjectionApplied() bool { return s.applied }

// MetadataSource is an in-memory source that can additionally surface
// metadata pseudo-columns.
type MetadataSource struct {
	Source
	AvailableKeys []string

	RequestedKeys []string
}

// NewWithMetadata creates a metadata-capable source offering the given keys.
func NewWithMetadata(table string, nested bool, keys []string) *MetadataSource {
	return &MetadataSource{
		Source:        *New(table, nested),
		AvailableKeys: keys,
	}
}

func (s *MetadataSource) Copy() source.Source {
	return &MetadataSource{
		Source:        *s.Source.copy(),
		AvailableKeys: append([]string(nil), s.AvailableKeys...),
		RequestedKeys: append([]string(nil), s.RequestedKeys...),
	}
}

func (s *MetadataSource) ApplyReadableMetadata(metadataKeys []string, producedType types.Row) error {
	for _, key := range metadataKeys {
		if !contains(s.AvailableKeys, key) {
			return errors.Newf(errors.InvalidParameterValue,
				"metadata key %q is not offered by source %q", key, s.table)
		}
	}
	s.RequestedKeys = metadataKeys
	s.ProducedType = producedType
	return nil
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
