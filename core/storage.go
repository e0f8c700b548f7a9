package core

import "context"

// Store is the narrow storage contract the check and list-accessible
// engines evaluate against: five operations, deliberately minimal so both
// an in-memory reference backend (storage/memory) and a persisted backend
// (storage/postgres) can satisfy it without the engine changing at all
// (spec.md §4.2, §9).
//
// Backends with a native query language should push filters down; backends
// without one may linear-scan. FindSubjects and FindObjects are derivable
// from FindTuples but specified separately so backends can serve them with
// targeted indexes.
type Store interface {
	// Write upserts tuples by their 5-attribute key and returns the stored
	// copies (with ID and CreatedAt populated). Writing a key that already
	// exists overwrites its condition; it does not create a duplicate.
	Write(ctx context.Context, tuples []Tuple) ([]Tuple, error)

	// Delete removes every tuple matching filter and returns the count
	// removed. An empty filter is rejected with an *InvalidArgumentError
	// before any backend call is made.
	Delete(ctx context.Context, filter TupleFilter) (int, error)

	// FindTuples returns every tuple matching filter, including inactive
	// ones (callers apply ActiveAt themselves). Order is unspecified.
	FindTuples(ctx context.Context, filter TupleFilter) ([]Tuple, error)

	// FindSubjects returns the subjects S such that (S, relation, object)
	// exists and is active at "now".
	FindSubjects(ctx context.Context, object Object, relation Relation) ([]Subject, error)

	// FindObjects returns the objects O such that (subject, relation, O)
	// exists and is active at "now".
	FindObjects(ctx context.Context, subject Subject, relation Relation) ([]Object, error)
}

// checkFilterNotEmpty is the single enforcement point for the "empty filter
// is rejected" safety invariant, called by every Store implementation's
// Delete before it touches the backend.
func checkFilterNotEmpty(op string, f TupleFilter) error {
	if f.Empty() {
		return invalidArgErr(op, ErrEmptyFilter)
	}
	return nil
}

// CheckFilterNotEmpty is the exported form of checkFilterNotEmpty, for use
// by Store implementations living outside this module (e.g. storage/postgres).
func CheckFilterNotEmpty(op string, f TupleFilter) error {
	return checkFilterNotEmpty(op, f)
}
