package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the schema- and invalid-argument-error kinds. Schema
// and invalid-argument errors are programmer errors: they are raised
// immediately at the API boundary and are never returned by Check, which
// only ever answers allowed/denied (spec.md §7).
var (
	// ErrUndeclaredRelation is wrapped by SchemaError when action_to_relations
	// names a relation that was never declared.
	ErrUndeclaredRelation = errors.New("reltuple: undeclared relation")

	// ErrMultipleGroupRelations is wrapped by SchemaError when a schema
	// declares more than one group-flavoured relation.
	ErrMultipleGroupRelations = errors.New("reltuple: at most one group relation is permitted")

	// ErrMultipleHierarchyRelations is wrapped by SchemaError when a schema
	// declares more than one hierarchy-flavoured relation.
	ErrMultipleHierarchyRelations = errors.New("reltuple: at most one hierarchy relation is permitted")

	// ErrPropagationWithoutHierarchy is wrapped by SchemaError when
	// hierarchy_propagation is non-empty but no hierarchy relation exists.
	ErrPropagationWithoutHierarchy = errors.New("reltuple: hierarchy_propagation requires a hierarchy relation")

	// ErrNoGroupRelation is returned by AddMember/RemoveMember when the
	// schema declares no group relation.
	ErrNoGroupRelation = errors.New("reltuple: schema declares no group relation")

	// ErrNoHierarchyRelation is returned by SetParent/RemoveParent when the
	// schema declares no hierarchy relation.
	ErrNoHierarchyRelation = errors.New("reltuple: schema declares no hierarchy relation")

	// ErrRelationNotDirect is returned by Allow when the target relation is
	// not a direct, permission-granting relation.
	ErrRelationNotDirect = errors.New("reltuple: relation is not direct")

	// ErrEmptyFilter is wrapped by InvalidArgumentError by DisallowAllMatching
	// and Store.Delete when called with an unconstrained filter.
	ErrEmptyFilter = errors.New("reltuple: delete requires a non-empty filter")

	// ErrEmptyID is wrapped by InvalidArgumentError when a subject or object
	// id is the empty string.
	ErrEmptyID = errors.New("reltuple: subject or object id must not be empty")
)

// SchemaError reports a schema-construction or schema-usage failure: an
// undeclared relation referenced by an action or propagation rule, or an
// operation (Allow, AddMember, SetParent) that requires a relation flavour
// the schema does not declare.
type SchemaError struct {
	Op  string // operation or construction step that failed
	Err error  // one of the sentinel errors above
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reltuple: schema error in %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(op string, err error) *SchemaError {
	return &SchemaError{Op: op, Err: err}
}

// InvalidArgumentError reports a caller error: an empty bulk-delete filter,
// an empty subject/object id, or an unknown subject/object type. These are
// programmer errors raised immediately, not denials.
type InvalidArgumentError struct {
	Op  string
	Err error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("reltuple: invalid argument in %s: %v", e.Op, e.Err)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Err }

func invalidArgErr(op string, err error) *InvalidArgumentError {
	return &InvalidArgumentError{Op: op, Err: err}
}

// MaxDepthExceededError is returned by Check only when
// Config.ThrowOnMaxDepth is set; otherwise the engine logs a warning
// through Config.Logger and returns false (spec.md §5, §7).
// ListAccessibleObjects never returns it: on reaching its depth limit it
// logs a warning and returns the objects collected so far.
type MaxDepthExceededError struct {
	Subject Subject
	Action  string
	Object  Object
	Depth   int
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("reltuple: max depth %d exceeded checking %s can %s on %s",
		e.Depth, e.Subject, e.Action, e.Object)
}

// StorageError wraps an error returned verbatim by a Store implementation,
// preserving Unwrap so callers can still errors.Is/As against backend-
// specific sentinels (e.g. a driver's context.DeadlineExceeded).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("reltuple: storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var e *SchemaError
	return errors.As(err, &e)
}

// IsInvalidArgument reports whether err is or wraps an *InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

// IsMaxDepthExceeded reports whether err is or wraps a *MaxDepthExceededError.
func IsMaxDepthExceeded(err error) bool {
	var e *MaxDepthExceededError
	return errors.As(err, &e)
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}
