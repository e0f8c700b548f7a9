// Package core implements the evaluation core of a relationship-based
// authorization engine in the style of Google Zanzibar: a schema model, a
// tuple data model, a recursive check algorithm, and its inverse,
// list-accessible-objects. The package imports nothing beyond the standard
// library and github.com/google/uuid, so it can sit on the hot path of any
// caller regardless of which storage backend (see storage/memory,
// storage/postgres) is wired in underneath it.
package core

import (
	"strings"
	"time"
)

// Subject identifies the actor whose access is being evaluated. A Subject is
// a (type, id) pair; its Type is drawn from the schema's declared subject
// types, which are extended implicitly by any object type that is ever used
// as a group or hierarchy member (objects may themselves be subjects of
// member/parent tuples).
type Subject struct {
	Type ObjectType
	ID   string
}

// String returns the canonical "type:id" representation, used in logging
// and error messages.
func (s Subject) String() string {
	return string(s.Type) + ":" + s.ID
}

// ObjectType names a subject or object type declared in a Schema.
type ObjectType string

// Object identifies the resource being accessed. Object.ID may contain a
// field separator (Config.FieldSeparator, default "#"); everything after the
// first occurrence names a field of the base object whose id is the prefix.
// Use Field to split an object id into its base and field parts.
type Object struct {
	Type ObjectType
	ID   string
}

// String returns the canonical "type:id" representation.
func (o Object) String() string {
	return string(o.Type) + ":" + o.ID
}

// Field splits o.ID on the first occurrence of sep, returning the base
// object (same Type, prefix ID) and the field suffix. ok is false when sep
// does not occur in o.ID, in which case base equals o and field is empty.
func (o Object) Field(sep string) (base Object, field string, ok bool) {
	if sep == "" {
		return o, "", false
	}
	idx := strings.Index(o.ID, sep)
	if idx < 0 {
		return o, "", false
	}
	return Object{Type: o.Type, ID: o.ID[:idx]}, o.ID[idx+len(sep):], true
}

// Relation names an edge declared in the schema between a subject and an
// object. Every relation has exactly one flavour: direct, group, or
// hierarchy. See RelationFlavor.
type Relation string

// Condition is an optional validity window on a tuple. A tuple is active at
// time T iff (ValidSince is nil or ValidSince <= T) and (ValidUntil is nil
// or T <= ValidUntil).
type Condition struct {
	ValidSince *time.Time
	ValidUntil *time.Time
}

// ActiveAt reports whether the condition permits the tuple to be considered
// active at time t. A nil Condition is always active.
func (c *Condition) ActiveAt(t time.Time) bool {
	if c == nil {
		return true
	}
	if c.ValidSince != nil && t.Before(*c.ValidSince) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}

// TupleKey is the 5-attribute uniqueness key for a tuple. Writing a tuple
// whose key already exists overwrites the stored condition (idempotent
// write semantics at the key level); it never creates a duplicate row.
type TupleKey struct {
	SubjectType ObjectType
	SubjectID   string
	Relation    Relation
	ObjectType  ObjectType
	ObjectID    string
}

// Key returns t's uniqueness key.
func (t Tuple) Key() TupleKey {
	return TupleKey{
		SubjectType: t.Subject.Type,
		SubjectID:   t.Subject.ID,
		Relation:    t.Relation,
		ObjectType:  t.Object.Type,
		ObjectID:    t.Object.ID,
	}
}

// Tuple is an immutable stored relationship (subject, relation, object)
// with an optional validity window. Storage fills in ID and CreatedAt when
// they are unset; for a key that already exists the stored ID and CreatedAt
// are kept. The returned, stored copy always carries both.
type Tuple struct {
	ID        string
	Subject   Subject
	Relation  Relation
	Object    Object
	Condition *Condition
	CreatedAt time.Time
}

// ActiveAt reports whether t is active (per its Condition) at time t0.
func (t Tuple) ActiveAt(t0 time.Time) bool {
	return t.Condition.ActiveAt(t0)
}

// TupleFilter is a conjunctive, partial filter over tuples. Any subset of
// fields may be set; unset fields (the zero value) are not constrained.
// Subject and Object, when non-nil, match on both type and id; SubjectType
// and ObjectType alone match on type regardless of id.
type TupleFilter struct {
	Subject     *Subject
	SubjectType ObjectType
	Relation    Relation
	Object      *Object
	ObjectType  ObjectType
}

// Empty reports whether no field of the filter is set. Storage.Delete
// rejects an empty filter with InvalidArgumentError: this is a safety
// invariant, not an accident (spec.md §4.2).
func (f TupleFilter) Empty() bool {
	return f.Subject == nil && f.SubjectType == "" && f.Relation == "" &&
		f.Object == nil && f.ObjectType == ""
}

// Matches reports whether t satisfies every set field of f. It does not
// consider t.ActiveAt; callers that care about validity windows apply that
// separately (find_subjects and find_objects apply it implicitly; find_tuples
// returns all matches including inactive ones, per spec.md §4.2).
func (f TupleFilter) Matches(t Tuple) bool {
	if f.Subject != nil && (*f.Subject != t.Subject) {
		return false
	}
	if f.SubjectType != "" && f.SubjectType != t.Subject.Type {
		return false
	}
	if f.Relation != "" && f.Relation != t.Relation {
		return false
	}
	if f.Object != nil && (*f.Object != t.Object) {
		return false
	}
	if f.ObjectType != "" && f.ObjectType != t.Object.Type {
		return false
	}
	return true
}
