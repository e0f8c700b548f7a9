package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithConfig overrides the default Config (depth budget, field separator,
// throw-on-max-depth, logger).
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg.normalize() }
}

// WithClock overrides the clock used for tuple CreatedAt timestamps and, by
// extension, the check engine's "now". Exposed for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is the public API façade of spec.md §4.5: write-side operations
// (Allow, AddMember, SetParent, ...) and read-side operations (Check,
// ListAccessibleObjects, ListTuples), all evaluated against one Store and
// one Schema.
type Client struct {
	store  Store
	schema *Schema
	cfg    Config
	now    func() time.Time

	checkEngine *CheckEngine
	listEngine  *ListEngine
}

// New constructs a Client. All write-side methods return *SchemaError when
// the schema does not declare the relation flavour the operation requires
// (e.g. AddMember with no group relation).
func New(store Store, schema *Schema, opts ...Option) *Client {
	c := &Client{
		store:  store,
		schema: schema,
		cfg:    DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.checkEngine = NewCheckEngine(store, schema, c.cfg)
	c.checkEngine.now = c.now
	c.listEngine = NewListEngine(store, schema, c.cfg)
	return c
}

// Allow writes a tuple (who, relation, on) optionally bounded by when.
// relation must be a direct, permission-granting relation; Allow on a group
// or hierarchy relation fails with *SchemaError (use AddMember/SetParent).
func (c *Client) Allow(ctx context.Context, who Subject, relation Relation, on Object, when *Condition) (Tuple, error) {
	if err := requireNonEmptyIDs("Allow", who.ID, on.ID); err != nil {
		return Tuple{}, err
	}
	if !c.schema.IsDirect(relation) {
		return Tuple{}, schemaErr("Allow", ErrRelationNotDirect)
	}
	stored, err := c.write(ctx, Tuple{Subject: who, Relation: relation, Object: on, Condition: when})
	if err != nil {
		return Tuple{}, err
	}
	return stored, nil
}

// DisallowAllMatching bulk-deletes every tuple matching filter. An empty
// filter is rejected with *InvalidArgumentError before storage is touched
// (spec.md §4.2, §7, §8.7): this is a safety invariant, not an accident.
func (c *Client) DisallowAllMatching(ctx context.Context, filter TupleFilter) (int, error) {
	if err := checkFilterNotEmpty("DisallowAllMatching", filter); err != nil {
		return 0, err
	}
	n, err := c.store.Delete(ctx, filter)
	if err != nil {
		return 0, storageErr("DisallowAllMatching", err)
	}
	return n, nil
}

// AddMember writes (member, group_relation, group). Fails with *SchemaError
// if the schema declares no group relation.
func (c *Client) AddMember(ctx context.Context, member Subject, group Object) (Tuple, error) {
	if err := requireNonEmptyIDs("AddMember", member.ID, group.ID); err != nil {
		return Tuple{}, err
	}
	groupRel, ok := c.schema.GroupRelation()
	if !ok {
		return Tuple{}, schemaErr("AddMember", ErrNoGroupRelation)
	}
	return c.write(ctx, Tuple{Subject: member, Relation: groupRel, Object: group})
}

// RemoveMember deletes the (member, group_relation, group) tuple, if any.
func (c *Client) RemoveMember(ctx context.Context, member Subject, group Object) error {
	groupRel, ok := c.schema.GroupRelation()
	if !ok {
		return schemaErr("RemoveMember", ErrNoGroupRelation)
	}
	_, err := c.store.Delete(ctx, TupleFilter{
		Subject:  &member,
		Relation: groupRel,
		Object:   &group,
	})
	if err != nil {
		return storageErr("RemoveMember", err)
	}
	return nil
}

// SetParent replaces any existing parent of child with parent: it deletes
// every (child, hierarchy_relation, *) tuple, then writes
// (child, hierarchy_relation, parent). A child has at most one parent at
// any time (spec.md §3).
//
// The delete-then-write pair is not atomic unless the underlying Store
// makes it so (see storage/postgres's WithTx for a transactional variant);
// callers on a non-transactional backend may observe child briefly
// parentless (spec.md §5).
func (c *Client) SetParent(ctx context.Context, child Object, parent Object) (Tuple, error) {
	if err := requireNonEmptyIDs("SetParent", child.ID, parent.ID); err != nil {
		return Tuple{}, err
	}
	hierRel, ok := c.schema.HierarchyRelation()
	if !ok {
		return Tuple{}, schemaErr("SetParent", ErrNoHierarchyRelation)
	}

	childSubject := Subject{Type: child.Type, ID: child.ID}
	if _, err := c.store.Delete(ctx, TupleFilter{Subject: &childSubject, Relation: hierRel}); err != nil {
		return Tuple{}, storageErr("SetParent", err)
	}

	return c.write(ctx, Tuple{Subject: childSubject, Relation: hierRel, Object: parent})
}

// RemoveParent deletes child's (child, hierarchy_relation, *) tuple, if any.
func (c *Client) RemoveParent(ctx context.Context, child Object) error {
	hierRel, ok := c.schema.HierarchyRelation()
	if !ok {
		return schemaErr("RemoveParent", ErrNoHierarchyRelation)
	}
	childSubject := Subject{Type: child.Type, ID: child.ID}
	if _, err := c.store.Delete(ctx, TupleFilter{Subject: &childSubject, Relation: hierRel}); err != nil {
		return storageErr("RemoveParent", err)
	}
	return nil
}

// Check answers "may who perform action on obj?" (spec.md §4.3).
func (c *Client) Check(ctx context.Context, who Subject, action string, obj Object) (bool, error) {
	return c.checkEngine.Check(ctx, who, action, obj)
}

// ListAccessibleObjects enumerates every object of ofType who may reach,
// with the actions each reach permits, optionally filtered to a single
// action (spec.md §4.4).
func (c *Client) ListAccessibleObjects(ctx context.Context, who Subject, ofType ObjectType, action *string) ([]AccessibleObject, error) {
	return c.listEngine.ListAccessibleObjects(ctx, who, ofType, action)
}

// ListTuples is a thin pass-through to Store.FindTuples, exposed on Client
// so callers needn't hold a separate reference to the Store.
func (c *Client) ListTuples(ctx context.Context, filter TupleFilter) ([]Tuple, error) {
	tuples, err := c.store.FindTuples(ctx, filter)
	if err != nil {
		return nil, storageErr("ListTuples", err)
	}
	return tuples, nil
}

func (c *Client) write(ctx context.Context, t Tuple) (Tuple, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now()
	}
	stored, err := c.store.Write(ctx, []Tuple{t})
	if err != nil {
		return Tuple{}, storageErr("write", err)
	}
	if len(stored) == 0 {
		return Tuple{}, storageErr("write", ErrEmptyFilter)
	}
	return stored[0], nil
}

func requireNonEmptyIDs(op string, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return invalidArgErr(op, ErrEmptyID)
		}
	}
	return nil
}
