package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/reltuple/core"
)

// fakeStore is a minimal core.Store used only by this package's own tests,
// so the core module's test suite stays within its own module (core/go.mod)
// instead of reaching into storage/memory, which lives in the parent module
// and would create a module cycle.
type fakeStore struct {
	mu     sync.Mutex
	tuples map[core.TupleKey]core.Tuple
}

func newFakeStore() *fakeStore {
	return &fakeStore{tuples: make(map[core.TupleKey]core.Tuple)}
}

func (s *fakeStore) Write(_ context.Context, tuples []core.Tuple) ([]core.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]core.Tuple, 0, len(tuples))
	for _, t := range tuples {
		key := t.Key()
		if existing, ok := s.tuples[key]; ok {
			t.ID = existing.ID
			t.CreatedAt = existing.CreatedAt
		} else {
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = time.Now()
			}
		}
		s.tuples[key] = t
		stored = append(stored, t)
	}
	return stored, nil
}

func (s *fakeStore) Delete(_ context.Context, filter core.TupleFilter) (int, error) {
	if err := core.CheckFilterNotEmpty("fakeStore.Delete", filter); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for key, t := range s.tuples {
		if filter.Matches(t) {
			delete(s.tuples, key)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeStore) FindTuples(_ context.Context, filter core.TupleFilter) ([]core.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Tuple
	for _, t := range s.tuples {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) FindSubjects(_ context.Context, object core.Object, relation core.Relation) ([]core.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []core.Subject
	for _, t := range s.tuples {
		if t.Object == object && t.Relation == relation && t.ActiveAt(now) {
			out = append(out, t.Subject)
		}
	}
	return out, nil
}

func (s *fakeStore) FindObjects(_ context.Context, subject core.Subject, relation core.Relation) ([]core.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []core.Object
	for _, t := range s.tuples {
		if t.Subject == subject && t.Relation == relation && t.ActiveAt(now) {
			out = append(out, t.Object)
		}
	}
	return out, nil
}

var _ core.Store = (*fakeStore)(nil)

// docSchema is a small schema used across tests: user and group subjects,
// folder/doc objects, a hierarchy from doc to folder, and a "view" action
// that propagates from a folder's "viewer" relation down to its docs.
func docSchema(t *testing.T) *core.Schema {
	t.Helper()
	s, err := core.NewSchema(core.SchemaDef{
		SubjectTypes: []core.ObjectType{"user", "group"},
		ObjectTypes:  []core.ObjectType{"folder", "doc"},
		Relations: []core.RelationDef{
			{Name: "member", Flavor: core.RelationGroup},
			{Name: "parent", Flavor: core.RelationHierarchy},
			{Name: "owner", Flavor: core.RelationDirect},
			{Name: "viewer", Flavor: core.RelationDirect},
		},
		ActionToRelations: map[string][]core.Relation{
			"edit": {"owner"},
			"view": {"owner", "viewer"},
		},
		HierarchyPropagation: map[string][]string{
			"view": {"view"},
		},
	})
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T) *core.Client {
	t.Helper()
	return core.New(newFakeStore(), docSchema(t))
}

func TestNewSchema_RejectsMultipleGroupRelations(t *testing.T) {
	_, err := core.NewSchema(core.SchemaDef{
		Relations: []core.RelationDef{
			{Name: "member", Flavor: core.RelationGroup},
			{Name: "teammate", Flavor: core.RelationGroup},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMultipleGroupRelations)
}

func TestNewSchema_RejectsUndeclaredRelationInActions(t *testing.T) {
	_, err := core.NewSchema(core.SchemaDef{
		Relations: []core.RelationDef{{Name: "owner", Flavor: core.RelationDirect}},
		ActionToRelations: map[string][]core.Relation{
			"edit": {"owner", "editor"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUndeclaredRelation)
}

func TestNewSchema_RejectsPropagationWithoutHierarchy(t *testing.T) {
	_, err := core.NewSchema(core.SchemaDef{
		Relations:            []core.RelationDef{{Name: "owner", Flavor: core.RelationDirect}},
		ActionToRelations:    map[string][]core.Relation{"edit": {"owner"}},
		HierarchyPropagation: map[string][]string{"edit": {"edit"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPropagationWithoutHierarchy)
}

// S1: direct grant.
func TestCheck_DirectGrant(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	readme := core.Object{Type: "doc", ID: "readme"}

	_, err := c.Allow(ctx, alice, "owner", readme, nil)
	require.NoError(t, err)

	allowed, err := c.Check(ctx, alice, "edit", readme)
	require.NoError(t, err)
	assert.True(t, allowed)

	bob := core.Subject{Type: "user", ID: "bob"}
	allowed, err = c.Check(ctx, bob, "edit", readme)
	require.NoError(t, err)
	assert.False(t, allowed)
}

// S2: group transitivity — membership in a group that is granted a relation
// extends that relation to every member.
func TestCheck_GroupTransitivity(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	engineering := core.Object{Type: "group", ID: "engineering"}
	readme := core.Object{Type: "doc", ID: "readme"}

	_, err := c.AddMember(ctx, alice, engineering)
	require.NoError(t, err)

	engineeringAsSubject := core.Subject{Type: engineering.Type, ID: engineering.ID}
	_, err = c.Allow(ctx, engineeringAsSubject, "viewer", readme, nil)
	require.NoError(t, err)

	allowed, err := c.Check(ctx, alice, "view", readme)
	require.NoError(t, err)
	assert.True(t, allowed, "alice should inherit viewer via engineering membership")

	allowed, err = c.Check(ctx, alice, "edit", readme)
	require.NoError(t, err)
	assert.False(t, allowed, "viewer does not grant edit")
}

// S3: hierarchy propagation — a viewer of a folder can view every doc inside.
func TestCheck_HierarchyPropagation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	folder := core.Object{Type: "folder", ID: "shared"}
	doc := core.Object{Type: "doc", ID: "readme"}

	_, err := c.Allow(ctx, alice, "viewer", folder, nil)
	require.NoError(t, err)

	_, err = c.SetParent(ctx, doc, folder)
	require.NoError(t, err)

	allowed, err := c.Check(ctx, alice, "view", doc)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = c.Check(ctx, alice, "edit", doc)
	require.NoError(t, err)
	assert.False(t, allowed, "view does not propagate to edit")
}

// S4: SetParent replaces any existing parent rather than adding a second.
func TestSetParent_ReplacesExistingParent(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	oldFolder := core.Object{Type: "folder", ID: "old"}
	newFolder := core.Object{Type: "folder", ID: "new"}
	doc := core.Object{Type: "doc", ID: "readme"}

	_, err := c.Allow(ctx, alice, "viewer", oldFolder, nil)
	require.NoError(t, err)
	_, err = c.Allow(ctx, alice, "viewer", newFolder, nil)
	require.NoError(t, err)

	_, err = c.SetParent(ctx, doc, oldFolder)
	require.NoError(t, err)
	_, err = c.SetParent(ctx, doc, newFolder)
	require.NoError(t, err)

	tuples, err := c.ListTuples(ctx, core.TupleFilter{
		Subject: &core.Subject{Type: doc.Type, ID: doc.ID},
	})
	require.NoError(t, err)
	require.Len(t, tuples, 1, "child must have exactly one parent tuple")
	assert.Equal(t, newFolder, tuples[0].Object)

	allowed, err := c.Check(ctx, alice, "view", doc)
	require.NoError(t, err)
	assert.True(t, allowed, "view should now flow from the new parent")
}

// S5: a validity window bounds when a grant is active.
func TestCheck_ConditionValidityWindow(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	readme := core.Object{Type: "doc", ID: "readme"}

	past := time.Now().Add(-48 * time.Hour)
	alsoPast := time.Now().Add(-24 * time.Hour)
	_, err := c.Allow(ctx, alice, "owner", readme, &core.Condition{ValidSince: &past, ValidUntil: &alsoPast})
	require.NoError(t, err)

	allowed, err := c.Check(ctx, alice, "edit", readme)
	require.NoError(t, err)
	assert.False(t, allowed, "expired grant must not authorize")

	future := time.Now().Add(24 * time.Hour)
	_, err = c.Allow(ctx, alice, "owner", core.Object{Type: "doc", ID: "future"}, &core.Condition{ValidSince: &future})
	require.NoError(t, err)
	allowed, err = c.Check(ctx, alice, "edit", core.Object{Type: "doc", ID: "future"})
	require.NoError(t, err)
	assert.False(t, allowed, "not-yet-active grant must not authorize")
}

// S6: a bulk delete with an empty filter is rejected before touching storage.
func TestDisallowAllMatching_RejectsEmptyFilter(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.DisallowAllMatching(ctx, core.TupleFilter{})
	require.Error(t, err)
	assert.True(t, core.IsInvalidArgument(err))
}

// Mutual group membership must not loop the checker forever.
func TestCheck_CyclicGroupMembershipTerminates(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	a := core.Object{Type: "group", ID: "a"}
	b := core.Object{Type: "group", ID: "b"}
	_, err := c.AddMember(ctx, core.Subject{Type: "group", ID: "a"}, b)
	require.NoError(t, err)
	_, err = c.AddMember(ctx, core.Subject{Type: "group", ID: "b"}, a)
	require.NoError(t, err)

	alice := core.Subject{Type: "user", ID: "alice"}
	readme := core.Object{Type: "doc", ID: "readme"}

	done := make(chan struct{})
	go func() {
		_, _ = c.Check(ctx, alice, "edit", readme)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("check did not terminate on a cyclic group graph")
	}
}

// Field-suffix fallback: a grant on the base object also authorizes its
// fields when checked.
func TestCheck_FieldSuffixFallback(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	doc := core.Object{Type: "doc", ID: "readme"}
	field := core.Object{Type: "doc", ID: "readme#title"}

	_, err := c.Allow(ctx, alice, "owner", doc, nil)
	require.NoError(t, err)

	allowed, err := c.Check(ctx, alice, "edit", field)
	require.NoError(t, err)
	assert.True(t, allowed, "a grant on the base object should authorize its fields")
}

// Writes are idempotent at the tuple key: writing the same key twice
// overwrites the condition without creating a duplicate.
func TestAllow_IsIdempotentAtKey(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	readme := core.Object{Type: "doc", ID: "readme"}

	first, err := c.Allow(ctx, alice, "owner", readme, nil)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	second, err := c.Allow(ctx, alice, "owner", readme, &core.Condition{ValidSince: &future})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same key must reuse the stored ID")

	tuples, err := c.ListTuples(ctx, core.TupleFilter{
		Subject:  &alice,
		Relation: "owner",
		Object:   &readme,
	})
	require.NoError(t, err)
	require.Len(t, tuples, 1, "no duplicate row for the same key")
}

// ListAccessibleObjects and Check must agree: every object ListAccessibleObjects
// reports with an action must also pass Check for that action, and vice versa.
func TestListAccessibleObjects_AgreesWithCheck(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	alice := core.Subject{Type: "user", ID: "alice"}
	folder := core.Object{Type: "folder", ID: "shared"}
	doc1 := core.Object{Type: "doc", ID: "one"}
	doc2 := core.Object{Type: "doc", ID: "two"}
	other := core.Object{Type: "doc", ID: "unreachable"}

	_, err := c.Allow(ctx, alice, "viewer", folder, nil)
	require.NoError(t, err)
	_, err = c.SetParent(ctx, doc1, folder)
	require.NoError(t, err)
	_, err = c.SetParent(ctx, doc2, folder)
	require.NoError(t, err)
	_, err = c.Allow(ctx, alice, "owner", doc2, nil)
	require.NoError(t, err)

	results, err := c.ListAccessibleObjects(ctx, alice, "doc", nil)
	require.NoError(t, err)

	byID := make(map[string][]string, len(results))
	for _, r := range results {
		byID[r.Object.ID] = r.Actions
	}

	_, reachesOther := byID[other.ID]
	assert.False(t, reachesOther, "unrelated doc must not be listed")

	for id, actions := range byID {
		obj := core.Object{Type: "doc", ID: id}
		for _, action := range actions {
			allowed, err := c.Check(ctx, alice, action, obj)
			require.NoError(t, err)
			assert.True(t, allowed, "listed action %s on %s must pass Check", action, id)
		}
	}

	viewAllowed, err := c.Check(ctx, alice, "view", doc1)
	require.NoError(t, err)
	require.True(t, viewAllowed)
	assert.Contains(t, byID[doc1.ID], "view")

	editAllowed, err := c.Check(ctx, alice, "edit", doc2)
	require.NoError(t, err)
	require.True(t, editAllowed)
	assert.Contains(t, byID[doc2.ID], "edit")
}

func TestAllow_RejectsNonDirectRelation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Allow(ctx, core.Subject{Type: "user", ID: "alice"}, "member", core.Object{Type: "group", ID: "g"}, nil)
	require.Error(t, err)
	assert.True(t, core.IsSchemaError(err))
}

func TestAddMember_RequiresGroupRelation(t *testing.T) {
	ctx := context.Background()
	schema, err := core.NewSchema(core.SchemaDef{
		Relations:         []core.RelationDef{{Name: "owner", Flavor: core.RelationDirect}},
		ActionToRelations: map[string][]core.Relation{"edit": {"owner"}},
	})
	require.NoError(t, err)
	c := core.New(newFakeStore(), schema)

	_, err = c.AddMember(ctx, core.Subject{Type: "user", ID: "alice"}, core.Object{Type: "group", ID: "g"})
	require.Error(t, err)
	assert.True(t, core.IsSchemaError(err))
}
