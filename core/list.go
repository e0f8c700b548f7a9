package core

import (
	"context"
	"slices"
	"sort"
)

// AccessibleObject describes one object a subject may reach, the actions
// that reach permits, and (when known) the object's immediate parent, for
// caller context (spec.md §4.4).
type AccessibleObject struct {
	Object  Object
	Actions []string
	Parent  *Object
}

// ListEngine implements list_accessible_objects (spec.md §4.4): the inverse
// of Check, enumerating every object of a given type a subject may reach
// together with the actions each reach permits.
type ListEngine struct {
	store  Store
	schema *Schema
	cfg    Config
}

// NewListEngine constructs a ListEngine sharing the same Store/Schema/Config
// shape as CheckEngine.
func NewListEngine(store Store, schema *Schema, cfg Config) *ListEngine {
	return &ListEngine{store: store, schema: schema, cfg: cfg.normalize()}
}

// accum is the per-object accumulator used while building the result set:
// actions granted so far, and the first (shortest-path) parent observed.
type accum struct {
	object  Object
	actions map[string]bool
	parent  *Object
}

// ListAccessibleObjects implements spec.md §4.4 steps 1-6. When action is
// nil, every direct-or-group relation is a candidate (step 1, "all" mode);
// when action is non-nil, only the relations that grant it are considered,
// and only that action is ever recorded against a reached object — per the
// reference interpretation of the Open Question in spec.md §9 ("the
// reference consumer appears to want only matching [relations]").
func (e *ListEngine) ListAccessibleObjects(ctx context.Context, who Subject, ofType ObjectType, action *string) ([]AccessibleObject, error) {
	candidates := e.candidateRelations(action)
	reached := make(map[string]*accum)

	// Objects of every type are recorded so that ancestors of ofType objects
	// (e.g. a folder above a doc) can seed the step 4 descent; step 6 keeps
	// only ofType objects in the result.
	record := func(obj Object, rel Relation) {
		key := nodeKeyObject(obj)
		rec, ok := reached[key]
		if !ok {
			rec = &accum{object: obj, actions: make(map[string]bool)}
			reached[key] = rec
		}
		if action != nil {
			rec.actions[*action] = true
		} else {
			rec.actions["__rel__"+string(rel)] = true // transient marker, resolved below
		}
	}

	// Step 2: direct reach.
	for _, rel := range candidates {
		objs, err := e.store.FindObjects(ctx, who, rel)
		if err != nil {
			return nil, storageErr("ListAccessibleObjects.direct", err)
		}
		for _, o := range objs {
			record(o, rel)
		}
	}

	// Step 3: expand via groups, same BFS shape as the check engine's.
	if groupRel, hasGroup := e.schema.GroupRelation(); hasGroup {
		if err := e.expandViaGroups(ctx, who, candidates, record, groupRel); err != nil {
			return nil, err
		}
	}

	// Resolve the transient relation markers into real actions (no-filter mode).
	if action == nil {
		for _, rec := range reached {
			held := make(map[Relation]bool)
			for marker := range rec.actions {
				if len(marker) > 7 && marker[:7] == "__rel__" {
					held[Relation(marker[7:])] = true
				}
			}
			rec.actions = make(map[string]bool)
			for _, a := range e.schema.ActionsGrantedBy(held) {
				rec.actions[a] = true
			}
		}
	}

	// Step 4: propagate down hierarchies.
	if hierRel, hasHier := e.schema.HierarchyRelation(); hasHier {
		if err := e.propagateDescendants(ctx, reached, ofType, hierRel, action); err != nil {
			return nil, err
		}
	}

	// Step 5 (field fallback): a base object's actions also cover any
	// field-scoped object of the same base that actually exists in storage.
	if err := e.expandFieldSubobjects(ctx, reached, ofType); err != nil {
		return nil, err
	}

	// Step 6: assemble, deterministic order.
	out := make([]AccessibleObject, 0, len(reached))
	for _, rec := range reached {
		if rec.object.Type != ofType {
			continue
		}
		ao := AccessibleObject{Object: rec.object, Parent: rec.parent}
		for a := range rec.actions {
			ao.Actions = append(ao.Actions, a)
		}
		slices.Sort(ao.Actions)
		out = append(out, ao)
	}
	sortAccessibleObjects(out)
	return out, nil
}

// candidateRelations implements step 1.
func (e *ListEngine) candidateRelations(action *string) []Relation {
	if action == nil {
		return e.schema.AllDirectAndGroupRelations()
	}
	return e.schema.RelationsForAction(*action)
}

// expandViaGroups implements step 3: BFS over who's transitive groups,
// calling record for every (object, relation) pair reached through each
// group, depth-limited and cycle-guarded exactly like the check engine's
// group expansion.
func (e *ListEngine) expandViaGroups(ctx context.Context, who Subject, candidates []Relation, record func(Object, Relation), groupRel Relation) error {
	visited := map[string]bool{nodeKeySubject(who): true}
	queue := []Subject{who}
	remaining := e.cfg.DefaultCheckDepth

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if remaining <= 0 {
			e.cfg.Logger.Warn("reltuple: list_accessible_objects group expansion max depth exceeded",
				"subject", who.String())
			return nil
		}
		remaining--

		groups, err := e.store.FindObjects(ctx, current, groupRel)
		if err != nil {
			return storageErr("ListAccessibleObjects.groups", err)
		}
		for _, g := range groups {
			gs := Subject{Type: g.Type, ID: g.ID}
			k := nodeKeySubject(gs)
			if visited[k] {
				continue
			}
			visited[k] = true

			for _, rel := range candidates {
				objs, err := e.store.FindObjects(ctx, gs, rel)
				if err != nil {
					return storageErr("ListAccessibleObjects.groups", err)
				}
				for _, o := range objs {
					record(o, rel)
				}
			}
			queue = append(queue, gs)
		}
	}
	return nil
}

// propagateDescendants implements step 4: breadth-first descent through the
// hierarchy from every object reached in steps 2-3, granting a descendant
// action A whenever an ancestor currently holds some parentAction in
// hierarchy_propagation[A]. Each level's action set is recomputed from the
// level above, so multi-level propagation chains (as in the check engine's
// recursive hierarchy step) are honoured.
func (e *ListEngine) propagateDescendants(ctx context.Context, reached map[string]*accum, ofType ObjectType, hierRel Relation, actionFilter *string) error {
	rules := e.schema.AllPropagationRules()
	if actionFilter != nil {
		filtered := make(map[string][]string)
		if rs, ok := rules[*actionFilter]; ok {
			filtered[*actionFilter] = rs
		}
		rules = filtered
	}
	if len(rules) == 0 {
		return nil
	}

	type frontierEntry struct {
		obj     Object
		actions map[string]bool
		parent  *Object
	}
	var frontier []frontierEntry
	visited := make(map[string]bool)
	for _, rec := range reached {
		frontier = append(frontier, frontierEntry{obj: rec.object, actions: copyActions(rec.actions), parent: rec.parent})
		visited[nodeKeyObject(rec.object)] = true
	}

	remaining := e.cfg.DefaultCheckDepth
	for len(frontier) > 0 {
		var next []frontierEntry
		for _, f := range frontier {
			if !e.schema.HierarchyCapable(f.obj.Type) {
				continue
			}
			if remaining <= 0 {
				e.cfg.Logger.Warn("reltuple: list_accessible_objects hierarchy propagation max depth exceeded")
				break
			}
			remaining--

			children, err := e.store.FindSubjects(ctx, f.obj, hierRel)
			if err != nil {
				return storageErr("ListAccessibleObjects.descendants", err)
			}
			for _, c := range children {
				child := Object{Type: c.Type, ID: c.ID}
				childActions := make(map[string]bool)
				for act, parentActs := range rules {
					for _, pa := range parentActs {
						if f.actions[pa] {
							childActions[act] = true
							break
						}
					}
				}
				if len(childActions) == 0 {
					continue
				}

				parentCopy := f.obj
				if child.Type == ofType {
					key := nodeKeyObject(child)
					rec, ok := reached[key]
					if !ok {
						rec = &accum{object: child, actions: make(map[string]bool), parent: &parentCopy}
						reached[key] = rec
					}
					for a := range childActions {
						rec.actions[a] = true
					}
					if rec.parent == nil {
						rec.parent = &parentCopy
					}
				}

				k := nodeKeyObject(child)
				if !visited[k] {
					visited[k] = true
					next = append(next, frontierEntry{obj: child, actions: childActions, parent: &parentCopy})
				}
			}
		}
		frontier = next
	}
	return nil
}

// expandFieldSubobjects implements the field-fallback clause of step 5: a
// base object's actions are unioned onto every field-scoped object of the
// same base that is actually present (as some tuple's object) in storage.
// It never invents a field object that storage has no record of.
func (e *ListEngine) expandFieldSubobjects(ctx context.Context, reached map[string]*accum, ofType ObjectType) error {
	sep := e.cfg.FieldSeparator
	tuples, err := e.store.FindTuples(ctx, TupleFilter{ObjectType: ofType})
	if err != nil {
		return storageErr("ListAccessibleObjects.fields", err)
	}

	seen := make(map[string]bool)
	for _, t := range tuples {
		base, _, hasField := t.Object.Field(sep)
		if !hasField {
			continue
		}
		baseKey := nodeKeyObject(base)
		baseRec, ok := reached[baseKey]
		if !ok {
			continue
		}
		fieldKey := nodeKeyObject(t.Object)
		if seen[fieldKey] {
			continue
		}
		seen[fieldKey] = true

		rec, ok := reached[fieldKey]
		if !ok {
			rec = &accum{object: t.Object, actions: make(map[string]bool), parent: baseRec.parent}
			reached[fieldKey] = rec
		}
		for a := range baseRec.actions {
			rec.actions[a] = true
		}
	}
	return nil
}

func copyActions(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortAccessibleObjects(out []AccessibleObject) {
	sort.Slice(out, func(i, j int) bool {
		return out[i].Object.String() < out[j].Object.String()
	})
}
