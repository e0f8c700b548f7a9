package core

import (
	"context"
	"time"
)

// CheckEngine evaluates the recursive check algorithm of spec.md §4.3
// against a Store and a Schema: direct match, field fallback, group
// expansion, hierarchy propagation, in that order, short-circuiting on the
// first true result.
type CheckEngine struct {
	store  Store
	schema *Schema
	cfg    Config
	now    func() time.Time
}

// NewCheckEngine constructs a CheckEngine. cfg is normalized against
// DefaultConfig for any zero-valued field.
func NewCheckEngine(store Store, schema *Schema, cfg Config) *CheckEngine {
	return &CheckEngine{
		store:  store,
		schema: schema,
		cfg:    cfg.normalize(),
		now:    time.Now,
	}
}

// evalState is the per-top-level-call recursion budget and visited set
// shared by group expansion and hierarchy propagation, so that an
// adversarial schema cannot hide unbounded recursion behind alternating
// relation flavours (spec.md §9). It is created fresh by every call to
// Check and discarded afterwards; it carries no state across calls.
type evalState struct {
	remaining int
	visited   map[string]bool
	now       time.Time
}

func nodeKeyObject(o Object) string  { return string(o.Type) + ":" + o.ID }
func nodeKeySubject(s Subject) string { return string(s.Type) + ":" + s.ID }

// Check answers "may who perform action on obj?" per spec.md §4.3. It never
// returns an error for a denied check — denial is (false, nil). Errors
// surface only storage failures and, when Config.ThrowOnMaxDepth is set,
// *MaxDepthExceededError.
func (e *CheckEngine) Check(ctx context.Context, who Subject, action string, obj Object) (bool, error) {
	st := &evalState{
		remaining: e.cfg.DefaultCheckDepth,
		visited:   make(map[string]bool),
		now:       e.now(),
	}
	return e.evalAction(ctx, who, action, obj, st)
}

// evalAction implements steps 1 and 6 (action resolution / default false)
// and dispatches to steps 2-5 in order.
func (e *CheckEngine) evalAction(ctx context.Context, who Subject, action string, obj Object, st *evalState) (bool, error) {
	relations := e.schema.RelationsForAction(action)
	propagation := e.schema.PropagationForAction(action)
	if len(relations) == 0 && len(propagation) == 0 {
		return false, nil
	}

	// Steps 2-3: direct check with field fallback.
	if len(relations) > 0 {
		ok, err := e.directWithFieldFallback(ctx, who, relations, obj, st)
		if err != nil || ok {
			return ok, err
		}
	}

	// Step 4: group expansion.
	if groupRel, hasGroup := e.schema.GroupRelation(); hasGroup && len(relations) > 0 {
		ok, err := e.groupExpansion(ctx, who, relations, obj, st, groupRel)
		if err != nil || ok {
			return ok, err
		}
	}

	// Step 5: hierarchy propagation.
	if hierRel, hasHier := e.schema.HierarchyRelation(); hasHier && len(propagation) > 0 {
		ok, err := e.hierarchyPropagation(ctx, who, action, propagation, obj, st, hierRel)
		if err != nil || ok {
			return ok, err
		}
	}

	return false, nil
}

// directWithFieldFallback implements step 2 (direct check) and step 3
// (field fallback). Field fallback is a rewrite of the object, applied
// before and independently of group/hierarchy expansion (spec.md §9): it
// recurses on the base object with the same subject, relations, and
// action, strictly shortening the object id each time, so it terminates
// without needing to consume the shared depth budget.
func (e *CheckEngine) directWithFieldFallback(ctx context.Context, subj Subject, relations []Relation, obj Object, st *evalState) (bool, error) {
	ok, err := e.directCheck(ctx, subj, relations, obj, st.now)
	if err != nil || ok {
		return ok, err
	}
	if base, _, hasField := obj.Field(e.cfg.FieldSeparator); hasField {
		return e.directWithFieldFallback(ctx, subj, relations, base, st)
	}
	return false, nil
}

// directCheck implements step 2: a single Store round trip for subj's
// tuples on obj, filtered in memory by relation membership and validity.
// Batching the relation set into one FindTuples call (rather than one call
// per relation) follows spec.md §9's "implementations should prefer
// batching when the backend supports it."
func (e *CheckEngine) directCheck(ctx context.Context, subj Subject, relations []Relation, obj Object, now time.Time) (bool, error) {
	relSet := make(map[Relation]bool, len(relations))
	for _, r := range relations {
		relSet[r] = true
	}

	tuples, err := e.store.FindTuples(ctx, TupleFilter{Subject: &subj, Object: &obj})
	if err != nil {
		return false, storageErr("Check.directCheck", err)
	}
	for _, t := range tuples {
		if relSet[t.Relation] && t.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

// groupExpansion implements step 4: breadth-first traversal of who's
// transitive groups (who's direct groups, then their groups, and so on),
// attempting the direct-plus-field-fallback check against each reached
// group. Cycle-guarded by evalState.visited and depth-limited by
// evalState.remaining.
func (e *CheckEngine) groupExpansion(ctx context.Context, who Subject, relations []Relation, obj Object, st *evalState, groupRel Relation) (bool, error) {
	queue := []Subject{who}
	st.visited[nodeKeySubject(who)] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if st.remaining <= 0 {
			return e.depthExceeded(who, "", obj, st)
		}
		st.remaining--

		groups, err := e.store.FindObjects(ctx, current, groupRel)
		if err != nil {
			return false, storageErr("Check.groupExpansion", err)
		}
		for _, g := range groups {
			gs := Subject{Type: g.Type, ID: g.ID}
			k := nodeKeySubject(gs)
			if st.visited[k] {
				continue
			}
			st.visited[k] = true

			ok, err := e.directWithFieldFallback(ctx, gs, relations, obj, st)
			if err != nil || ok {
				return ok, err
			}
			queue = append(queue, gs)
		}
	}
	return false, nil
}

// hierarchyPropagation implements step 5: for every parent of obj (filtered
// to hierarchy-capable types), and every parent-side action that propagates
// to action, recursively check whether who may perform that parent-side
// action on the parent. A hit short-circuits to true.
func (e *CheckEngine) hierarchyPropagation(ctx context.Context, who Subject, action string, propagation []string, obj Object, st *evalState, hierRel Relation) (bool, error) {
	if st.remaining <= 0 {
		return e.depthExceeded(who, action, obj, st)
	}
	st.remaining--

	parents, err := e.store.FindObjects(ctx, Subject{Type: obj.Type, ID: obj.ID}, hierRel)
	if err != nil {
		return false, storageErr("Check.hierarchyPropagation", err)
	}

	for _, p := range parents {
		if !e.schema.HierarchyCapable(p.Type) {
			continue
		}
		k := nodeKeyObject(p)
		if st.visited[k] {
			continue
		}
		st.visited[k] = true

		for _, parentAction := range propagation {
			ok, err := e.evalAction(ctx, who, parentAction, p, st)
			if err != nil || ok {
				return ok, err
			}
		}
	}
	return false, nil
}

// depthExceeded implements the policy choice of spec.md §5/§7: raise
// MaxDepthExceededError when configured to, otherwise log a warning and
// return false. Exceeding the cap returns false only for this branch; it
// does not fail sibling branches explored before the cap was hit.
func (e *CheckEngine) depthExceeded(who Subject, action string, obj Object, st *evalState) (bool, error) {
	if e.cfg.ThrowOnMaxDepth {
		return false, &MaxDepthExceededError{
			Subject: who,
			Action:  action,
			Object:  obj,
			Depth:   e.cfg.DefaultCheckDepth,
		}
	}
	e.cfg.Logger.Warn("reltuple: check max depth exceeded",
		"subject", who.String(), "action", action, "object", obj.String(),
		"depth", e.cfg.DefaultCheckDepth)
	return false, nil
}
