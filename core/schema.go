package core

import "slices"

// RelationFlavor is a closed, tagged set: every relation a Schema declares
// is exactly one of these three. Implemented as an enum rather than open
// polymorphism per spec.md §9 — a relation's behaviour in the check and
// list-accessible engines is fully determined by its flavour, there is no
// room for caller-supplied variants.
type RelationFlavor int

const (
	// RelationDirect is a permission-granting relation (e.g. owner, editor).
	RelationDirect RelationFlavor = iota
	// RelationGroup is the schema's membership relation. At most one may
	// exist; a tuple (S, group_relation, G) means S belongs to group G.
	RelationGroup
	// RelationHierarchy is the schema's parent relation. At most one may
	// exist; a tuple (C, hierarchy_relation, P) means P is the parent of C.
	RelationHierarchy
)

func (f RelationFlavor) String() string {
	switch f {
	case RelationDirect:
		return "direct"
	case RelationGroup:
		return "group"
	case RelationHierarchy:
		return "hierarchy"
	default:
		return "unknown"
	}
}

// RelationDef declares a single relation and its flavour.
type RelationDef struct {
	Name   Relation
	Flavor RelationFlavor
}

// SchemaDef is the raw, unvalidated declaration passed to NewSchema. It
// mirrors spec.md §6's "declarative value" shape directly, and is also the
// shape pkg/schemafile and pkg/openfgaconvert produce.
type SchemaDef struct {
	SubjectTypes         []ObjectType
	ObjectTypes          []ObjectType
	Relations            []RelationDef
	ActionToRelations    map[string][]Relation
	HierarchyPropagation map[string][]string
}

// Schema is a validated, immutable authorization model: the set of declared
// subject/object types, relations and their flavours, the action-to-relation
// map, and the hierarchy propagation map. Construct with NewSchema; a Schema
// value is never partially valid.
type Schema struct {
	subjectTypes []ObjectType
	objectTypes  []ObjectType
	relations    map[Relation]RelationFlavor
	actionToRel  map[string][]Relation
	propagation  map[string][]string

	groupRelation      Relation
	hasGroupRelation   bool
	hierarchyRelation  Relation
	hasHierarchyRel    bool
	hierarchyCapable   map[ObjectType]bool
	allDirectAndGroup  []Relation // stable order, for "no action filter" list-accessible queries
}

// NewSchema validates def and returns an immutable Schema, or a *SchemaError
// describing the first invariant violated (spec.md §4.1):
//
//   - every relation referenced by action_to_relations must be declared;
//   - at most one group relation and at most one hierarchy relation;
//   - hierarchy_propagation may only be non-empty when a hierarchy relation
//     exists.
//
// The action names inside hierarchy_propagation (keys and parent-side
// actions) are stored as given; they are not checked against the actions
// of action_to_relations.
func NewSchema(def SchemaDef) (*Schema, error) {
	s := &Schema{
		subjectTypes: append([]ObjectType(nil), def.SubjectTypes...),
		objectTypes:  append([]ObjectType(nil), def.ObjectTypes...),
		relations:    make(map[Relation]RelationFlavor, len(def.Relations)),
		actionToRel:  make(map[string][]Relation, len(def.ActionToRelations)),
		propagation:  make(map[string][]string, len(def.HierarchyPropagation)),
		hierarchyCapable: make(map[ObjectType]bool),
	}

	for _, r := range def.Relations {
		s.relations[r.Name] = r.Flavor
		switch r.Flavor {
		case RelationGroup:
			if s.hasGroupRelation {
				return nil, schemaErr("NewSchema", ErrMultipleGroupRelations)
			}
			s.hasGroupRelation = true
			s.groupRelation = r.Name
		case RelationHierarchy:
			if s.hasHierarchyRel {
				return nil, schemaErr("NewSchema", ErrMultipleHierarchyRelations)
			}
			s.hasHierarchyRel = true
			s.hierarchyRelation = r.Name
		}
	}

	for action, rels := range def.ActionToRelations {
		cp := append([]Relation(nil), rels...)
		for _, r := range cp {
			if _, ok := s.relations[r]; !ok {
				return nil, schemaErr("NewSchema", ErrUndeclaredRelation)
			}
		}
		s.actionToRel[action] = cp
	}

	if len(def.HierarchyPropagation) > 0 && !s.hasHierarchyRel {
		return nil, schemaErr("NewSchema", ErrPropagationWithoutHierarchy)
	}
	for action, parentActions := range def.HierarchyPropagation {
		s.propagation[action] = append([]string(nil), parentActions...)
	}

	for rel, flavor := range s.relations {
		if flavor == RelationDirect || flavor == RelationGroup {
			s.allDirectAndGroup = append(s.allDirectAndGroup, rel)
		}
	}

	return s, nil
}

// RelationsForAction returns the relations that grant action, or nil if the
// action is unknown (an unknown action simply has no relations that grant
// it — spec.md §4.3 step 1).
func (s *Schema) RelationsForAction(action string) []Relation {
	return s.actionToRel[action]
}

// PropagationForAction returns the parent-side actions that, held on a
// child's parent, imply action on the child, or nil if action does not
// propagate (spec.md §3 "Hierarchy propagation").
func (s *Schema) PropagationForAction(action string) []string {
	return s.propagation[action]
}

// GroupRelation returns the schema's single group relation, if any.
func (s *Schema) GroupRelation() (Relation, bool) {
	return s.groupRelation, s.hasGroupRelation
}

// HierarchyRelation returns the schema's single hierarchy relation, if any.
func (s *Schema) HierarchyRelation() (Relation, bool) {
	return s.hierarchyRelation, s.hasHierarchyRel
}

// IsDirect reports whether relation is declared with RelationDirect flavour.
func (s *Schema) IsDirect(relation Relation) bool {
	f, ok := s.relations[relation]
	return ok && f == RelationDirect
}

// FlavorOf returns the flavour of relation and whether it is declared.
func (s *Schema) FlavorOf(relation Relation) (RelationFlavor, bool) {
	f, ok := s.relations[relation]
	return f, ok
}

// AllDirectAndGroupRelations returns every direct or group relation the
// schema declares, in a stable (insertion-independent, sorted) order. Used
// by list-accessible-objects when no action filter is supplied (spec.md
// §4.4 step 1).
func (s *Schema) AllDirectAndGroupRelations() []Relation {
	out := append([]Relation(nil), s.allDirectAndGroup...)
	slices.Sort(out)
	return out
}

// ActionsGrantedBy returns every action whose relation set intersects held,
// i.e. every action that a subject holding one of the relations in held
// could perform, per the inversion of action_to_relations required by
// spec.md §4.4 step 5. Order is alphabetical for determinism.
func (s *Schema) ActionsGrantedBy(held map[Relation]bool) []string {
	var out []string
	for action, rels := range s.actionToRel {
		for _, r := range rels {
			if held[r] {
				out = append(out, action)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// MarkHierarchyCapable records that objectType may appear as the object of a
// hierarchy tuple (a "parent"). Schema construction does not know this by
// itself since parent/child typing is only observed from propagation usage
// in practice; callers that build a Schema from a richer source (e.g.
// pkg/openfgaconvert) should call this for every type that can be a parent.
// A Schema built directly via NewSchema with only RelationDef/action maps
// treats every object type as hierarchy-capable when a hierarchy relation
// exists, which is the conservative, always-correct default used by the
// check and list engines.
func (s *Schema) MarkHierarchyCapable(objectType ObjectType) {
	s.hierarchyCapable[objectType] = true
}

// HierarchyCapable reports whether objectType is allowed to be the object
// side of a hierarchy tuple. When no type has been explicitly marked (the
// common case for a Schema built directly from a SchemaDef), every object
// type is considered hierarchy-capable, matching spec.md §4.3 step 5's
// "filter to only parents whose type belongs to the declared hierarchy-
// capable set" with the conservative default of "all of them."
func (s *Schema) HierarchyCapable(objectType ObjectType) bool {
	if len(s.hierarchyCapable) == 0 {
		return true
	}
	return s.hierarchyCapable[objectType]
}

// AllPropagationRules returns a copy of the full action -> parent-actions
// propagation map, for callers (the list-accessible engine) that must walk
// every propagating action rather than a single one.
func (s *Schema) AllPropagationRules() map[string][]string {
	out := make(map[string][]string, len(s.propagation))
	for k, v := range s.propagation {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SubjectTypes returns the schema's declared subject types.
func (s *Schema) SubjectTypes() []ObjectType { return append([]ObjectType(nil), s.subjectTypes...) }

// ObjectTypes returns the schema's declared object types.
func (s *Schema) ObjectTypes() []ObjectType { return append([]ObjectType(nil), s.objectTypes...) }
