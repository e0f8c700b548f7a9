// Package openfgaconvert maps an OpenFGA authorization model onto the
// simpler direct/group/hierarchy model core.Schema validates. It reuses the
// official OpenFGA DSL parser the same way melange's pkg/parser does
// (transformer.TransformDSLToProto), but where melange's parser preserves
// the full userset tree (intersections, exclusions, tuple-to-userset
// chains) for SQL codegen, this package collapses that tree onto spec.md
// §4.1's three relation flavours, emitting a Warning wherever the source
// model expresses something the flavour model cannot represent exactly.
package openfgaconvert

import (
	"fmt"

	openfgav1 "github.com/openfga/api/proto/openfga/v1"
	"github.com/openfga/language/pkg/go/transformer"

	"github.com/pthm/reltuple/core"
)

// Warning records a lossy step taken while narrowing an OpenFGA model onto
// the direct/group/hierarchy flavour model.
type Warning struct {
	Type     string
	Relation string
	Detail   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s#%s: %s", w.Type, w.Relation, w.Detail)
}

// Result is the outcome of a conversion: the narrowed schema definition,
// ready for core.NewSchema, plus any warnings raised along the way.
type Result struct {
	Def      core.SchemaDef
	Warnings []Warning
}

// ConvertDSL parses OpenFGA DSL text and converts it.
func ConvertDSL(dsl string) (Result, error) {
	model, err := transformer.TransformDSLToProto(dsl)
	if err != nil {
		return Result{}, fmt.Errorf("openfgaconvert: parse DSL: %w", err)
	}
	return ConvertModel(model), nil
}

// ConvertModel converts an already-parsed OpenFGA protobuf model.
//
// Heuristics (each lossy one records a Warning):
//   - A relation whose userset is a bare "this" (direct assignment) becomes
//     RelationDirect.
//   - A relation named "member" whose rule is a bare "this" is treated as
//     the schema's single group relation, RelationGroup. Relations are
//     keyed by name across type definitions, so a "member" relation on a
//     second type is not declared again. No other relation is inferred to
//     be a group relation.
//   - A relation named "parent" whose rule is a bare "this" becomes the
//     schema's single hierarchy relation, RelationHierarchy; the linking
//     relation of a tuple-to-userset rule is not inspected. Once such a
//     relation exists, every tuple-to-userset rule of the form "X from Y"
//     contributes X to hierarchy_propagation.
//   - Intersections, exclusions, and wildcard subject types have no
//     equivalent in the flavour model; they are dropped with a Warning
//     rather than silently misrepresented.
func ConvertModel(model *openfgav1.AuthorizationModel) Result {
	c := &converter{
		def: core.SchemaDef{
			ActionToRelations:    make(map[string][]core.Relation),
			HierarchyPropagation: make(map[string][]string),
		},
		computedBy: make(map[string]string),
	}

	for _, td := range model.GetTypeDefinitions() {
		c.def.ObjectTypes = append(c.def.ObjectTypes, core.ObjectType(td.GetType()))
		for relName, rel := range td.GetRelations() {
			c.convertRelation(relName, rel)
		}
	}
	c.resolveActions(model)
	c.inferSubjectTypes(model)

	return Result{Def: c.def, Warnings: c.warnings}
}

type converter struct {
	def        core.SchemaDef
	warnings   []Warning
	seenRel    map[string]bool
	computedBy map[string]string // relation -> relation it is a pure alias of (ComputedUserset only)
	hasGroup   bool
	hasHier    bool
	hierRel    string
}

func (c *converter) warn(typ, relation, detail string) {
	c.warnings = append(c.warnings, Warning{Type: typ, Relation: relation, Detail: detail})
}

func (c *converter) convertRelation(relName string, rel *openfgav1.Userset) {
	if c.seenRel == nil {
		c.seenRel = make(map[string]bool)
	}
	if c.seenRel[relName] {
		return // already classified from another type definition
	}

	flavor, declare := c.classify(relName, rel)
	if !declare {
		return
	}
	c.seenRel[relName] = true
	c.def.Relations = append(c.def.Relations, core.RelationDef{Name: core.Relation(relName), Flavor: flavor})
}

// classify inspects a single relation's userset tree and decides its
// flavour under the direct/group/hierarchy model. The second return value
// is false for a relation that is a pure alias of another (a bare
// Userset_ComputedUserset) — it contributes to action_to_relations in
// resolveAction but is not itself declared as a separate relation.
func (c *converter) classify(relName string, rel *openfgav1.Userset) (core.RelationFlavor, bool) {
	switch v := rel.GetUserset().(type) {
	case *openfgav1.Userset_This:
		if relName == "member" && !c.hasGroup {
			c.hasGroup = true
			return core.RelationGroup, true
		}
		if relName == "parent" && !c.hasHier {
			c.hasHier = true
			c.hierRel = relName
			return core.RelationHierarchy, true
		}
		return core.RelationDirect, true

	case *openfgav1.Userset_ComputedUserset:
		// A relation that is purely "this relation = that relation" carries
		// no distinct grant of its own; record the alias for the
		// action-resolution pass and do not declare it separately.
		c.computedBy[relName] = v.ComputedUserset.GetRelation()
		return core.RelationDirect, false

	case *openfgav1.Userset_TupleToUserset:
		c.warn("relation", relName, "tuple-to-userset rule collapsed into hierarchy_propagation; see resolveActions")
		return core.RelationDirect, true

	case *openfgav1.Userset_Union:
		c.warn("relation", relName, "union of rules narrowed to a single direct relation; distinguishing sub-rules is lost")
		return core.RelationDirect, true

	case *openfgav1.Userset_Intersection:
		c.warn("relation", relName, "intersection has no equivalent in the direct/group/hierarchy model; narrowed to direct")
		return core.RelationDirect, true

	case *openfgav1.Userset_Difference:
		c.warn("relation", relName, "exclusion (\"but not\") has no equivalent in the direct/group/hierarchy model; narrowed to direct, exclusion dropped")
		return core.RelationDirect, true

	default:
		c.warn("relation", relName, "unrecognised userset node; narrowed to direct")
		return core.RelationDirect, true
	}
}

// resolveActions walks every type definition's relations a second time to
// build action_to_relations (one action per relation, the OpenFGA
// convention of naming actions can_<verb> is not assumed — the relation
// name itself is used as the action name) and to fold tuple-to-userset
// edges into hierarchy_propagation.
func (c *converter) resolveActions(model *openfgav1.AuthorizationModel) {
	declared := make(map[string]bool, len(c.def.Relations))
	for _, r := range c.def.Relations {
		declared[string(r.Name)] = true
	}

	for _, td := range model.GetTypeDefinitions() {
		for relName, rel := range td.GetRelations() {
			c.resolveAction(relName, rel, declared)
		}
	}
}

func (c *converter) resolveAction(relName string, rel *openfgav1.Userset, declared map[string]bool) {
	action := relName
	switch v := rel.GetUserset().(type) {
	case *openfgav1.Userset_This:
		if declared[relName] {
			c.def.ActionToRelations[action] = append(c.def.ActionToRelations[action], core.Relation(relName))
		}

	case *openfgav1.Userset_ComputedUserset:
		target := v.ComputedUserset.GetRelation()
		if declared[target] {
			c.def.ActionToRelations[action] = append(c.def.ActionToRelations[action], core.Relation(target))
		}

	case *openfgav1.Userset_TupleToUserset:
		parentAction := v.TupleToUserset.GetComputedUserset().GetRelation()
		if c.hasHier {
			c.def.HierarchyPropagation[action] = appendUnique(c.def.HierarchyPropagation[action], parentAction)
		}

	case *openfgav1.Userset_Union:
		for _, child := range v.Union.GetChild() {
			c.resolveAction(relName, child, declared)
		}
	}
}

// inferSubjectTypes collects every type referenced as a directly-related
// user type across all relations' metadata, the OpenFGA equivalent of
// spec.md §4.1's declared subject_types.
func (c *converter) inferSubjectTypes(model *openfgav1.AuthorizationModel) {
	seen := make(map[string]bool)
	for _, s := range c.def.SubjectTypes {
		seen[string(s)] = true
	}
	for _, td := range model.GetTypeDefinitions() {
		meta := td.GetMetadata()
		if meta == nil {
			continue
		}
		for _, relMeta := range meta.GetRelations() {
			for _, ref := range relMeta.GetDirectlyRelatedUserTypes() {
				if ref.GetWildcard() != nil {
					c.warn("subject", td.GetType(), "wildcard subject type has no equivalent; dropped")
					continue
				}
				t := ref.GetType()
				if !seen[t] {
					seen[t] = true
					c.def.SubjectTypes = append(c.def.SubjectTypes, core.ObjectType(t))
				}
			}
		}
	}
}

func appendUnique(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}
