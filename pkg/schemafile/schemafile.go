// Package schemafile loads and saves a core.SchemaDef as YAML, the same way
// melange's "config show" uses sigs.k8s.io/yaml to render its effective
// configuration: decode to a plain struct, then hand it to core.NewSchema
// for validation (spec.md §7 "Schema files").
package schemafile

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/pthm/reltuple/core"
)

// Document is the on-disk YAML shape of a schema file. Field names are
// snake_case to match spec.md §7's sample schema.yaml.
type Document struct {
	SubjectTypes         []string            `json:"subject_types"`
	ObjectTypes          []string            `json:"object_types"`
	Relations            []RelationDocument  `json:"relations"`
	ActionToRelations    map[string][]string `json:"action_to_relations"`
	HierarchyPropagation map[string][]string `json:"hierarchy_propagation,omitempty"`
}

// RelationDocument declares one relation and its flavour as a string:
// "direct", "group", or "hierarchy".
type RelationDocument struct {
	Name   string `json:"name"`
	Flavor string `json:"flavor"`
}

// Load reads and parses a schema file at path into a validated core.Schema.
func Load(path string) (*core.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON, which is a YAML subset) bytes into a
// validated core.Schema.
func Parse(data []byte) (*core.Schema, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schemafile: parse: %w", err)
	}
	return doc.ToSchema()
}

// ToSchema converts the document to a core.SchemaDef and validates it via
// core.NewSchema.
func (d Document) ToSchema() (*core.Schema, error) {
	def := core.SchemaDef{
		ActionToRelations:    make(map[string][]core.Relation, len(d.ActionToRelations)),
		HierarchyPropagation: d.HierarchyPropagation,
	}
	for _, t := range d.SubjectTypes {
		def.SubjectTypes = append(def.SubjectTypes, core.ObjectType(t))
	}
	for _, t := range d.ObjectTypes {
		def.ObjectTypes = append(def.ObjectTypes, core.ObjectType(t))
	}
	for _, r := range d.Relations {
		flavor, err := parseFlavor(r.Flavor)
		if err != nil {
			return nil, fmt.Errorf("schemafile: relation %q: %w", r.Name, err)
		}
		def.Relations = append(def.Relations, core.RelationDef{Name: core.Relation(r.Name), Flavor: flavor})
	}
	for action, rels := range d.ActionToRelations {
		out := make([]core.Relation, len(rels))
		for i, r := range rels {
			out[i] = core.Relation(r)
		}
		def.ActionToRelations[action] = out
	}
	return core.NewSchema(def)
}

// FromSchema renders a core.Schema back to a Document suitable for
// Save/Marshal. Schema does not expose its relation flavours individually
// outside of FlavorOf, so callers that built a Schema from a Document
// should prefer keeping the original Document around to round-trip exactly;
// FromSchema is provided for tooling that only has a *core.Schema in hand
// and reconstructs what it can: types, the given relations and the
// propagation map; ActionToRelations is left empty.
func FromSchema(s *core.Schema, knownRelations []core.RelationDef) Document {
	doc := Document{
		ActionToRelations:    make(map[string][]string),
		HierarchyPropagation: s.AllPropagationRules(),
	}
	for _, t := range s.SubjectTypes() {
		doc.SubjectTypes = append(doc.SubjectTypes, string(t))
	}
	for _, t := range s.ObjectTypes() {
		doc.ObjectTypes = append(doc.ObjectTypes, string(t))
	}
	for _, r := range knownRelations {
		doc.Relations = append(doc.Relations, RelationDocument{Name: string(r.Name), Flavor: r.Flavor.String()})
	}
	return doc
}

// Save marshals doc as YAML and writes it to path.
func Save(path string, doc Document) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schemafile: marshal: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func parseFlavor(s string) (core.RelationFlavor, error) {
	switch s {
	case "direct", "":
		return core.RelationDirect, nil
	case "group":
		return core.RelationGroup, nil
	case "hierarchy":
		return core.RelationHierarchy, nil
	default:
		return 0, fmt.Errorf("unknown relation flavor %q", s)
	}
}
