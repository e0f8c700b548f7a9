package schemafile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/reltuple/pkg/schemafile"
)

const testYAML = `
subject_types: [user, group]
object_types: [group, doc]
relations:
  - name: member
    flavor: group
  - name: parent
    flavor: hierarchy
  - name: owner
    flavor: direct
  - name: editor
    flavor: direct
action_to_relations:
  read: [owner, editor]
  write: [owner]
hierarchy_propagation:
  read: [read]
`

func TestParse(t *testing.T) {
	schema, err := schemafile.Parse([]byte(testYAML))
	require.NoError(t, err)

	groupRel, ok := schema.GroupRelation()
	require.True(t, ok)
	require.Equal(t, "member", string(groupRel))

	hierRel, ok := schema.HierarchyRelation()
	require.True(t, ok)
	require.Equal(t, "parent", string(hierRel))

	require.True(t, schema.IsDirect("owner"))
}

func TestParse_UnknownFlavorErrors(t *testing.T) {
	_, err := schemafile.Parse([]byte(`
relations:
  - name: weird
    flavor: bogus
`))
	require.Error(t, err)
}
