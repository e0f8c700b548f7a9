package openfgaconvert_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/reltuple/core"
	"github.com/pthm/reltuple/pkg/openfgaconvert"
)

const testDSL = `
model
  schema 1.1

type user

type group
  relations
    define member: [user]

type document
  relations
    define parent: [document]
    define owner: [user]
    define editor: [user] or owner
    define viewer: [user, group#member] or editor or viewer from parent
`

func TestConvertDSL_DirectGroupHierarchy(t *testing.T) {
	result, err := openfgaconvert.ConvertDSL(testDSL)
	require.NoError(t, err)

	schema, err := core.NewSchema(result.Def)
	require.NoError(t, err)

	groupRel, ok := schema.GroupRelation()
	require.True(t, ok)
	require.Equal(t, core.Relation("member"), groupRel)

	hierRel, ok := schema.HierarchyRelation()
	require.True(t, ok)
	require.Equal(t, core.Relation("parent"), hierRel)

	require.True(t, schema.IsDirect("owner"))
	require.True(t, schema.IsDirect("editor"))
}

func TestConvertDSL_IntersectionWarns(t *testing.T) {
	dsl := `
model
  schema 1.1

type user

type document
  relations
    define owner: [user]
    define reviewer: [user]
    define approver: owner and reviewer
`
	result, err := openfgaconvert.ConvertDSL(dsl)
	require.NoError(t, err)
	require.NotEmpty(t, result.Warnings)
}
