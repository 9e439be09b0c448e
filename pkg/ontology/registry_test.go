package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactRegistry_GetAllIsDefensiveCopy(t *testing.T) {
	r := NewArtifactRegistry([]ArtifactType{{ID: "DesignSpec", Category: CategoryDocument}})

	all := r.GetAll()
	delete(all, "DesignSpec")

	assert.True(t, r.Has("DesignSpec"), "mutating the returned map must not affect the registry")
}

func TestArtifactRegistry_GetMissing(t *testing.T) {
	r := NewArtifactRegistry(nil)

	_, err := r.Get("Nope")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOntologyInvalid)
}

func TestVerbRegistry_Len(t *testing.T) {
	r := NewVerbRegistry([]Verb{
		{ID: "creates", VerbType: VerbTypeCreation},
		{ID: "verifies", VerbType: VerbTypeVerification},
	})

	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Has("creates"))
	assert.False(t, r.Has("refines"))
}

func TestVerbType_Fires(t *testing.T) {
	assert.True(t, VerbTypeCreation.Fires())
	assert.True(t, VerbTypeVerification.Fires())
	assert.True(t, VerbTypeRefinement.Fires())
	assert.False(t, VerbTypeContext.Fires())
	assert.False(t, VerbTypeDependency.Fires())
}

func TestVerbType_Rank(t *testing.T) {
	assert.Less(t, VerbTypeCreation.Rank(), VerbTypeVerification.Rank())
	assert.Less(t, VerbTypeVerification.Rank(), VerbTypeRefinement.Rank())
}
