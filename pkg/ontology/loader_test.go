package ontology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_S1MinimalHappyPath(t *testing.T) {
	graph, err := Load("testdata/s1_minimal.json")
	require.NoError(t, err)

	assert.True(t, graph.Artifacts.Has("SoftwareApplication"))
	assert.True(t, graph.Artifacts.Has("DesignSpec"))
	assert.True(t, graph.Artifacts.Has("Code"))
	assert.Equal(t, 5, graph.Artifacts.Len())
	assert.Equal(t, 2, graph.Verbs.Len())

	creations := graph.OutgoingByVerbType(VerbTypeCreation)
	assert.Len(t, creations, 2)

	deps := graph.OutgoingByVerbType(VerbTypeDependency)
	require.Len(t, deps, 1)
	assert.Equal(t, "DesignSpec", deps[0].Source.Name)
	assert.Equal(t, "Code", deps[0].Target.Name)
}

func TestLoad_CyclicDependencyRejected(t *testing.T) {
	_, err := Load("testdata/cyclic.json")
	require.Error(t, err)

	var cyclic *CyclicError
	require.True(t, errors.As(err, &cyclic))
	assert.ElementsMatch(t, []string{"A", "B"}, cyclic.Cycle)
	require.ErrorIs(t, err, ErrOntologyCyclic)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.json")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOntologyIO)
}

func TestLoad_RootKindMismatchRejected(t *testing.T) {
	_, err := Load("testdata/no_root.json")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOntologyInvalid)
}

func TestLoad_CreationSourceMustBeAgentRejected(t *testing.T) {
	_, err := Load("testdata/bad_creation_source.json")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOntologyInvalid)
}

func TestGraph_BFSDistance(t *testing.T) {
	graph, err := Load("testdata/s1_minimal.json")
	require.NoError(t, err)

	assert.Equal(t, 0, graph.BFSDistance(RootKind))
	assert.Equal(t, -1, graph.BFSDistance("DesignSpec"), "DesignSpec is not Dependency-connected to the root in this fixture")
}
