package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinOntology_LoadsSuccessfully(t *testing.T) {
	data, err := BuiltinOntologyJSON()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reference.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	graph, err := Load(path)
	require.NoError(t, err)
	require.True(t, graph.Artifacts.Has(RootKind))
}
