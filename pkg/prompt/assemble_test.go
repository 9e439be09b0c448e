package prompt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/codeready-toolchain/icl/pkg/ontology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_CreationEdge(t *testing.T) {
	graph := loadTestGraph(t)
	loader := NewLoader(t.TempDir())
	reader := &fakeReader{instances: map[string]json.RawMessage{
		ontology.RootKind: json.RawMessage(`{"goal":"a todo app"}`),
	}}

	rel := graph.OutgoingBySource("Architect")[0]
	p, err := Assemble(context.Background(), graph, loader, reader, "iter-1", rel, "/work/iter-1")
	require.NoError(t, err)

	assert.Contains(t, p.Text, defaultPersona)
	assert.Contains(t, p.Text, "Write a short design spec")
	assert.Contains(t, p.Text, "a todo app")
	assert.Equal(t, "/work/iter-1", p.Workdir)
}
