package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeready-toolchain/icl/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIterationID_FirstOfTheDay(t *testing.T) {
	projectRoot := t.TempDir()

	id, err := NextIterationID(projectRoot, time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "20260730_0001", id)
}

func TestNextIterationID_IncrementsPerDate(t *testing.T) {
	projectRoot := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, config.ProjectDir, IterationsDir, "20260730_0001"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, config.ProjectDir, IterationsDir, "20260730_0003"), 0o755))

	id, err := NextIterationID(projectRoot, now)

	require.NoError(t, err)
	assert.Equal(t, "20260730_0004", id)
}

func TestNextIterationID_RestartsOnNewDate(t *testing.T) {
	projectRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, config.ProjectDir, IterationsDir, "20260729_0005"), 0o755))

	id, err := NextIterationID(projectRoot, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "20260730_0001", id)
}

func TestScaffoldIteration_WritesDirectoryAndSnapshot(t *testing.T) {
	projectRoot := t.TempDir()
	snapshot := ConfigSnapshot{OntologyPath: "ontology.json", Model: "gpt-5", AgentTool: config.AgentToolClaude, Goal: "build a thing"}

	dir, err := ScaffoldIteration(projectRoot, "20260730_0001", snapshot)

	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "documents"))
	assert.FileExists(t, filepath.Join(dir, ConfigSnapshotFile))

	data, err := os.ReadFile(filepath.Join(dir, ConfigSnapshotFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "build a thing")
}

func TestListIterations_EmptyWhenProjectHasNoIterations(t *testing.T) {
	projectRoot := t.TempDir()

	ids, err := ListIterations(projectRoot)

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListIterations_SortedAscending(t *testing.T) {
	projectRoot := t.TempDir()
	for _, id := range []string{"20260730_0002", "20260728_0001", "20260730_0001"} {
		require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, config.ProjectDir, IterationsDir, id), 0o755))
	}

	ids, err := ListIterations(projectRoot)

	require.NoError(t, err)
	assert.Equal(t, []string{"20260728_0001", "20260730_0001", "20260730_0002"}, ids)
}
