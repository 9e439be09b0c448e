package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/icl/pkg/config"
)

// IterationsDir is the project-relative directory holding one
// subdirectory per iteration (spec §6 filesystem layout).
const IterationsDir = "iterations"

// JournalFile is the per-iteration SQLite file backing both the event
// journal (C7) and the artifact store (C5) — spec §4.7/§6 calls for "a
// relational file" per iteration; the two schemas coexist in it,
// distinguished by migration-table name.
const JournalFile = "journal.db"

// ConfigSnapshotFile captures the resolved configuration and CLI flags at
// iteration start (spec §6 filesystem layout).
const ConfigSnapshotFile = "config.snapshot.json"

// NextIterationID computes the next `YYYYMMDD_NNNN` iteration id for
// today's date, scanning existing iteration directories for the highest
// sequence already used (spec §3: "per-date sequence restarting at
// 0001").
func NextIterationID(projectRoot string, now time.Time) (string, error) {
	datePrefix := now.UTC().Format("20060102")

	entries, err := os.ReadDir(filepath.Join(projectRoot, config.ProjectDir, IterationsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return datePrefix + "_0001", nil
		}
		return "", fmt.Errorf("scan iterations directory: %w", err)
	}

	maxSeq := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), datePrefix+"_") {
			continue
		}
		seqStr := strings.TrimPrefix(e.Name(), datePrefix+"_")
		seq, err := strconv.Atoi(seqStr)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	return fmt.Sprintf("%s_%04d", datePrefix, maxSeq+1), nil
}

// IterationDir returns the path to iterationID's directory under
// projectRoot (absolute only when projectRoot is).
func IterationDir(projectRoot, iterationID string) string {
	return filepath.Join(projectRoot, config.ProjectDir, IterationsDir, iterationID)
}

// ConfigSnapshot is the resolved configuration and CLI flags captured at
// iteration start, written to config.snapshot.json (spec §6).
type ConfigSnapshot struct {
	OntologyPath string           `json:"ontology_path"`
	Model        string           `json:"model"`
	AgentTool    config.AgentTool `json:"agent_tool"`
	Yolo         bool             `json:"yolo"`
	Goal         string           `json:"goal"`
}

// ScaffoldIteration creates iterationID's directory tree and writes its
// config snapshot, returning the directory path.
func ScaffoldIteration(projectRoot, iterationID string, snapshot ConfigSnapshot) (string, error) {
	dir := IterationDir(projectRoot, iterationID)

	if err := os.MkdirAll(filepath.Join(dir, "documents"), 0o755); err != nil {
		return "", fmt.Errorf("create iteration directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigSnapshotFile), data, 0o644); err != nil {
		return "", fmt.Errorf("write config snapshot: %w", err)
	}

	return dir, nil
}

// ListIterations returns iteration ids present under projectRoot, sorted
// ascending — the source list for `icl list`.
func ListIterations(projectRoot string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(projectRoot, config.ProjectDir, IterationsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan iterations directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
