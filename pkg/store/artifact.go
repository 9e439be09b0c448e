package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Artifact is a persisted artifact instance (spec §3's "Artifact
// instance"): at most one current row per (iterationId, kind); older
// instances are retained as history.
type Artifact struct {
	ID             int64           `db:"id"`
	IterationID    string          `db:"iteration_id"`
	Kind           string          `db:"kind"`
	Payload        json.RawMessage `db:"payload"`
	ProducedByEdge string          `db:"produced_by_edge"`
	RetryCount     int             `db:"retry_count"`
	QualityScore   *float64        `db:"quality_score"`
	Verified       bool            `db:"verified"`
	IsCurrent      bool            `db:"is_current"`
	CreatedAt      string          `db:"created_at"`
}

// Persist validates payload against kind's schema (if any), supersedes any
// existing current instance for (iterationID, kind), and inserts the new
// current row. viaRefinement increments retryCount over the superseded
// instance's count, matching the journal's ArtifactPersistedPayload
// convention (spec §4.5 steps 1-2).
func (c *Client) Persist(ctx context.Context, validator *SchemaValidator, schema json.RawMessage,
	iterationID, kind string, payload []byte, producedByEdge string, viaRefinement bool) (*Artifact, error) {

	if err := validator.Validate(kind, schema, payload); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	retryCount := 0
	if viaRefinement {
		var prevRetry int
		err := tx.GetContext(ctx, &prevRetry,
			`SELECT retry_count FROM artifacts WHERE iteration_id = ? AND kind = ? AND is_current = 1`,
			iterationID, kind)
		if err == nil {
			retryCount = prevRetry + 1
		} else {
			retryCount = 1
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE artifacts SET is_current = 0 WHERE iteration_id = ? AND kind = ? AND is_current = 1`,
		iterationID, kind); err != nil {
		return nil, fmt.Errorf("supersede previous instance: %w", err)
	}

	artifact := &Artifact{
		IterationID:    iterationID,
		Kind:           kind,
		Payload:        payload,
		ProducedByEdge: producedByEdge,
		RetryCount:     retryCount,
		IsCurrent:      true,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts (iteration_id, kind, payload, produced_by_edge, retry_count, is_current, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		artifact.IterationID, artifact.Kind, string(artifact.Payload), artifact.ProducedByEdge,
		artifact.RetryCount, artifact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("resolve inserted id: %w", err)
	}
	artifact.ID = id

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return artifact, nil
}

// RecordVerification sets the current instance's quality score and
// verified flag for (iterationID, kind) after a Verification edge fires
// (spec §4.5 step 3, §4.6).
func (c *Client) RecordVerification(ctx context.Context, iterationID, kind string, score float64, passed bool) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE artifacts SET quality_score = ?, verified = ? WHERE iteration_id = ? AND kind = ? AND is_current = 1`,
		score, passed, iterationID, kind)
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	return nil
}

// GetCurrent returns the current instance of kind for iterationID. Used by
// the Prompt Assembler (C3) to serialize context blocks.
func (c *Client) GetCurrent(ctx context.Context, iterationID, kind string) (*Artifact, error) {
	var a Artifact
	err := c.db.GetContext(ctx, &a,
		`SELECT id, iteration_id, kind, payload, produced_by_edge, retry_count, quality_score, verified, is_current, created_at
		 FROM artifacts WHERE iteration_id = ? AND kind = ? AND is_current = 1`,
		iterationID, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrArtifactNotFound, iterationID, kind, err)
	}
	return &a, nil
}

// History returns every instance ever recorded for (iterationID, kind),
// oldest first, including superseded ones.
func (c *Client) History(ctx context.Context, iterationID, kind string) ([]Artifact, error) {
	var artifacts []Artifact
	err := c.db.SelectContext(ctx, &artifacts,
		`SELECT id, iteration_id, kind, payload, produced_by_edge, retry_count, quality_score, verified, is_current, created_at
		 FROM artifacts WHERE iteration_id = ? AND kind = ? ORDER BY id ASC`,
		iterationID, kind)
	if err != nil {
		return nil, fmt.Errorf("select artifact history: %w", err)
	}
	return artifacts, nil
}
