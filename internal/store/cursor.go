package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CursorStatus is the lifecycle state of a projection's cursor for one
// container: "idle" between dispatches, "in_progress" while a dispatch
// is applying, so a crash mid-apply can be detected by the orphan
// sweeper and requeued.
type CursorStatus string

const (
	CursorIdle       CursorStatus = "idle"
	CursorInProgress CursorStatus = "in_progress"
)

// Cursor is a projection's resume point for one container.
type Cursor struct {
	ProjectionName string
	ContainerID    string
	LastEventSeq   uint64
	LastHash       string
	Status         CursorStatus
	UpdatedAt      time.Time
}

// CursorRepository persists projection cursors.
type CursorRepository struct {
	client *Client
}

// NewCursorRepository builds a repository over the connection pool.
func NewCursorRepository(c *Client) *CursorRepository {
	return &CursorRepository{client: c}
}

// Get reads a cursor, returning the zero-value cursor (sequence 0, idle)
// if the projection has never run against this container.
func (r *CursorRepository) Get(ctx context.Context, projectionName, containerID string) (*Cursor, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT last_event_seq, last_hash, status, updated_at
		FROM projection_cursor WHERE projection_name = $1 AND container_id = $2`,
		projectionName, containerID)

	c := &Cursor{ProjectionName: projectionName, ContainerID: containerID}
	err := row.Scan(&c.LastEventSeq, &c.LastHash, &c.Status, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		c.Status = CursorIdle
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get cursor: %w", err)
	}
	return c, nil
}

// BeginApply marks the cursor in_progress only if eventSeq is exactly
// one past the cursor's current last_event_seq (or exactly 1 for a
// container with no cursor row yet, matching the ledger's 1-indexed
// first entry) — the causal idempotency guard that makes a re-delivered
// or out-of-order event a no-op rather than a double-apply. The
// read-then-write is done under a row lock (or, for a brand new
// container, under serializable isolation) so two concurrent callers
// can't both observe the same starting point.
func (r *CursorRepository) BeginApply(ctx context.Context, projectionName, containerID string, eventSeq uint64) (bool, error) {
	tx, err := r.client.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, fmt.Errorf("store: begin apply: begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq uint64
	row := tx.QueryRowContext(ctx,
		`SELECT last_event_seq FROM projection_cursor WHERE projection_name = $1 AND container_id = $2 FOR UPDATE`,
		projectionName, containerID)
	err = row.Scan(&lastSeq)

	var initialized bool
	switch err {
	case nil:
		initialized = true
	case sql.ErrNoRows:
		initialized = false
	default:
		return false, fmt.Errorf("store: begin apply: read cursor: %w", err)
	}

	contiguous := eventSeq == 1
	if initialized {
		contiguous = eventSeq == lastSeq+1
	}
	if !contiguous {
		return false, nil
	}

	if initialized {
		if _, err := tx.ExecContext(ctx,
			`UPDATE projection_cursor SET status = 'in_progress', updated_at = now()
			 WHERE projection_name = $1 AND container_id = $2`,
			projectionName, containerID); err != nil {
			return false, fmt.Errorf("store: begin apply: mark in progress: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projection_cursor (projection_name, container_id, last_event_seq, last_hash, status, updated_at)
			 VALUES ($1, $2, $3, '', 'in_progress', now())`,
			projectionName, containerID, eventSeq-1); err != nil {
			return false, fmt.Errorf("store: begin apply: seed cursor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: begin apply: commit: %w", err)
	}
	return true, nil
}

// CommitApply advances the cursor to eventSeq/eventHash and returns it
// to idle, once the projection's own side effects have been applied.
func (r *CursorRepository) CommitApply(ctx context.Context, projectionName, containerID string, eventSeq uint64, eventHash string) error {
	_, err := r.client.db.ExecContext(ctx, `
		UPDATE projection_cursor SET last_event_seq = $3, last_hash = $4, status = 'idle', updated_at = now()
		WHERE projection_name = $1 AND container_id = $2`,
		projectionName, containerID, eventSeq, eventHash)
	if err != nil {
		return fmt.Errorf("store: commit apply: %w", err)
	}
	return nil
}

// SweepOrphans resets any cursor stuck in_progress for longer than
// olderThan back to idle, so a crashed dispatcher doesn't permanently
// wedge a container's projection.
func (r *CursorRepository) SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.client.db.ExecContext(ctx, `
		UPDATE projection_cursor SET status = 'idle'
		WHERE status = 'in_progress' AND updated_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("store: sweep orphans: %w", err)
	}
	return res.RowsAffected()
}
