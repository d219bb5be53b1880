// Package projection implements the subscription-driven projection
// runtime: causal idempotency via a per-container cursor, dispatch to a
// handler, and a full Rebuild that replays every entry through the same
// Dispatch entrypoint live delivery uses — so a rebuilt projection is
// guaranteed equivalent to one that caught every event incrementally.
package projection

import (
	"context"
	"fmt"

	"github.com/certen/ledger-kernel/internal/store"
)

// Handler applies one ledger entry's effect to a projection's own
// storage. Once an entry's Dispatch and CommitApply have both succeeded,
// the cursor guard in Apply keeps Runtime from dispatching that
// (container, sequence) again; if either returns an error, the cursor is
// not advanced and a later Apply of the same entry dispatches it again.
type Handler interface {
	Dispatch(ctx context.Context, e *store.Entry) error
}

// Cursors is the subset of store.CursorRepository the runtime needs,
// named here so tests can substitute an in-memory fake.
type Cursors interface {
	BeginApply(ctx context.Context, projectionName, containerID string, eventSeq uint64) (bool, error)
	CommitApply(ctx context.Context, projectionName, containerID string, eventSeq uint64, eventHash string) error
}

// EntrySource is the subset of store.Client the runtime needs to read
// back every entry for a full rebuild.
type EntrySource interface {
	FetchAllEntriesOrdered(ctx context.Context) ([]*store.Entry, error)
}

// Runtime drives one named projection's Handler against a Cursors
// repository.
type Runtime struct {
	Name    string
	Cursors Cursors
	Handler Handler
}

// New builds a projection Runtime.
func New(name string, cursors Cursors, handler Handler) *Runtime {
	return &Runtime{Name: name, Cursors: cursors, Handler: handler}
}

// Apply dispatches one entry if and only if it is the next contiguous
// event for its container; a re-delivered or out-of-order event is a
// silent no-op rather than an error, since NOTIFY/LISTEN and replay can
// both redeliver the same event.
func (r *Runtime) Apply(ctx context.Context, e *store.Entry) error {
	ok, err := r.Cursors.BeginApply(ctx, r.Name, e.ContainerID, e.Sequence)
	if err != nil {
		return fmt.Errorf("projection: begin apply: %w", err)
	}
	if !ok {
		return nil
	}
	if err := r.Handler.Dispatch(ctx, e); err != nil {
		return fmt.Errorf("projection: dispatch: %w", err)
	}
	if err := r.Cursors.CommitApply(ctx, r.Name, e.ContainerID, e.Sequence, e.EntryHash); err != nil {
		return fmt.Errorf("projection: commit apply: %w", err)
	}
	return nil
}

// Rebuild replays every entry, across every container, through Apply —
// the identical entrypoint live delivery uses — in (container_id,
// sequence) order, so the result is exactly what incremental delivery
// would have produced.
func (r *Runtime) Rebuild(ctx context.Context, source EntrySource) error {
	entries, err := source.FetchAllEntriesOrdered(ctx)
	if err != nil {
		return fmt.Errorf("projection: rebuild: fetch entries: %w", err)
	}
	for _, e := range entries {
		if err := r.Apply(ctx, e); err != nil {
			return fmt.Errorf("projection: rebuild: apply %s/%d: %w", e.ContainerID, e.Sequence, err)
		}
	}
	return nil
}
