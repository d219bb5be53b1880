package projection

import (
	"context"
	"fmt"
	"testing"

	"github.com/certen/ledger-kernel/internal/store"
)

// cursorState mirrors store's projection_cursor row: initialized tracks
// whether any event has ever been applied, since sequence 1 (the
// ledger's first entry) would otherwise be indistinguishable from
// "nothing applied yet" if lastSeq alone were the sentinel.
type cursorState struct {
	initialized bool
	lastSeq     uint64
}

type memCursors struct {
	state map[string]*cursorState
}

func newMemCursors() *memCursors {
	return &memCursors{state: make(map[string]*cursorState)}
}

func key(name, container string) string { return name + "/" + container }

func (m *memCursors) BeginApply(_ context.Context, name, containerID string, eventSeq uint64) (bool, error) {
	k := key(name, containerID)
	s, ok := m.state[k]
	if !ok {
		s = &cursorState{}
		m.state[k] = s
	}

	if !s.initialized {
		return eventSeq == 1, nil
	}
	return eventSeq == s.lastSeq+1, nil
}

func (m *memCursors) CommitApply(_ context.Context, name, containerID string, eventSeq uint64, _ string) error {
	s := m.state[key(name, containerID)]
	s.lastSeq = eventSeq
	s.initialized = true
	return nil
}

type recordingHandler struct {
	applied []uint64
	failAt  map[uint64]bool
}

func (h *recordingHandler) Dispatch(_ context.Context, e *store.Entry) error {
	if h.failAt[e.Sequence] {
		return fmt.Errorf("forced failure at %d", e.Sequence)
	}
	h.applied = append(h.applied, e.Sequence)
	return nil
}

func TestApplySkipsNonContiguousEvent(t *testing.T) {
	cursors := newMemCursors()
	handler := &recordingHandler{}
	rt := New("balances", cursors, handler)

	ctx := context.Background()
	// First event at sequence 1 applies.
	if err := rt.Apply(ctx, &store.Entry{ContainerID: "C.Jobs", Sequence: 1, EntryHash: "h1"}); err != nil {
		t.Fatalf("apply 1: %v", err)
	}
	// Re-delivering sequence 1 is a no-op, not an error.
	if err := rt.Apply(ctx, &store.Entry{ContainerID: "C.Jobs", Sequence: 1, EntryHash: "h1"}); err != nil {
		t.Fatalf("re-apply 1: %v", err)
	}
	// Skipping ahead to 3 without 2 is also a no-op.
	if err := rt.Apply(ctx, &store.Entry{ContainerID: "C.Jobs", Sequence: 3, EntryHash: "h3"}); err != nil {
		t.Fatalf("apply 3 out of order: %v", err)
	}

	if len(handler.applied) != 1 || handler.applied[0] != 1 {
		t.Fatalf("expected only sequence 1 to be applied, got %v", handler.applied)
	}
}

func TestApplyContiguousSequenceAdvances(t *testing.T) {
	cursors := newMemCursors()
	handler := &recordingHandler{}
	rt := New("balances", cursors, handler)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		if err := rt.Apply(ctx, &store.Entry{ContainerID: "C.Jobs", Sequence: seq, EntryHash: fmt.Sprintf("h%d", seq)}); err != nil {
			t.Fatalf("apply %d: %v", seq, err)
		}
	}
	if len(handler.applied) != 3 {
		t.Fatalf("expected 3 applications, got %v", handler.applied)
	}
}
