package snapshot

import (
	"encoding/json"
	"testing"
)

func TestShouldSnapshot(t *testing.T) {
	cases := map[uint64]bool{
		0:    false,
		999:  false,
		1000: true,
		1999: false,
		2000: true,
	}
	for seq, want := range cases {
		if got := ShouldSnapshot(seq); got != want {
			t.Fatalf("ShouldSnapshot(%d) = %v, want %v", seq, got, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := &Snapshot{
		ContainerID:  "C.Jobs",
		LastSequence: 1000,
		EntryHash:    "deadbeef",
		CreatedAtMs:  1700000000000,
		State:        json.RawMessage(`{"balance":"42"}`),
	}
	if err := Save(dir, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(dir, "C.Jobs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LastSequence != 1000 || got.EntryHash != "deadbeef" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "C.Missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
