package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/certen/ledger-kernel/internal/asc"
	"github.com/certen/ledger-kernel/internal/link"
)

func TestASCRepositoryPutThenGetRoundTrips(t *testing.T) {
	if testDB == nil {
		t.Skip("LEDGER_TEST_DB not configured")
	}
	ctx := context.Background()
	client := testClient(t)

	id := fmt.Sprintf("asc-%d", time.Now().UnixNano())
	c := &asc.Certificate{
		ID:           id,
		OwnerKind:    asc.OwnerHuman,
		ContainerIDs: []string{"C.Jobs"},
		Classes:      []link.IntentClass{link.Observation, link.Entropy},
		MaxDelta:     big.NewInt(100),
	}

	repo := NewASCRepository(client)
	if err := repo.Put(ctx, c); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerKind != c.OwnerKind || len(got.ContainerIDs) != 1 || got.ContainerIDs[0] != "C.Jobs" {
		t.Fatalf("unexpected round-tripped certificate: %+v", got)
	}
	if got.MaxDelta == nil || got.MaxDelta.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected max_delta to round-trip through NullString, got %v", got.MaxDelta)
	}

	// A certificate with no max_delta round-trips as a nil *big.Int, not a zero value.
	id2 := fmt.Sprintf("asc-unbounded-%d", time.Now().UnixNano())
	unbounded := &asc.Certificate{ID: id2, OwnerKind: asc.OwnerHuman}
	if err := repo.Put(ctx, unbounded); err != nil {
		t.Fatalf("put unbounded: %v", err)
	}
	gotUnbounded, err := repo.Get(ctx, id2)
	if err != nil {
		t.Fatalf("get unbounded: %v", err)
	}
	if gotUnbounded.MaxDelta != nil {
		t.Fatalf("expected nil max_delta for an unbounded certificate, got %v", gotUnbounded.MaxDelta)
	}
}

func TestASCRepositoryGetMissingReturnsErrASCNotFound(t *testing.T) {
	if testDB == nil {
		t.Skip("LEDGER_TEST_DB not configured")
	}
	ctx := context.Background()
	client := testClient(t)

	repo := NewASCRepository(client)
	_, err := repo.Get(ctx, fmt.Sprintf("no-such-asc-%d", time.Now().UnixNano()))
	if !errors.Is(err, ErrASCNotFound) {
		t.Fatalf("expected ErrASCNotFound, got %v", err)
	}
}

func TestASCRepositoryRevokeIsIdempotent(t *testing.T) {
	if testDB == nil {
		t.Skip("LEDGER_TEST_DB not configured")
	}
	ctx := context.Background()
	client := testClient(t)

	id := fmt.Sprintf("asc-revoke-%d", time.Now().UnixNano())
	repo := NewASCRepository(client)
	if err := repo.Put(ctx, &asc.Certificate{ID: id, OwnerKind: asc.OwnerHuman}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := repo.Revoke(ctx, id); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := repo.Revoke(ctx, id); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Revoked {
		t.Fatalf("expected certificate to be revoked")
	}
}
