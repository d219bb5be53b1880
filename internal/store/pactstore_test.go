package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/certen/ledger-kernel/internal/link"
	"github.com/certen/ledger-kernel/internal/pact"
)

func TestPactRepositoryPutThenGetRoundTrips(t *testing.T) {
	if testDB == nil {
		t.Skip("LEDGER_TEST_DB not configured")
	}
	ctx := context.Background()
	client := testClient(t)

	pactID := fmt.Sprintf("pact-%d", time.Now().UnixNano())
	p := &pact.Pact{
		PactID:          pactID,
		ScopeType:       pact.ScopeContainer,
		ScopeValue:      "C.Jobs",
		IntentClasses:   []link.IntentClass{link.Entropy, link.Evolution},
		Threshold:       2,
		Signers:         []string{"aa", "bb", "cc"},
		SignatureScheme: pact.SchemeEd25519,
	}

	repo := NewPactRepository(client)
	if err := repo.Put(ctx, client.db, p); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.GetPact(ctx, pactID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected pact to round-trip, got nil")
	}
	if got.ScopeType != p.ScopeType || got.ScopeValue != p.ScopeValue || got.Threshold != p.Threshold {
		t.Fatalf("unexpected round-tripped pact: %+v", got)
	}
	if len(got.Signers) != len(p.Signers) || len(got.IntentClasses) != len(p.IntentClasses) {
		t.Fatalf("unexpected signers/classes: %+v", got)
	}

	// A second Put under the same pact_id replaces it (ON CONFLICT upsert).
	p.Threshold = 3
	if err := repo.Put(ctx, client.db, p); err != nil {
		t.Fatalf("put (replace): %v", err)
	}
	got2, err := repo.GetPact(ctx, pactID)
	if err != nil {
		t.Fatalf("get (replace): %v", err)
	}
	if got2.Threshold != 3 {
		t.Fatalf("expected upsert to replace threshold, got %d", got2.Threshold)
	}
}

func TestPactRepositoryGetPactMissingReturnsNil(t *testing.T) {
	if testDB == nil {
		t.Skip("LEDGER_TEST_DB not configured")
	}
	ctx := context.Background()
	client := testClient(t)

	repo := NewPactRepository(client)
	got, err := repo.GetPact(ctx, fmt.Sprintf("no-such-pact-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("expected no error for an unknown pact_id, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil pact for an unknown pact_id, got %+v", got)
	}
}
