package asc

import (
	"math/big"
	"testing"

	"github.com/certen/ledger-kernel/internal/link"
)

func TestLLMStructuralBanOverridesScope(t *testing.T) {
	cert := &Certificate{
		ID:        "asc-1",
		OwnerKind: OwnerLLM,
		// Misconfigured to explicitly include Entropy and Evolution —
		// the structural ban must still apply.
		Classes: []link.IntentClass{link.Observation, link.Entropy, link.Evolution},
	}
	if err := cert.Authorize("C.Jobs", link.Entropy, big.NewInt(1), 0); err != ErrLLMStructuralBan {
		t.Fatalf("expected ErrLLMStructuralBan for entropy, got %v", err)
	}
	if err := cert.Authorize("C.Jobs", link.Evolution, big.NewInt(0), 0); err != ErrLLMStructuralBan {
		t.Fatalf("expected ErrLLMStructuralBan for evolution, got %v", err)
	}
	if err := cert.Authorize("C.Jobs", link.Observation, big.NewInt(0), 0); err != nil {
		t.Fatalf("expected observation to be permitted, got %v", err)
	}
}

func TestContainerScope(t *testing.T) {
	cert := &Certificate{ID: "a", OwnerKind: OwnerHuman, ContainerIDs: []string{"C.Jobs"}}
	if err := cert.Authorize("C.Jobs", link.Observation, big.NewInt(0), 0); err != nil {
		t.Fatalf("expected in-scope container to pass, got %v", err)
	}
	if err := cert.Authorize("C.Other", link.Observation, big.NewInt(0), 0); err != ErrContainerNotInScope {
		t.Fatalf("expected ErrContainerNotInScope, got %v", err)
	}
}

func TestContainerScopeNamespacePrefix(t *testing.T) {
	cert := &Certificate{ID: "a", OwnerKind: OwnerHuman, ContainerIDs: []string{"C.Jobs."}}
	if err := cert.Authorize("C.Jobs.Batch42", link.Observation, big.NewInt(0), 0); err != nil {
		t.Fatalf("expected child container under namespace prefix to pass, got %v", err)
	}
	if err := cert.Authorize("C.Other", link.Observation, big.NewInt(0), 0); err != ErrContainerNotInScope {
		t.Fatalf("expected ErrContainerNotInScope, got %v", err)
	}
}

func TestMaxDelta(t *testing.T) {
	cert := &Certificate{ID: "a", OwnerKind: OwnerHuman, MaxDelta: big.NewInt(10)}
	if err := cert.Authorize("C.Jobs", link.Entropy, big.NewInt(-10), 0); err != nil {
		t.Fatalf("expected delta at the boundary to pass, got %v", err)
	}
	if err := cert.Authorize("C.Jobs", link.Entropy, big.NewInt(11), 0); err != ErrDeltaExceedsMax {
		t.Fatalf("expected ErrDeltaExceedsMax, got %v", err)
	}
}

func TestRevokedAndExpired(t *testing.T) {
	revoked := &Certificate{ID: "a", OwnerKind: OwnerHuman, Revoked: true}
	if err := revoked.Authorize("C.Jobs", link.Observation, big.NewInt(0), 0); err != ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}

	expired := &Certificate{ID: "a", OwnerKind: OwnerHuman, NotAfterMs: 100}
	if err := expired.Authorize("C.Jobs", link.Observation, big.NewInt(0), 200); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}
