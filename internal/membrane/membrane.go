// Package membrane implements the ordered validation pipeline every
// commit passes through before it is appended to the ledger:
//
//	shape -> delta parse -> atom hash check -> signature -> ASC ->
//	causal preconditions -> pact -> physics-delta rule -> entry hash compute
//
// Each stage fails closed with a specific sentinel error; the first
// failing stage short-circuits the rest.
package membrane

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/certen/ledger-kernel/internal/asc"
	"github.com/certen/ledger-kernel/internal/atom"
	"github.com/certen/ledger-kernel/internal/kernelcrypto"
	"github.com/certen/ledger-kernel/internal/link"
	"github.com/certen/ledger-kernel/internal/pact"
)

// CausalChecker resolves the container's current chain head so the
// membrane can check a commit's expected_sequence and previous_hash
// against it. Implementations are backed by the ledger store, typically
// inside the same transaction that will later append the entry.
type CausalChecker interface {
	ChainHead(ctx context.Context, containerID string) (nextSequence uint64, previousHash string, err error)
}

// Membrane wires the validation stages together against a pact store
// and a causal checker.
type Membrane struct {
	Pacts  pact.Store
	Causal CausalChecker
}

// New constructs a Membrane.
func New(pacts pact.Store, causal CausalChecker) *Membrane {
	return &Membrane{Pacts: pacts, Causal: causal}
}

// Validated is what a commit becomes once every stage has passed: the
// original commit, its parsed delta, the internal link hash, and the
// entry hash ready to be appended.
type Validated struct {
	Commit    *link.Commit
	Delta     *big.Int
	LinkHash  [32]byte
	EntryHash [32]byte
	Sequence  uint64
}

// Validate runs the full pipeline for a single commit carrying rawAtom
// as its atom payload. cert is the ASC authorizing the author, or nil if
// the commit is signed directly by a human-held key with no delegated
// scope to additionally enforce. tsUnixMs is the timestamp to mix into
// the entry hash, normally the current time in milliseconds.
func (m *Membrane) Validate(ctx context.Context, cm *link.Commit, rawAtom []byte, cert *asc.Certificate, nowMs, tsUnixMs int64) (*Validated, error) {
	if err := validateShape(cm); err != nil {
		return nil, err
	}

	delta, err := cm.Delta()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}

	if err := checkAtomHash(cm, rawAtom); err != nil {
		return nil, err
	}

	if err := verifyAuthorSignature(cm); err != nil {
		return nil, err
	}

	if cert != nil {
		if err := cert.Authorize(cm.ContainerID, cm.IntentClass, delta, nowMs); err != nil {
			return nil, fmt.Errorf("membrane: asc: %w", err)
		}
	}

	nextSeq, prevHash, err := m.Causal.ChainHead(ctx, cm.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("membrane: causal: %w", err)
	}
	if cm.ExpectedSequence != nextSeq {
		return nil, ErrSequenceMismatch
	}
	if cm.PreviousHash != prevHash {
		return nil, ErrPreviousHashMismatch
	}

	if err := m.checkPact(ctx, cm, delta, nowMs); err != nil {
		return nil, err
	}

	if err := physicsDeltaRule(cm.IntentClass, delta); err != nil {
		return nil, err
	}

	// link_hash is the atom_hash this entry references, not a digest of
	// the signature: the entry hash binds to the atom through it.
	atomHashBytes, err := hex.DecodeString(cm.AtomHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}
	var linkHash [32]byte
	copy(linkHash[:], atomHashBytes)
	entryHash := kernelcrypto.HashEntry(cm.ContainerID, cm.ExpectedSequence, cm.AtomHash, cm.PreviousHash, tsUnixMs)

	return &Validated{
		Commit:    cm,
		Delta:     delta,
		LinkHash:  linkHash,
		EntryHash: entryHash,
		Sequence:  cm.ExpectedSequence,
	}, nil
}

func validateShape(cm *link.Commit) error {
	if cm == nil {
		return ErrMalformedCommit
	}
	if cm.Version != link.CommitVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedCommit, cm.Version)
	}
	if cm.ContainerID == "" {
		return fmt.Errorf("%w: empty container_id", ErrMalformedCommit)
	}
	if !cm.IntentClass.Valid() {
		return fmt.Errorf("%w: invalid intent_class", ErrMalformedCommit)
	}
	if len(cm.PreviousHash) != 64 {
		return fmt.Errorf("%w: previous_hash must be 64 hex chars", ErrMalformedCommit)
	}
	if len(cm.AtomHash) != 64 {
		return fmt.Errorf("%w: atom_hash must be 64 hex chars", ErrMalformedCommit)
	}
	if _, err := hex.DecodeString(cm.AuthorPubKey); err != nil || len(cm.AuthorPubKey) != ed25519.PublicKeySize*2 {
		return fmt.Errorf("%w: malformed author_pubkey", ErrMalformedCommit)
	}
	if _, err := hex.DecodeString(cm.Signature); err != nil || len(cm.Signature) != ed25519.SignatureSize*2 {
		return fmt.Errorf("%w: malformed signature", ErrMalformedCommit)
	}
	return nil
}

func checkAtomHash(cm *link.Commit, rawAtom []byte) error {
	if rawAtom == nil {
		return nil
	}
	_, digest, err := atom.CanonicalHash(rawAtom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}
	if hex.EncodeToString(digest[:]) != cm.AtomHash {
		return ErrAtomHashMismatch
	}
	return nil
}

func verifyAuthorSignature(cm *link.Commit) error {
	signingBytes, err := cm.SigningBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}
	pubBytes, err := hex.DecodeString(cm.AuthorPubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}
	sigBytes, err := hex.DecodeString(cm.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCommit, err)
	}
	if !kernelcrypto.Verify(pubBytes, signingBytes, sigBytes) {
		return ErrInvalidSignature
	}
	return nil
}

func (m *Membrane) checkPact(ctx context.Context, cm *link.Commit, delta *big.Int, nowMs int64) error {
	if !pact.RequiresPact(cm.IntentClass, delta) {
		return nil
	}
	if cm.Pact == nil {
		return ErrPactRequired
	}
	return pact.Validate(ctx, m.Pacts, cm.Pact, cm.ContainerID, cm.IntentClass, cm.AtomHash, delta, nowMs)
}

// physicsDeltaRule enforces the per-commit shape of each intent class's
// delta. Conservation's Σδ=0 invariant spans every commit in a transfer
// rather than a single commit's own delta, so it is enforced by whoever
// submits a transfer's paired commits atomically, not by this per-commit
// stage — see the membrane package's resolved open question in DESIGN.md.
func physicsDeltaRule(class link.IntentClass, delta *big.Int) error {
	switch class {
	case link.Observation:
		if delta.Sign() != 0 {
			return fmt.Errorf("%w: observation must carry a zero delta", ErrMalformedCommit)
		}
	case link.Conservation, link.Entropy, link.Evolution:
		// No further per-commit constraint beyond what pact-gating
		// (checked above) already enforces for Entropy/Evolution.
	}
	return nil
}
