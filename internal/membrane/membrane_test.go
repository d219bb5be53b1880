package membrane

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	pactpkg "github.com/certen/ledger-kernel/internal/pact"

	"github.com/certen/ledger-kernel/internal/kernelcrypto"
	"github.com/certen/ledger-kernel/internal/link"
)

type fixedHead struct {
	seq  uint64
	prev string
}

func (f fixedHead) ChainHead(_ context.Context, _ string) (uint64, string, error) {
	return f.seq, f.prev, nil
}

type emptyPactStore struct{}

func (emptyPactStore) GetPact(_ context.Context, _ string) (*pactpkg.Pact, error) {
	return nil, nil
}

func signedCommit(t *testing.T, priv ed25519.PrivateKey, containerID string, seq uint64, prevHash string, class link.IntentClass, delta string, atomHash string) *link.Commit {
	t.Helper()
	cm := &link.Commit{
		Version:          link.CommitVersion,
		ContainerID:      containerID,
		ExpectedSequence: seq,
		PreviousHash:     prevHash,
		AtomHash:         atomHash,
		IntentClass:      class,
		PhysicsDelta:     delta,
		AuthorPubKey:     hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}
	sb, err := cm.SigningBytes()
	if err != nil {
		t.Fatalf("signing bytes: %v", err)
	}
	cm.Signature = hex.EncodeToString(kernelcrypto.Sign(priv, sb))
	return cm
}

func sixtyFourHex(b byte) string {
	s := ""
	for i := 0; i < 32; i++ {
		s += hex.EncodeToString([]byte{b})
	}
	return s
}

func TestValidateHappyPathObservation(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	_ = pub
	atomHash := sixtyFourHex(0xaa)
	cm := signedCommit(t, priv, "C.Jobs", 1, kernelcrypto.GenesisHash, link.Observation, "0", atomHash)

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	v, err := m.Validate(context.Background(), cm, nil, nil, 1000, 1700000000000)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if v.Sequence != 1 {
		t.Fatalf("unexpected sequence %d", v.Sequence)
	}
}

func TestValidateRejectsSequenceMismatch(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	atomHash := sixtyFourHex(0xaa)
	cm := signedCommit(t, priv, "C.Jobs", 5, kernelcrypto.GenesisHash, link.Observation, "0", atomHash)

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	_, err := m.Validate(context.Background(), cm, nil, nil, 1000, 1700000000000)
	if err != ErrSequenceMismatch {
		t.Fatalf("expected ErrSequenceMismatch, got %v", err)
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	atomHash := sixtyFourHex(0xaa)
	cm := signedCommit(t, priv, "C.Jobs", 1, kernelcrypto.GenesisHash, link.Observation, "0", atomHash)
	cm.ContainerID = "C.Tampered"

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	_, err := m.Validate(context.Background(), cm, nil, nil, 1000, 1700000000000)
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidateObservationMustBeZeroDelta(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	atomHash := sixtyFourHex(0xaa)
	cm := signedCommit(t, priv, "C.Jobs", 1, kernelcrypto.GenesisHash, link.Observation, "1", atomHash)

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	_, err := m.Validate(context.Background(), cm, nil, nil, 1000, 1700000000000)
	if err == nil {
		t.Fatalf("expected error for non-zero observation delta")
	}
}

func TestValidateEntropyRequiresPact(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	atomHash := sixtyFourHex(0xaa)
	cm := signedCommit(t, priv, "C.Jobs", 1, kernelcrypto.GenesisHash, link.Entropy, "10", atomHash)

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	_, err := m.Validate(context.Background(), cm, nil, nil, 1000, 1700000000000)
	if err != ErrPactRequired {
		t.Fatalf("expected ErrPactRequired, got %v", err)
	}
}

func TestValidateChecksAtomHashIntegrity(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	atomHash := sixtyFourHex(0xaa) // doesn't match rawAtom below
	cm := signedCommit(t, priv, "C.Jobs", 1, kernelcrypto.GenesisHash, link.Observation, "0", atomHash)

	m := New(emptyPactStore{}, fixedHead{seq: 1, prev: kernelcrypto.GenesisHash})
	_, err := m.Validate(context.Background(), cm, []byte(`{"x":1}`), nil, 1000, 1700000000000)
	if err != ErrAtomHashMismatch {
		t.Fatalf("expected ErrAtomHashMismatch, got %v", err)
	}
}
