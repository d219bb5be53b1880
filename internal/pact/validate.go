package pact

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/certen/ledger-kernel/internal/kernelcrypto"
	"github.com/certen/ledger-kernel/internal/link"
)

// Store looks up a Pact by id. Implementations back it with the ledger
// store's pact repository.
type Store interface {
	GetPact(ctx context.Context, pactID string) (*Pact, error)
}

// BuildSignMessage constructs the bytes every pact signer signs:
//
//	"ubl:pact\n" || pact_id || atom_hash(utf8) || intent_class(1) ||
//	physics_delta(16B BE two's complement)
func BuildSignMessage(pactID, atomHash string, class link.IntentClass, delta *big.Int) ([]byte, error) {
	deltaBytes, err := link.EncodeDelta128(delta)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(kernelcrypto.PactDomain)+len(pactID)+len(atomHash)+1+16)
	buf = append(buf, kernelcrypto.PactDomain...)
	buf = append(buf, []byte(pactID)...)
	buf = append(buf, []byte(atomHash)...)
	buf = append(buf, class.Byte())
	buf = append(buf, deltaBytes[:]...)
	return buf, nil
}

// Validate runs the full validation algorithm for a proof attached to a
// commit, in order:
//
//  1. look up the pact by id (ErrUnknownPact if absent)
//  2. check the validity time window (ErrPactExpired)
//  3. check scope against the commit's container (ErrUnknownPact)
//  4. check the commit's intent class is authorized (ErrIntentClassMismatch)
//  5. build the canonical sign message
//  6. for each signature: reject duplicate signers, unauthorized
//     signers, and invalid signatures
//  7. require at least Threshold valid, distinct, authorized signatures
//     (ErrInsufficientSignatures)
func Validate(ctx context.Context, store Store, proof *link.PactProof, containerID string, class link.IntentClass, atomHash string, delta *big.Int, nowMs int64) error {
	if proof == nil {
		return ErrUnknownPact
	}

	p, err := store.GetPact(ctx, proof.PactID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownPact, err)
	}
	if p == nil {
		return ErrUnknownPact
	}

	if !p.withinWindow(nowMs) {
		return ErrPactExpired
	}

	if !p.scopeMatches(containerID) {
		return ErrUnknownPact
	}

	if !p.intentClassAuthorized(class) {
		return ErrIntentClassMismatch
	}

	msg, err := BuildSignMessage(p.PactID, atomHash, class, delta)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(proof.Signatures))
	valid := 0
	for _, sig := range proof.Signatures {
		if seen[sig.Signer] {
			return ErrDuplicateSignature
		}
		seen[sig.Signer] = true

		if !isAuthorizedSigner(p, sig.Signer) {
			return ErrUnauthorizedSigner
		}

		ok, err := verifySignature(p.scheme(), sig.Signer, sig.Signature, msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if !ok {
			return ErrInvalidSignature
		}
		valid++
	}

	if valid < p.Threshold {
		return ErrInsufficientSignatures
	}
	return nil
}

func isAuthorizedSigner(p *Pact, signer string) bool {
	for _, s := range p.Signers {
		if s == signer {
			return true
		}
	}
	return false
}

func verifySignature(scheme SignatureScheme, signerHex, sigHex string, msg []byte) (bool, error) {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	pubBytes, err := hex.DecodeString(signerHex)
	if err != nil {
		return false, fmt.Errorf("decode signer key: %w", err)
	}

	switch scheme {
	case SchemeEd25519, "":
		if len(pubBytes) != ed25519.PublicKeySize {
			return false, errors.New("invalid ed25519 public key length")
		}
		return kernelcrypto.Verify(ed25519.PublicKey(pubBytes), msg, sigBytes), nil
	case SchemeBLS12381:
		return verifyBLS(pubBytes, sigBytes, msg)
	default:
		return false, ErrUnsupportedScheme
	}
}
