// Package pact implements multi-party authorization: the Pact record
// type, the deterministic sign-message construction, and the ordered
// validation algorithm a commit's attached proof must satisfy before an
// Entropy or Evolution commit (or any commit with a non-zero delta that
// requires one) may be admitted.
package pact

import (
	"math/big"

	"github.com/certen/ledger-kernel/internal/link"
)

// ScopeType selects how a pact's ScopeValue is matched against a
// commit's container_id.
type ScopeType string

const (
	// ScopeGlobal applies to every container.
	ScopeGlobal ScopeType = "global"
	// ScopeContainer applies only to the exact container named by ScopeValue.
	ScopeContainer ScopeType = "container"
	// ScopeNamespace applies to every container whose id has ScopeValue
	// as a prefix.
	ScopeNamespace ScopeType = "namespace"
)

// SignatureScheme selects how PactSignature.Signature is interpreted.
type SignatureScheme string

const (
	SchemeEd25519  SignatureScheme = "ed25519"
	SchemeBLS12381 SignatureScheme = "bls12381"
)

// Pact is a standing multi-party authorization: a named set of signers,
// a threshold, and the scope/intent-classes/time-window it applies to.
type Pact struct {
	PactID          string
	Version         int
	ScopeType       ScopeType
	ScopeValue      string // unused when ScopeType == ScopeGlobal
	IntentClasses   []link.IntentClass
	Threshold       int
	Signers         []string // hex-encoded public keys, the authorized parties
	NotBeforeMs     int64    // 0 means unbounded
	NotAfterMs      int64    // 0 means unbounded
	SignatureScheme SignatureScheme
}

// RequiresPact reports whether a commit of the given class and delta
// needs an attached PactProof. Observation and Conservation never
// require one; Entropy requires one only when the delta is non-zero;
// Evolution always requires one.
func RequiresPact(class link.IntentClass, delta *big.Int) bool {
	switch class {
	case link.Observation, link.Conservation:
		return false
	case link.Entropy:
		return delta.Sign() != 0
	case link.Evolution:
		return true
	default:
		return true
	}
}

func (p *Pact) scopeMatches(containerID string) bool {
	switch p.ScopeType {
	case ScopeGlobal:
		return true
	case ScopeContainer:
		return p.ScopeValue == containerID
	case ScopeNamespace:
		return len(containerID) >= len(p.ScopeValue) && containerID[:len(p.ScopeValue)] == p.ScopeValue
	default:
		return false
	}
}

func (p *Pact) intentClassAuthorized(class link.IntentClass) bool {
	for _, c := range p.IntentClasses {
		if c == class {
			return true
		}
	}
	return false
}

func (p *Pact) withinWindow(nowMs int64) bool {
	if p.NotBeforeMs != 0 && nowMs < p.NotBeforeMs {
		return false
	}
	if p.NotAfterMs != 0 && nowMs > p.NotAfterMs {
		return false
	}
	return true
}

func (p *Pact) scheme() SignatureScheme {
	if p.SignatureScheme == "" {
		return SchemeEd25519
	}
	return p.SignatureScheme
}
