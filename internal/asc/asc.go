// Package asc implements delegated capability tokens (Agent/Authorization
// Scope Certificates): a scoped grant that lets a holder's commits pass
// the membrane without a human-held key, bounded to specific containers,
// intent classes, and a maximum per-commit delta magnitude.
package asc

import (
	"errors"
	"math/big"

	"github.com/certen/ledger-kernel/internal/link"
)

// OwnerKind distinguishes a human-held ASC from one issued to an
// automated/LLM agent. The distinction is structural, not advisory: an
// LLM-owned ASC can never authorize Entropy or Evolution, regardless of
// how its scope fields are configured.
type OwnerKind string

const (
	OwnerHuman OwnerKind = "human"
	OwnerLLM   OwnerKind = "llm"
)

// Certificate is a delegated capability: the containers, intent classes,
// and maximum delta magnitude it authorizes, plus the owner that holds it.
type Certificate struct {
	ID           string
	OwnerKind    OwnerKind
	ContainerIDs []string // empty means every container
	Classes      []link.IntentClass
	MaxDelta     *big.Int // nil means unbounded
	NotBeforeMs  int64
	NotAfterMs   int64
	Revoked      bool
}

var (
	ErrRevoked             = errors.New("asc: certificate revoked")
	ErrExpired             = errors.New("asc: certificate outside its validity window")
	ErrContainerNotInScope = errors.New("asc: container not in certificate scope")
	ErrClassNotInScope     = errors.New("asc: intent class not in certificate scope")
	ErrDeltaExceedsMax     = errors.New("asc: delta exceeds certificate's maximum")
	ErrLLMStructuralBan    = errors.New("asc: an LLM-owned certificate can never authorize entropy or evolution")
)

// Authorize checks that cert permits a commit of the given container,
// intent class, and delta at nowMs. The LLM structural ban is checked
// before, and independently of, the certificate's own scope fields —
// misconfiguring Classes on an LLM-owned certificate can never open the
// door to Entropy or Evolution.
func (c *Certificate) Authorize(containerID string, class link.IntentClass, delta *big.Int, nowMs int64) error {
	if c.OwnerKind == OwnerLLM && (class == link.Entropy || class == link.Evolution) {
		return ErrLLMStructuralBan
	}
	if c.Revoked {
		return ErrRevoked
	}
	if c.NotBeforeMs != 0 && nowMs < c.NotBeforeMs {
		return ErrExpired
	}
	if c.NotAfterMs != 0 && nowMs > c.NotAfterMs {
		return ErrExpired
	}
	if len(c.ContainerIDs) > 0 && !containerInScope(c.ContainerIDs, containerID) {
		return ErrContainerNotInScope
	}
	if len(c.Classes) > 0 && !containsClass(c.Classes, class) {
		return ErrClassNotInScope
	}
	if c.MaxDelta != nil {
		abs := new(big.Int).Abs(delta)
		if abs.Cmp(c.MaxDelta) > 0 {
			return ErrDeltaExceedsMax
		}
	}
	return nil
}

// containerInScope reports whether containerID is covered by any entry
// in scopes — each entry matches either exactly or as a namespace
// prefix of containerID (an exact match is the prefix case where the
// two are equal), the same prefix test the pact engine applies to a
// namespace-scoped pact.
func containerInScope(scopes []string, containerID string) bool {
	for _, s := range scopes {
		if len(containerID) >= len(s) && containerID[:len(s)] == s {
			return true
		}
	}
	return false
}

func containsClass(xs []link.IntentClass, v link.IntentClass) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
