// Package link defines the commit envelope and the deterministic bytes
// an author signs over it.
package link

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// CommitVersion is the current wire version of LinkCommit.
const CommitVersion byte = 1

// PactSignature is one signer's contribution to a PactProof.
type PactSignature struct {
	Signer    string `json:"signer"`    // hex-encoded public key
	Signature string `json:"signature"` // hex-encoded signature
}

// PactProof is the multi-party authorization attached to a commit when
// its intent class requires one.
type PactProof struct {
	PactID     string          `json:"pact_id"`
	Signatures []PactSignature `json:"signatures"`
}

// Commit is the author-signed envelope that, once admitted by the
// membrane, becomes a ledger entry.
type Commit struct {
	Version          byte        `json:"version"`
	ContainerID      string      `json:"container_id"`
	ExpectedSequence uint64      `json:"expected_sequence"`
	PreviousHash     string      `json:"previous_hash"`
	AtomHash         string      `json:"atom_hash"`
	IntentClass      IntentClass `json:"intent_class"`
	PhysicsDelta     string      `json:"physics_delta"` // decimal, signed 128-bit
	Pact             *PactProof  `json:"pact,omitempty"`
	AuthorPubKey     string      `json:"author_pubkey"`
	Signature        string      `json:"signature"`
}

// Delta parses PhysicsDelta into a big.Int, validating its 128-bit range.
func (c *Commit) Delta() (*big.Int, error) {
	return ParseDelta(c.PhysicsDelta)
}

// SigningBytes returns the deterministic byte sequence the author signs:
//
//	version(1) || container_id(utf8) || expected_sequence(8B BE) ||
//	previous_hash(utf8) || atom_hash(utf8) || intent_class(1) ||
//	physics_delta(16B BE two's complement)
//
// pact, author_pubkey, and signature are excluded: they either don't
// exist yet at signing time (pact may be attached afterward) or are the
// signature itself.
func (c *Commit) SigningBytes() ([]byte, error) {
	delta, err := c.Delta()
	if err != nil {
		return nil, err
	}
	deltaBytes, err := EncodeDelta128(delta)
	if err != nil {
		return nil, err
	}
	if !c.IntentClass.Valid() {
		return nil, fmt.Errorf("link: invalid intent_class %d", c.IntentClass)
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], c.ExpectedSequence)

	buf := make([]byte, 0, 1+len(c.ContainerID)+8+len(c.PreviousHash)+len(c.AtomHash)+1+16)
	buf = append(buf, c.Version)
	buf = append(buf, []byte(c.ContainerID)...)
	buf = append(buf, seqBuf[:]...)
	buf = append(buf, []byte(c.PreviousHash)...)
	buf = append(buf, []byte(c.AtomHash)...)
	buf = append(buf, c.IntentClass.Byte())
	buf = append(buf, deltaBytes[:]...)
	return buf, nil
}

// Receipt is returned to the author once a commit has been admitted and
// appended to the ledger.
type Receipt struct {
	ContainerID string `json:"container_id"`
	Sequence    uint64 `json:"sequence"`
	EntryHash   string `json:"entry_hash"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
