// Package kernelcrypto provides the kernel's domain-separated hashing and
// Ed25519 signing primitives. Every hash that is not an atom hash (see
// package atom) carries a domain tag so that a digest computed for one
// purpose can never collide with, or be replayed as, a digest for another.
package kernelcrypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"

	"lukechampine.com/blake3"
)

// Domain tags. Each is a fixed ASCII string terminated by a newline,
// mixed in as the first bytes hashed for its purpose.
var (
	LedgerDomain = []byte("ubl:ledger\n")
	RootDomain   = []byte("ubl:root\n")
	PactDomain   = []byte("ubl:pact\n")
)

// GenesisHash is the previous_hash value for the first entry of any
// container: 64 hex characters, all zero.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashWithDomain hashes domain followed by each part, concatenated, with
// a single BLAKE3-256 pass. No length-prefixing is applied between parts;
// callers are responsible for choosing fixed-width or otherwise
// unambiguous encodings for each part (see HashEntry for the canonical
// example).
func HashWithDomain(domain []byte, parts ...[]byte) [32]byte {
	h := blake3.New(32, nil)
	h.Write(domain)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashEntry computes the ledger entry hash:
//
//	BLAKE3("ubl:ledger\n" || container_id || sequence(8B BE) ||
//	       link_hash || previous_hash || ts_unix_ms(8B BE))
//
// link_hash and previous_hash are taken as their hex string encodings,
// matching how they are carried on the wire.
func HashEntry(containerID string, sequence uint64, linkHash, previousHash string, tsUnixMs int64) [32]byte {
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], sequence)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(tsUnixMs))

	return HashWithDomain(LedgerDomain,
		[]byte(containerID),
		seqBuf[:],
		[]byte(linkHash),
		[]byte(previousHash),
		tsBuf[:],
	)
}

// Sign produces an Ed25519 signature over msg.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid Ed25519 signature of msg under pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// ErrInvalidKeySize is returned when a key file or argument does not
// decode to the expected Ed25519 key length.
var ErrInvalidKeySize = errors.New("kernelcrypto: invalid key size")
