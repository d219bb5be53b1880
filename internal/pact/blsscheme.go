package pact

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// BLS12381PrivateKey is a pact signer's BLS12-381 secret scalar, usable
// for a pact that declares SchemeBLS12381.
type BLS12381PrivateKey struct {
	scalar fr.Element
}

// BLS12381PublicKey is a point on G2.
type BLS12381PublicKey struct {
	point bls12381.G2Affine
}

var (
	blsInitOnce sync.Once
	g1Gen       bls12381.G1Affine
	g2Gen       bls12381.G2Affine
)

func blsInit() {
	blsInitOnce.Do(func() {
		_, _, g1, g2 := bls12381.Generators()
		g1Gen = g1
		g2Gen = g2
	})
}

// GenerateBLSKeyPair creates a random BLS12-381 keypair.
func GenerateBLSKeyPair() (*BLS12381PrivateKey, *BLS12381PublicKey, error) {
	blsInit()
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, err
	}
	priv := &BLS12381PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

// PublicKey derives pk = sk * G2.
func (sk *BLS12381PrivateKey) PublicKey() *BLS12381PublicKey {
	blsInit()
	var pk bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &BLS12381PublicKey{point: pk}
}

// Sign computes sig = sk * H(msg), a point on G1.
func (sk *BLS12381PrivateKey) Sign(msg []byte) []byte {
	blsInit()
	h := hashToG1(msg)
	var sig bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)
	b := sig.Bytes()
	return b[:]
}

// Bytes returns the compressed G2 public key encoding.
func (pk *BLS12381PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

// verifyBLS checks e(sig, G2) == e(H(msg), pk) via a pairing check,
// the pact package's entry point for BLS-scheme signature verification.
func verifyBLS(pubBytes, sigBytes, msg []byte) (bool, error) {
	blsInit()

	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(pubBytes); err != nil {
		return false, err
	}
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return false, err
	}

	h := hashToG1(msg)

	var negPk bls12381.G2Affine
	negPk.Neg(&pk)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// AggregateBLSSignatures sums signatures on G1, for pact schemes that
// want to carry one combined signature instead of N individual ones.
func AggregateBLSSignatures(sigs [][]byte) ([]byte, error) {
	blsInit()
	if len(sigs) == 0 {
		return nil, errors.New("pact: no signatures to aggregate")
	}
	var agg bls12381.G1Jac
	for i, raw := range sigs {
		var p bls12381.G1Affine
		if _, err := p.SetBytes(raw); err != nil {
			return nil, err
		}
		var jac bls12381.G1Jac
		jac.FromAffine(&p)
		if i == 0 {
			agg = jac
		} else {
			agg.AddAssign(&jac)
		}
	}
	var result bls12381.G1Affine
	result.FromJacobian(&agg)
	b := result.Bytes()
	return b[:], nil
}

// hashToG1 deterministically maps msg onto a point on G1 ("hash and
// pray": hash, try to decode as a point, else hash-to-scalar and
// multiply the generator).
func hashToG1(msg []byte) bls12381.G1Affine {
	blsInit()

	h := sha256.New()
	h.Write([]byte("ubl:pact:bls12381\n"))
	h.Write(msg)
	base := h.Sum(nil)

	for counter := uint64(0); counter < 1000; counter++ {
		h2 := sha256.New()
		h2.Write(base)
		binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(hash); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)

		var result bls12381.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}
	}
	return g1Gen
}
