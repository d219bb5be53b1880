package atom

import (
	"encoding/hex"
	"math"
	"testing"

	"lukechampine.com/blake3"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	a, err := Decode([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := Decode([]byte(`{"a":2,"b":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("expected equal canonical bytes, got %q vs %q", ca, cb)
	}
	if string(ca) != `{"a":2,"b":1}` {
		t.Fatalf("unexpected canonical form: %q", ca)
	}
}

func TestCanonicalizeNestedArraysPreserveOrder(t *testing.T) {
	v, err := Decode([]byte(`{"xs":[3,1,2]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(c) != `{"xs":[3,1,2]}` {
		t.Fatalf("array order must be preserved, got %q", c)
	}
}

func TestCanonicalizeRejectsNonFiniteNumber(t *testing.T) {
	_, err := Canonicalize(map[string]interface{}{"x": math.Inf(1)})
	if err != ErrNonFiniteNumber {
		t.Fatalf("expected ErrNonFiniteNumber, got %v", err)
	}
}

func TestHashHasNoDomainTag(t *testing.T) {
	canonical := []byte(`{"a":1}`)
	got := Hash(canonical)

	// The atom hash must equal the raw BLAKE3 digest of the canonical
	// bytes with no domain-separation prefix mixed in.
	want := rawBlake3Hex(canonical)
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("atom hash carries an unexpected prefix: got %x", got)
	}
}

func TestCanonicalHashIsDeterministic(t *testing.T) {
	raw := []byte(`{"amount":"10","kind":"observation"}`)
	_, h1, err := CanonicalHash(raw)
	if err != nil {
		t.Fatalf("canonical hash: %v", err)
	}
	_, h2, err := CanonicalHash(raw)
	if err != nil {
		t.Fatalf("canonical hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %x vs %x", h1, h2)
	}
}

func rawBlake3Hex(b []byte) string {
	h := blake3.Sum256(b)
	return hex.EncodeToString(h[:])
}
