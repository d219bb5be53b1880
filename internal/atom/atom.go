// Package atom implements deterministic canonicalization of atom payloads
// and the raw content hash derived from the canonical bytes.
//
// An atom is an arbitrary JSON-shaped value (object, array, string,
// number, bool, or null) carried inside a link commit. Two atoms that are
// semantically equal must canonicalize to byte-identical output so that
// signatures and hashes computed over them are reproducible regardless of
// how the caller happened to construct or transmit the value.
package atom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"lukechampine.com/blake3"
)

// ErrNonFiniteNumber is returned when an atom contains a NaN or infinite
// number. Canonical form has no representation for non-finite values.
var ErrNonFiniteNumber = errors.New("atom: non-finite number")

// Decode parses JSON bytes into a canonicalizable value, preserving each
// number's original literal form (so "1" and "1.0" round-trip as typed,
// rather than collapsing through a lossy float64 conversion).
func Decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("atom: decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("atom: trailing data after value")
	}
	return v, nil
}

// Canonicalize produces the deterministic byte encoding of v: object keys
// sorted lexicographically, arrays kept in order, numbers rejected if
// non-finite and otherwise emitted in their original textual form.
func Canonicalize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the raw BLAKE3-256 digest of the canonical bytes. Unlike
// the entry and pact hashes, the atom hash carries no domain-separation
// prefix — it is the content address of the atom alone.
func Hash(canonical []byte) [32]byte {
	return blake3.Sum256(canonical)
}

// CanonicalHash is a convenience wrapper: decode, canonicalize, hash.
func CanonicalHash(raw []byte) (canonical []byte, digest [32]byte, err error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, digest, err
	}
	canonical, err = Canonicalize(v)
	if err != nil {
		return nil, digest, err
	}
	return canonical, Hash(canonical), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return encodeString(buf, val)
	case json.Number:
		return encodeNumber(buf, val)
	case float64:
		return encodeNumber(buf, json.Number(strconv.FormatFloat(val, 'g', -1, 64)))
	case int:
		return encodeNumber(buf, json.Number(strconv.Itoa(val)))
	case int64:
		return encodeNumber(buf, json.Number(strconv.FormatInt(val, 10)))
	case map[string]interface{}:
		return encodeObject(buf, val)
	case []interface{}:
		return encodeArray(buf, val)
	default:
		return fmt.Errorf("atom: unsupported value type %T", v)
	}
}

func encodeObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, a []interface{}) error {
	buf.WriteByte('[')
	for i, e := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("atom: encode string: %w", err)
	}
	buf.Write(b)
	return nil
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("atom: invalid number %q: %w", n, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrNonFiniteNumber
	}
	buf.WriteString(n.String())
	return nil
}
