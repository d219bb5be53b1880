package link

import (
	"fmt"
	"math/big"
)

// minDelta and maxDelta are the bounds of a signed 128-bit integer, the
// wire width of physics_delta.
var (
	minDelta = new(big.Int).Lsh(big.NewInt(-1), 127)
	maxDelta = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// ParseDelta parses the decimal string transport form of physics_delta
// and checks that it fits in a signed 128-bit range.
func ParseDelta(s string) (*big.Int, error) {
	d, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("link: invalid physics_delta %q", s)
	}
	if d.Cmp(minDelta) < 0 || d.Cmp(maxDelta) > 0 {
		return nil, fmt.Errorf("link: physics_delta %s out of signed 128-bit range", s)
	}
	return d, nil
}

// EncodeDelta128 renders d as 16 bytes, big-endian, two's complement.
func EncodeDelta128(d *big.Int) ([16]byte, error) {
	var out [16]byte
	if d.Cmp(minDelta) < 0 || d.Cmp(maxDelta) > 0 {
		return out, fmt.Errorf("link: physics_delta %s out of signed 128-bit range", d.String())
	}

	v := new(big.Int).Set(d)
	if v.Sign() < 0 {
		// Two's complement: (1<<128) + v.
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Add(mod, v)
	}
	v.FillBytes(out[:])
	return out, nil
}
