// Package randutil draws uniform values from an injected lattigo PRNG.
//
// Every protocol step that needs randomness (fragment sampling, blinding
// factors, side selection, index selection, GUIDs) takes a utils.PRNG
// argument instead of reaching for a global source, so tests can replay
// fixed sequences.
package randutil

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/tuneinsight/lattigo/v4/utils"
)

// New returns a freshly keyed PRNG. The key is drawn from crypto/rand by lattigo.
func New() (utils.PRNG, error) {
	prng, err := utils.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("new prng: %w", err)
	}
	return prng, nil
}

// Seeded returns a deterministic PRNG keyed with seed.
func Seeded(seed []byte) (utils.PRNG, error) {
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("keyed prng: %w", err)
	}
	return prng, nil
}

// Bytes reads n bytes from prng.
func Bytes(prng utils.PRNG, n int) ([]byte, error) {
	if prng == nil {
		return nil, fmt.Errorf("nil prng")
	}
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := prng.Read(buf); err != nil {
		return nil, fmt.Errorf("read prng: %w", err)
	}
	return buf, nil
}

// Bit returns 0 or 1 from the low bit of one byte.
func Bit(prng utils.PRNG) (int, error) {
	b, err := Bytes(prng, 1)
	if err != nil {
		return 0, err
	}
	return int(b[0] & 1), nil
}

// Intn returns a uniform integer in [0, n). Bytes are read big-endian,
// masked to the bit length of n-1 and rejected when they land past n-1.
func Intn(prng utils.PRNG, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("n must be > 0, got %d", n)
	}
	if n == 1 {
		return 0, nil
	}
	bitLen := bits.Len(uint(n - 1))
	size := (bitLen + 7) / 8
	mask := byte(0xff >> uint(size*8-bitLen))
	for {
		buf, err := Bytes(prng, size)
		if err != nil {
			return 0, err
		}
		buf[0] &= mask
		v := 0
		for _, b := range buf {
			v = v<<8 | int(b)
		}
		if v < n {
			return v, nil
		}
	}
}

// BigIntn returns a uniform integer in [0, max). Rejection sampling is
// delegated to crypto/rand.Int, which only needs an io.Reader.
func BigIntn(prng utils.PRNG, max *big.Int) (*big.Int, error) {
	if prng == nil {
		return nil, fmt.Errorf("nil prng")
	}
	if max == nil || max.Sign() <= 0 {
		return nil, fmt.Errorf("max must be > 0")
	}
	v, err := rand.Int(prng, max)
	if err != nil {
		return nil, fmt.Errorf("sample below %s: %w", max.String(), err)
	}
	return v, nil
}
