// Package rsablind implements textbook RSA blind signatures over a
// full-domain SHA3-256 digest.
//
// The blinding factor is returned to the caller rather than hidden in a
// session object: the cut-and-choose audit in package issuance has the
// signer recompute a blinding from a revealed (message, factor) pair.
package rsablind

import (
	"errors"
	"fmt"
	"math/big"

	"blindcash/randutil"

	"github.com/tuneinsight/lattigo/v4/utils"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidKey reports a public key with a missing or non-positive component.
	ErrInvalidKey = errors.New("rsablind: invalid key")
	// ErrInvalidFactor reports a blinding factor that is not a unit mod N.
	ErrInvalidFactor = errors.New("rsablind: invalid blinding factor")
	// ErrOutOfRange reports a group element outside [0, N).
	ErrOutOfRange = errors.New("rsablind: value out of range")
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// PublicKey holds the signer's public parameters.
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// Validate checks that both components are present and positive, and that
// the exponent is a usable RSA exponent.
func (pk PublicKey) Validate() error {
	if pk.N == nil || pk.E == nil {
		return fmt.Errorf("%w: missing modulus or exponent", ErrInvalidKey)
	}
	if pk.N.Sign() <= 0 || pk.E.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive modulus or exponent", ErrInvalidKey)
	}
	if pk.N.Cmp(two) <= 0 || pk.E.Cmp(two) <= 0 {
		return fmt.Errorf("%w: modulus and exponent must exceed 2", ErrInvalidKey)
	}
	return nil
}

// Equal reports whether two keys carry the same parameters.
func (pk PublicKey) Equal(other PublicKey) bool {
	if pk.N == nil || pk.E == nil || other.N == nil || other.E == nil {
		return false
	}
	return pk.N.Cmp(other.N) == 0 && pk.E.Cmp(other.E) == 0
}

func (pk PublicKey) inRange(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(pk.N) < 0
}

// HashToInt maps msg to an element of Z_N.
func HashToInt(pk PublicKey, msg []byte) *big.Int {
	digest := sha3.Sum256(msg)
	m := new(big.Int).SetBytes(digest[:])
	return m.Mod(m, pk.N)
}

// Blind hides msg under a fresh factor r drawn uniformly from the units of
// Z_N and returns (H(msg)·r^e mod N, r).
func Blind(pk PublicKey, msg []byte, prng utils.PRNG) (blinded, factor *big.Int, err error) {
	if err := pk.Validate(); err != nil {
		return nil, nil, err
	}
	gcd := new(big.Int)
	for {
		r, err := randutil.BigIntn(prng, pk.N)
		if err != nil {
			return nil, nil, fmt.Errorf("sample blinding factor: %w", err)
		}
		if r.Cmp(two) < 0 {
			continue
		}
		if gcd.GCD(nil, nil, r, pk.N).Cmp(one) != 0 {
			continue
		}
		factor = r
		break
	}
	blinded, err = BlindWithFactor(pk, msg, factor)
	if err != nil {
		return nil, nil, err
	}
	return blinded, factor, nil
}

// BlindWithFactor recomputes the blinding of msg under a known factor.
func BlindWithFactor(pk PublicKey, msg []byte, factor *big.Int) (*big.Int, error) {
	if err := pk.Validate(); err != nil {
		return nil, err
	}
	if err := checkFactor(pk, factor); err != nil {
		return nil, err
	}
	m := HashToInt(pk, msg)
	re := new(big.Int).Exp(factor, pk.E, pk.N)
	m.Mul(m, re)
	return m.Mod(m, pk.N), nil
}

// Unblind strips factor from a blind signature, giving a signature over the
// plain message.
func Unblind(pk PublicKey, blindSig, factor *big.Int) (*big.Int, error) {
	if err := pk.Validate(); err != nil {
		return nil, err
	}
	if !pk.inRange(blindSig) {
		return nil, fmt.Errorf("blind signature: %w", ErrOutOfRange)
	}
	if err := checkFactor(pk, factor); err != nil {
		return nil, err
	}
	inv := new(big.Int).ModInverse(factor, pk.N)
	if inv == nil {
		return nil, ErrInvalidFactor
	}
	s := new(big.Int).Mul(blindSig, inv)
	return s.Mod(s, pk.N), nil
}

// Verify checks sig^e == H(msg) mod N.
func Verify(pk PublicKey, msg []byte, sig *big.Int) bool {
	if pk.Validate() != nil || !pk.inRange(sig) {
		return false
	}
	return new(big.Int).Exp(sig, pk.E, pk.N).Cmp(HashToInt(pk, msg)) == 0
}

// VerifyBlinded checks sig^e == blinded mod N, i.e. that sig is the signer's
// response to a blinded request.
func VerifyBlinded(pk PublicKey, blinded, sig *big.Int) bool {
	if pk.Validate() != nil || !pk.inRange(sig) || !pk.inRange(blinded) {
		return false
	}
	return new(big.Int).Exp(sig, pk.E, pk.N).Cmp(blinded) == 0
}

func checkFactor(pk PublicKey, factor *big.Int) error {
	if factor == nil || factor.Cmp(one) < 0 || factor.Cmp(pk.N) >= 0 {
		return fmt.Errorf("%w: outside [1, N)", ErrInvalidFactor)
	}
	if new(big.Int).GCD(nil, nil, factor, pk.N).Cmp(one) != 0 {
		return fmt.Errorf("%w: shares a factor with N", ErrInvalidFactor)
	}
	return nil
}
