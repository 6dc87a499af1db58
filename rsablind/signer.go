package rsablind

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
)

// MinKeyBits is the smallest modulus GenerateKey accepts.
const MinKeyBits = 1024

// ErrSignerClosed is returned by a Signer after Close.
var ErrSignerClosed = errors.New("rsablind: signer closed")

// Signer owns the private key. It is created once per process, passed by
// reference to whatever needs to sign, and wiped with Close. A Signer is not
// safe for concurrent use.
type Signer struct {
	key *rsa.PrivateKey
	pub PublicKey
}

// GenerateKey creates a Signer with a fresh bits-sized modulus.
func GenerateKey(random io.Reader, bits int) (*Signer, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("key size %d below minimum %d", bits, MinKeyBits)
	}
	key, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	log.Printf("[rsablind] generated %d-bit signing key", bits)
	return NewSigner(key)
}

// NewSigner wraps an existing private key.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrInvalidKey)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key.Precompute()
	pub := PublicKey{N: new(big.Int).Set(key.N), E: big.NewInt(int64(key.E))}
	return &Signer{key: key, pub: pub}, nil
}

// Public returns a copy of the public key.
func (s *Signer) Public() PublicKey {
	return PublicKey{N: new(big.Int).Set(s.pub.N), E: new(big.Int).Set(s.pub.E)}
}

// Key exposes the private key for persistence. It is nil after Close.
func (s *Signer) Key() *rsa.PrivateKey {
	return s.key
}

// Sign raises a blinded request to the private exponent. The signer learns
// nothing about the message behind it.
func (s *Signer) Sign(blinded *big.Int) (*big.Int, error) {
	if s.key == nil {
		return nil, ErrSignerClosed
	}
	if !s.pub.inRange(blinded) {
		return nil, fmt.Errorf("blinded message: %w", ErrOutOfRange)
	}
	return new(big.Int).Exp(blinded, s.key.D, s.key.N), nil
}

// SignMessage signs H(msg) directly, without blinding.
func (s *Signer) SignMessage(msg []byte) (*big.Int, error) {
	if s.key == nil {
		return nil, ErrSignerClosed
	}
	return s.Sign(HashToInt(s.pub, msg))
}

// Close wipes the private key material, CRT values included, and drops the
// key. Later calls to Sign fail.
func (s *Signer) Close() {
	if s.key == nil {
		return
	}
	s.key.D.SetInt64(0)
	for _, p := range s.key.Primes {
		p.SetInt64(0)
	}
	pre := &s.key.Precomputed
	for _, v := range []*big.Int{pre.Dp, pre.Dq, pre.Qinv} {
		if v != nil {
			v.SetInt64(0)
		}
	}
	for _, crt := range pre.CRTValues {
		for _, v := range []*big.Int{crt.Exp, crt.Coeff, crt.R} {
			if v != nil {
				v.SetInt64(0)
			}
		}
	}
	s.key.Precomputed = rsa.PrecomputedValues{}
	s.key = nil
	log.Printf("[rsablind] signing key wiped")
}
