// Package keys persists the bank's RSA key as JSON.
package keys

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"blindcash/rsablind"
)

const (
	privateVersion = "blindcash-rsa-private-v1"
	publicVersion  = "blindcash-rsa-public-v1"
)

// PrivateKey is the on-disk form of a signing key. Integers are hex.
type PrivateKey struct {
	Version string   `json:"version"`
	N       string   `json:"N"`
	E       int      `json:"E"`
	D       string   `json:"D"`
	Primes  []string `json:"primes"`
}

// PublicKey is the on-disk form of the bank's public key.
type PublicKey struct {
	Version string `json:"version"`
	N       string `json:"N"`
	E       string `json:"E"`
}

// SavePrivate writes the signer's key to path with owner-only permissions.
func SavePrivate(path string, s *rsablind.Signer) error {
	key := s.Key()
	if key == nil {
		return rsablind.ErrSignerClosed
	}
	sk := PrivateKey{
		Version: privateVersion,
		N:       key.N.Text(16),
		E:       key.E,
		D:       key.D.Text(16),
	}
	for _, p := range key.Primes {
		sk.Primes = append(sk.Primes, p.Text(16))
	}
	return writeJSON(path, sk, 0o600)
}

// LoadPrivate reads a key written by SavePrivate and returns a Signer.
func LoadPrivate(path string) (*rsablind.Signer, error) {
	var sk PrivateKey
	if err := readJSON(path, &sk); err != nil {
		return nil, err
	}
	if sk.Version != privateVersion {
		return nil, fmt.Errorf("keys: unsupported private key version %q", sk.Version)
	}
	n, err := parseHex("N", sk.N)
	if err != nil {
		return nil, err
	}
	d, err := parseHex("D", sk.D)
	if err != nil {
		return nil, err
	}
	key := &rsa.PrivateKey{PublicKey: rsa.PublicKey{N: n, E: sk.E}, D: d}
	for i, p := range sk.Primes {
		v, err := parseHex(fmt.Sprintf("prime %d", i), p)
		if err != nil {
			return nil, err
		}
		key.Primes = append(key.Primes, v)
	}
	return rsablind.NewSigner(key)
}

// SavePublic writes pk to path.
func SavePublic(path string, pk rsablind.PublicKey) error {
	if err := pk.Validate(); err != nil {
		return err
	}
	return writeJSON(path, PublicKey{Version: publicVersion, N: pk.N.Text(16), E: pk.E.Text(16)}, 0o644)
}

// LoadPublic reads a key written by SavePublic.
func LoadPublic(path string) (rsablind.PublicKey, error) {
	var pk PublicKey
	if err := readJSON(path, &pk); err != nil {
		return rsablind.PublicKey{}, err
	}
	if pk.Version != publicVersion {
		return rsablind.PublicKey{}, fmt.Errorf("keys: unsupported public key version %q", pk.Version)
	}
	n, err := parseHex("N", pk.N)
	if err != nil {
		return rsablind.PublicKey{}, err
	}
	e, err := parseHex("E", pk.E)
	if err != nil {
		return rsablind.PublicKey{}, err
	}
	out := rsablind.PublicKey{N: n, E: e}
	if err := out.Validate(); err != nil {
		return rsablind.PublicKey{}, err
	}
	return out, nil
}

// writeJSON replaces path with v. The mode is reset to perm even when the
// file already existed.
func writeJSON(path string, v any, perm os.FileMode) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("keys: close %s: %w", path, cerr)
		}
	}()
	if err := f.Chmod(perm); err != nil {
		return fmt.Errorf("keys: chmod %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("keys: decode %s: %w", path, err)
	}
	return nil
}

func parseHex(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("keys: %s is not a hex integer", field)
	}
	return v, nil
}
