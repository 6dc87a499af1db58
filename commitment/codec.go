// Package commitment hides an identity in XOR-split fragment pairs. Either
// fragment of a pair is uniform on its own; joining both restores the tagged
// encoding of the identity.
package commitment

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	"blindcash/randutil"

	"github.com/tuneinsight/lattigo/v4/utils"
)

// DefaultTag marks a reconstructed identity. It is the same for every slot.
var DefaultTag = []byte("IDENT:")

// DefaultWidth is the fragment width in bytes.
const DefaultWidth = 64

// DefaultCodec is the codec coins use unless told otherwise.
var DefaultCodec = Codec{Tag: DefaultTag, Width: DefaultWidth}

// Pair holds the two halves of one slot. Left XOR Right is the encoded
// identity; either half alone is a uniformly random string.
type Pair struct {
	Left  []byte
	Right []byte
}

// InvalidEncodingError reports an identity that cannot be placed in a slot.
type InvalidEncodingError struct {
	Slot   int
	Reason string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("commitment: cannot encode identity in slot %d: %s", e.Slot, e.Reason)
}

// Codec lays an identity out as Tag || identity || zero padding over Width
// bytes. Zero bytes are reserved for padding, so identities may not contain
// them.
type Codec struct {
	Tag   []byte
	Width int
}

// Validate checks that the codec can hold at least the tag and that the tag
// is not all zeros (an all-zero tag would match the XOR of identical
// fragments).
func (c Codec) Validate() error {
	if len(c.Tag) == 0 {
		return fmt.Errorf("commitment: empty tag")
	}
	if c.Width < len(c.Tag) {
		return fmt.Errorf("commitment: width %d shorter than tag %d", c.Width, len(c.Tag))
	}
	if bytes.Count(c.Tag, []byte{0}) == len(c.Tag) {
		return fmt.Errorf("commitment: tag must contain a non-zero byte")
	}
	return nil
}

// Encode returns the slot encoding of identity. Every slot uses the same
// layout so a single marker detects a reveal wherever it happens.
func (c Codec) Encode(identity []byte, slot int) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if slot < 0 {
		return nil, &InvalidEncodingError{Slot: slot, Reason: "negative slot"}
	}
	if len(identity) == 0 {
		return nil, &InvalidEncodingError{Slot: slot, Reason: "empty identity"}
	}
	if bytes.IndexByte(identity, 0) >= 0 {
		return nil, &InvalidEncodingError{Slot: slot, Reason: "identity contains a zero byte"}
	}
	if len(c.Tag)+len(identity) > c.Width {
		return nil, &InvalidEncodingError{
			Slot:   slot,
			Reason: fmt.Sprintf("identity of %d bytes exceeds %d free bytes", len(identity), c.Width-len(c.Tag)),
		}
	}
	out := make([]byte, c.Width)
	n := copy(out, c.Tag)
	copy(out[n:], identity)
	return out, nil
}

// Split draws Left uniformly and sets Right = bitstring XOR Left.
func Split(bitstring []byte, prng utils.PRNG) (Pair, error) {
	left, err := randutil.Bytes(prng, len(bitstring))
	if err != nil {
		return Pair{}, fmt.Errorf("sample left fragment: %w", err)
	}
	right, err := Join(bitstring, left)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Left: left, Right: right}, nil
}

// Join XORs two equal-width fragments.
func Join(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("commitment: fragment width mismatch %d != %d", len(a), len(b))
	}
	out := make([]byte, len(a))
	subtle.XORBytes(out, a, b)
	return out, nil
}

// Reveal reports whether x carries the identity marker and, if so, returns
// the identity with padding removed.
func (c Codec) Reveal(x []byte) ([]byte, bool) {
	if len(c.Tag) == 0 || len(x) < len(c.Tag) || !bytes.Equal(x[:len(c.Tag)], c.Tag) {
		return nil, false
	}
	return bytes.TrimRight(x[len(c.Tag):], "\x00"), true
}

// Commit builds k pairs for identity.
func (c Codec) Commit(identity []byte, k int, prng utils.PRNG) ([]Pair, error) {
	if k < 1 {
		return nil, fmt.Errorf("commitment: need at least one slot, got %d", k)
	}
	pairs := make([]Pair, k)
	for i := 0; i < k; i++ {
		enc, err := c.Encode(identity, i)
		if err != nil {
			return nil, err
		}
		p, err := Split(enc, prng)
		if err != nil {
			return nil, fmt.Errorf("split slot %d: %w", i, err)
		}
		pairs[i] = p
	}
	return pairs, nil
}
