// Package coin mints anonymous coins. A coin carries an amount, a random
// GUID and k commitment pairs hiding its owner's identity; the bank signs it
// blind and the owner unblinds the signature before spending.
package coin

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"blindcash/commitment"
	"blindcash/randutil"
	"blindcash/rsablind"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/utils"
)

// DefaultTag prefixes every serialized coin.
const DefaultTag = "BANK"

var (
	// ErrInvalidKey is returned by New for a bank key with an absent or
	// non-positive component.
	ErrInvalidKey = rsablind.ErrInvalidKey
	// ErrAlreadySigned is returned when a second signature is attached.
	ErrAlreadySigned = errors.New("coin: already signed")
	// ErrMissingBlindedRepresentation is returned when a signature is attached
	// to a coin that never computed its blinded form.
	ErrMissingBlindedRepresentation = errors.New("coin: missing blinded representation")
	// ErrNotSigned is returned when unblinding a coin that has no signature.
	ErrNotSigned = errors.New("coin: not signed")
	// ErrAlreadyUnblinded is returned when unblinding twice.
	ErrAlreadyUnblinded = errors.New("coin: already unblinded")
)

// Coin is a value token bound to an owner identity through k commitment
// pairs. The owner identity never appears in the serialized coin.
//
// Lifecycle: New (blinded form computed) → AttachSignature → Unblind →
// redeemed any number of times. Each step refuses to run out of order.
type Coin struct {
	tag    string
	owner  []byte
	amount uint64
	guid   uuid.UUID
	bank   rsablind.PublicKey
	pairs  []commitment.Pair

	blinded   *big.Int
	factor    *big.Int
	signature *big.Int
	signed    bool
	unblinded bool
}

type options struct {
	codec commitment.Codec
	prng  utils.PRNG
	tag   string
}

// Option customises New.
type Option func(*options)

// WithCodec overrides commitment.DefaultCodec.
func WithCodec(c commitment.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithPRNG supplies the randomness for the GUID, fragments and blinding
// factor. Without it a freshly keyed PRNG is used.
func WithPRNG(prng utils.PRNG) Option {
	return func(o *options) { o.prng = prng }
}

// WithTag overrides DefaultTag.
func WithTag(tag string) Option {
	return func(o *options) { o.tag = tag }
}

// New mints an unsigned coin for owner and computes its blinded form
// against the bank's public key.
func New(bank rsablind.PublicKey, owner []byte, amount uint64, slots int, opts ...Option) (*Coin, error) {
	o := options{codec: commitment.DefaultCodec, tag: DefaultTag}
	for _, opt := range opts {
		opt(&o)
	}
	if err := bank.Validate(); err != nil {
		return nil, fmt.Errorf("coin: %w", err)
	}
	if err := checkTag(o.tag); err != nil {
		return nil, err
	}
	if slots < 1 {
		return nil, fmt.Errorf("coin: need at least one slot, got %d", slots)
	}
	if o.prng == nil {
		prng, err := randutil.New()
		if err != nil {
			return nil, err
		}
		o.prng = prng
	}

	guid, err := uuid.NewRandomFromReader(o.prng)
	if err != nil {
		return nil, fmt.Errorf("coin: guid: %w", err)
	}
	pairs, err := o.codec.Commit(owner, slots, o.prng)
	if err != nil {
		return nil, fmt.Errorf("coin: %w", err)
	}
	c := &Coin{
		tag:    o.tag,
		owner:  append([]byte(nil), owner...),
		amount: amount,
		guid:   guid,
		bank:   bank,
		pairs:  pairs,
	}
	blinded, factor, err := rsablind.Blind(bank, []byte(c.String()), o.prng)
	if err != nil {
		return nil, fmt.Errorf("coin: blind: %w", err)
	}
	c.blinded = blinded
	c.factor = factor
	log.Printf("[coin] minted %s amount=%d slots=%d", GUIDString(guid), amount, slots)
	return c, nil
}

func checkTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("coin: empty tag")
	}
	if strings.ContainsAny(tag, fieldSep+listSep) {
		return fmt.Errorf("coin: tag %q contains a separator", tag)
	}
	return nil
}

// AttachSignature stores the bank's signature over the blinded form.
func (c *Coin) AttachSignature(sig *big.Int) error {
	if c.blinded == nil {
		return ErrMissingBlindedRepresentation
	}
	if c.signed {
		return fmt.Errorf("%w: %s", ErrAlreadySigned, GUIDString(c.guid))
	}
	if sig == nil {
		return fmt.Errorf("coin: nil signature")
	}
	c.signature = new(big.Int).Set(sig)
	c.signed = true
	return nil
}

// Unblind removes the blinding factor so the signature covers the plain
// serialization.
func (c *Coin) Unblind() error {
	if !c.signed {
		return ErrNotSigned
	}
	if c.unblinded {
		return fmt.Errorf("%w: %s", ErrAlreadyUnblinded, GUIDString(c.guid))
	}
	s, err := rsablind.Unblind(c.bank, c.signature, c.factor)
	if err != nil {
		return fmt.Errorf("coin: unblind: %w", err)
	}
	c.signature = s
	c.unblinded = true
	return nil
}

// VerifySignature reports whether the unblinded signature is valid for the
// serialized coin under the bank's key. It is false before Unblind.
func (c *Coin) VerifySignature() bool {
	if !c.unblinded || c.signature == nil {
		return false
	}
	return rsablind.Verify(c.bank, []byte(c.String()), c.signature)
}

// Wire returns the public, serializable part of the coin.
func (c *Coin) Wire() Wire {
	w := Wire{
		Tag:    c.tag,
		Amount: c.amount,
		GUID:   c.guid,
		Left:   make([][]byte, len(c.pairs)),
		Right:  make([][]byte, len(c.pairs)),
	}
	for i, p := range c.pairs {
		w.Left[i] = p.Left
		w.Right[i] = p.Right
	}
	return w
}

// String is the canonical serialization the bank signs.
func (c *Coin) String() string {
	return c.Wire().String()
}

func (c *Coin) GUID() uuid.UUID { return c.guid }
func (c *Coin) Amount() uint64 { return c.amount }
func (c *Coin) Tag() string { return c.tag }
func (c *Coin) Slots() int { return len(c.pairs) }
func (c *Coin) Bank() rsablind.PublicKey { return c.bank }
func (c *Coin) Signed() bool { return c.signed }
func (c *Coin) Unblinded() bool { return c.unblinded }
func (c *Coin) Owner() []byte { return append([]byte(nil), c.owner...) }
func (c *Coin) Blinded() *big.Int { return copyInt(c.blinded) }
func (c *Coin) Signature() *big.Int { return copyInt(c.signature) }

// Pair returns commitment pair i. It panics unless 0 <= i < Slots().
func (c *Coin) Pair(i int) commitment.Pair { return c.pairs[i] }

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
