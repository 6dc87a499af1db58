// Package redemption extracts one side of a coin's commitment pairs when the
// coin is spent and compares two such records to name a double spender.
//
// A redemption reveals the left fragments of every slot or the right
// fragments of every slot, chosen by a single coin flip per record. The
// textbook scheme flips once per slot instead, which exposes the owner of a
// twice-spent coin with probability 1-2^-k; here the probability is 1/2
// whatever k is. cmd/analysis measures both rates.
package redemption

import (
	"fmt"
	"log"

	"blindcash/coin"
	"blindcash/randutil"
	"blindcash/rsablind"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/utils"
)

// Side names which half of every pair a record reveals.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Record is what a merchant keeps from one redemption: one fragment per slot.
type Record struct {
	GUID      uuid.UUID
	Side      Side
	Fragments [][]byte
}

// InvalidCoinError reports a coin that cannot be accepted: unsigned,
// tampered, forged or issued under another key.
type InvalidCoinError struct {
	GUID   string
	Reason string
}

func (e *InvalidCoinError) Error() string {
	if e.GUID == "" {
		return fmt.Sprintf("redemption: invalid coin: %s", e.Reason)
	}
	return fmt.Sprintf("redemption: invalid coin %s: %s", e.GUID, e.Reason)
}

// Redeem checks the coin against the bank key and reveals one side of its
// commitment pairs. It keeps no state; spending the same coin twice is
// caught afterwards by IdentifyCheater.
func Redeem(bank rsablind.PublicKey, c *coin.Coin, prng utils.PRNG) (Record, error) {
	if c == nil {
		return Record{}, &InvalidCoinError{Reason: "nil coin"}
	}
	guid := coin.GUIDString(c.GUID())
	if !c.Bank().Equal(bank) {
		return Record{}, &InvalidCoinError{GUID: guid, Reason: "issued under a different key"}
	}
	if !c.Signed() {
		return Record{}, &InvalidCoinError{GUID: guid, Reason: "unsigned"}
	}
	if !c.VerifySignature() {
		return Record{}, &InvalidCoinError{GUID: guid, Reason: "signature does not verify"}
	}
	w, err := coin.ParseWire(c.Tag(), c.String())
	if err != nil {
		return Record{}, &InvalidCoinError{GUID: guid, Reason: err.Error()}
	}
	bit, err := randutil.Bit(prng)
	if err != nil {
		return Record{}, fmt.Errorf("redemption: draw side: %w", err)
	}
	side := Side(bit)
	src := w.Left
	if side == Right {
		src = w.Right
	}
	frags := make([][]byte, len(src))
	for i, f := range src {
		frags[i] = append([]byte(nil), f...)
	}
	log.Printf("[redemption] coin %s accepted, revealing %s fragments", guid, side)
	return Record{GUID: w.GUID, Side: side, Fragments: frags}, nil
}
