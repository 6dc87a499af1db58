package redemption

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"blindcash/coin"
	"blindcash/commitment"

	"github.com/google/uuid"
)

// ErrRecordMismatch reports two records that cannot be compared.
var ErrRecordMismatch = errors.New("redemption: records do not match")

// Party is the side found responsible for a double redemption.
type Party int

const (
	// Owner spent the same coin twice.
	Owner Party = iota + 1
	// Redeemer submitted the same redemption twice.
	Redeemer
)

func (p Party) String() string {
	switch p {
	case Owner:
		return "owner"
	case Redeemer:
		return "redeemer"
	default:
		return fmt.Sprintf("party(%d)", int(p))
	}
}

// Verdict names the cheater. For Owner, Slot is the first slot whose
// fragments reconstructed the identity and Identity is what they revealed.
// For Redeemer, Slot is -1 and Identity is nil.
type Verdict struct {
	Cheater  Party
	GUID     uuid.UUID
	Slot     int
	Identity []byte
}

func (v Verdict) String() string {
	if v.Cheater == Owner {
		return fmt.Sprintf("owner of coin %s double-spent (identity %q, slot %d)", coin.GUIDString(v.GUID), v.Identity, v.Slot)
	}
	return fmt.Sprintf("redeemer submitted coin %s twice", coin.GUIDString(v.GUID))
}

// IdentifyCheater compares two redemption records of the same coin. If any
// slot's fragments XOR to a value carrying the codec's identity marker the
// owner spent the coin twice; otherwise both records reveal the same side and
// the redeemer replayed one redemption.
func IdentifyCheater(codec commitment.Codec, guid uuid.UUID, first, second Record) (Verdict, error) {
	if err := checkPair(guid, first, second); err != nil {
		return Verdict{}, err
	}
	redeemer := Verdict{Cheater: Redeemer, GUID: guid, Slot: -1}
	if sameFragments(first, second) {
		log.Printf("[redemption] coin %s: identical records, redeemer replay", coin.GUIDString(guid))
		return redeemer, nil
	}
	for i := range first.Fragments {
		x, err := commitment.Join(first.Fragments[i], second.Fragments[i])
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: slot %d: %v", ErrRecordMismatch, i, err)
		}
		if id, ok := codec.Reveal(x); ok {
			log.Printf("[redemption] coin %s: identity exposed at slot %d, owner double-spent", coin.GUIDString(guid), i)
			return Verdict{Cheater: Owner, GUID: guid, Slot: i, Identity: id}, nil
		}
	}
	log.Printf("[redemption] coin %s: no identity exposed, redeemer replay", coin.GUIDString(guid))
	return redeemer, nil
}

func checkPair(guid uuid.UUID, first, second Record) error {
	if first.GUID != guid || second.GUID != guid {
		return fmt.Errorf("%w: guid %s vs %s/%s", ErrRecordMismatch,
			coin.GUIDString(guid), coin.GUIDString(first.GUID), coin.GUIDString(second.GUID))
	}
	if len(first.Fragments) == 0 {
		return fmt.Errorf("%w: empty record", ErrRecordMismatch)
	}
	if len(first.Fragments) != len(second.Fragments) {
		return fmt.Errorf("%w: %d vs %d slots", ErrRecordMismatch, len(first.Fragments), len(second.Fragments))
	}
	return nil
}

func sameFragments(a, b Record) bool {
	for i := range a.Fragments {
		if !bytes.Equal(a.Fragments[i], b.Fragments[i]) {
			return false
		}
	}
	return true
}
