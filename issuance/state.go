// Package issuance runs a cut-and-choose blind signing protocol.
//
// The requester blinds n candidate messages and submits them. The signer
// picks one index at random, the requester opens every other index
// (message plus blinding factor), and the signer re-blinds each opening to
// check it against the submission. Only if all n-1 openings match does the
// signer blind-sign the remaining index, whose plaintext it never sees.
package issuance

import (
	"errors"
	"fmt"
	"math/big"
)

// State is a step of the protocol. Batch and Session each walk a subset.
type State int

const (
	Prepared State = iota
	Submitted
	AwaitingProof
	Verified
	Rejected
	Signed
	Done
)

func (s State) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Submitted:
		return "submitted"
	case AwaitingProof:
		return "awaiting-proof"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	case Signed:
		return "signed"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MinBatch is the smallest batch that leaves something to audit.
const MinBatch = 2

var (
	// ErrInvalidState is returned for a transition attempted out of order.
	ErrInvalidState = errors.New("issuance: invalid state")
	// ErrBadSignature is returned when the unblinded signature does not
	// verify for the selected message.
	ErrBadSignature = errors.New("issuance: signature does not verify")
)

func stateError(op string, got State) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, got)
}

// ProofMismatchError aborts a session whose openings do not reproduce the
// submission.
type ProofMismatchError struct {
	Index  int
	Reason string
}

func (e *ProofMismatchError) Error() string {
	return fmt.Sprintf("issuance: proof mismatch at index %d: %s", e.Index, e.Reason)
}

// SelectionOutOfRangeError reports a selected index outside [0, N).
type SelectionOutOfRangeError struct {
	Index int
	N     int
}

func (e *SelectionOutOfRangeError) Error() string {
	return fmt.Sprintf("issuance: selection %d outside [0, %d)", e.Index, e.N)
}

// Opening reveals one submitted entry.
type Opening struct {
	Index   int
	Message []byte
	Factor  *big.Int
}

// Proof carries the openings of every index except the selected one.
type Proof struct {
	Openings []Opening
}
