package issuance

import (
	"fmt"
	"log"
	"math/big"

	"blindcash/rsablind"

	"github.com/tuneinsight/lattigo/v4/utils"
)

// Batch is the requester's side: n messages, their blinded forms and the
// blinding factors, index-aligned.
type Batch struct {
	pub      rsablind.PublicKey
	messages [][]byte
	blinded  []*big.Int
	factors  []*big.Int

	state     State
	selected  int
	signature *big.Int
}

// NewBatch blinds every message under an independent factor.
func NewBatch(pub rsablind.PublicKey, messages [][]byte, prng utils.PRNG) (*Batch, error) {
	if err := pub.Validate(); err != nil {
		return nil, fmt.Errorf("issuance: %w", err)
	}
	if len(messages) < MinBatch {
		return nil, fmt.Errorf("issuance: batch of %d, need at least %d", len(messages), MinBatch)
	}
	b := &Batch{
		pub:      pub,
		messages: make([][]byte, len(messages)),
		blinded:  make([]*big.Int, len(messages)),
		factors:  make([]*big.Int, len(messages)),
		selected: -1,
	}
	for i, m := range messages {
		blinded, r, err := rsablind.Blind(pub, m, prng)
		if err != nil {
			return nil, fmt.Errorf("issuance: blind message %d: %w", i, err)
		}
		b.messages[i] = append([]byte(nil), m...)
		b.blinded[i] = blinded
		b.factors[i] = r
	}
	log.Printf("[issuance] prepared batch of %d blinded messages", len(messages))
	return b, nil
}

// Len returns the batch size.
func (b *Batch) Len() int { return len(b.messages) }

// State returns the requester's current step.
func (b *Batch) State() State { return b.state }

// Message returns plaintext i. It panics unless 0 <= i < Len().
func (b *Batch) Message(i int) []byte { return b.messages[i] }

// Selected returns the index chosen by the signer, or -1 before Open.
func (b *Batch) Selected() int { return b.selected }

// Submission hands over the blinded messages.
func (b *Batch) Submission() ([]*big.Int, error) {
	if b.state != Prepared {
		return nil, stateError("submit", b.state)
	}
	out := make([]*big.Int, len(b.blinded))
	for i, v := range b.blinded {
		out[i] = new(big.Int).Set(v)
	}
	b.state = Submitted
	return out, nil
}

// Open answers the signer's selection with the openings of every other index.
func (b *Batch) Open(selected int) (Proof, error) {
	if b.state != Submitted {
		return Proof{}, stateError("open", b.state)
	}
	if selected < 0 || selected >= len(b.messages) {
		return Proof{}, &SelectionOutOfRangeError{Index: selected, N: len(b.messages)}
	}
	p := Proof{Openings: make([]Opening, 0, len(b.messages)-1)}
	for i := range b.messages {
		if i == selected {
			continue
		}
		p.Openings = append(p.Openings, Opening{
			Index:   i,
			Message: append([]byte(nil), b.messages[i]...),
			Factor:  new(big.Int).Set(b.factors[i]),
		})
	}
	b.selected = selected
	b.state = AwaitingProof
	return p, nil
}

// Finish unblinds the signer's answer with the selected factor and checks
// the result against the selected plaintext.
func (b *Batch) Finish(blindSig *big.Int) (*big.Int, error) {
	if b.state != AwaitingProof {
		return nil, stateError("finish", b.state)
	}
	sig, err := rsablind.Unblind(b.pub, blindSig, b.factors[b.selected])
	if err != nil {
		return nil, fmt.Errorf("issuance: unblind: %w", err)
	}
	if !rsablind.Verify(b.pub, b.messages[b.selected], sig) {
		return nil, fmt.Errorf("%w: index %d", ErrBadSignature, b.selected)
	}
	b.signature = sig
	b.state = Done
	log.Printf("[issuance] obtained signature for index %d", b.selected)
	return new(big.Int).Set(sig), nil
}

// Signature returns the unblinded signature once Finish has succeeded.
func (b *Batch) Signature() *big.Int {
	if b.signature == nil {
		return nil
	}
	return new(big.Int).Set(b.signature)
}
