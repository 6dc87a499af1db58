package issuance

import (
	"bytes"
	"fmt"
	"log"
	"math/big"

	"blindcash/randutil"
	"blindcash/rsablind"

	"github.com/tuneinsight/lattigo/v4/utils"
)

// Policy vets a revealed plaintext. A non-nil error rejects the batch.
type Policy func(msg []byte) error

// MatchTemplate accepts messages of the form prefix + filler + suffix with a
// non-empty filler.
func MatchTemplate(prefix, suffix string) Policy {
	return func(msg []byte) error {
		if len(msg) <= len(prefix)+len(suffix) ||
			!bytes.HasPrefix(msg, []byte(prefix)) || !bytes.HasSuffix(msg, []byte(suffix)) {
			return fmt.Errorf("message does not follow the template")
		}
		return nil
	}
}

// Session is the signer's side of one batch.
type Session struct {
	signer   *rsablind.Signer
	pub      rsablind.PublicKey
	blinded  []*big.Int
	policy   Policy
	state    State
	selected int
}

// SessionOption customises NewSession.
type SessionOption func(*Session)

// WithPolicy makes the signer vet every revealed plaintext.
func WithPolicy(p Policy) SessionOption {
	return func(s *Session) { s.policy = p }
}

// NewSession records a submitted batch of blinded messages.
func NewSession(signer *rsablind.Signer, blinded []*big.Int, opts ...SessionOption) (*Session, error) {
	if signer == nil {
		return nil, fmt.Errorf("issuance: nil signer")
	}
	if len(blinded) < MinBatch {
		return nil, fmt.Errorf("issuance: batch of %d, need at least %d", len(blinded), MinBatch)
	}
	pub := signer.Public()
	s := &Session{signer: signer, pub: pub, state: Submitted, selected: -1}
	s.blinded = make([]*big.Int, len(blinded))
	for i, v := range blinded {
		if v == nil || v.Sign() < 0 || v.Cmp(pub.N) >= 0 {
			return nil, fmt.Errorf("issuance: blinded message %d: %w", i, rsablind.ErrOutOfRange)
		}
		s.blinded[i] = new(big.Int).Set(v)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the signer's current step.
func (s *Session) State() State { return s.state }

// Selected returns the chosen index, or -1 before Select.
func (s *Session) Selected() int { return s.selected }

// Select picks the index that will be signed, uniformly from [0, n).
func (s *Session) Select(prng utils.PRNG) (int, error) {
	if s.state != Submitted {
		return -1, stateError("select", s.state)
	}
	idx, err := randutil.Intn(prng, len(s.blinded))
	if err != nil {
		return -1, fmt.Errorf("issuance: select: %w", err)
	}
	s.selected = idx
	s.state = AwaitingProof
	log.Printf("[issuance] selected index %d of %d", idx, len(s.blinded))
	return idx, nil
}

// Verify audits the openings. Any failure moves the session to Rejected,
// after which it never signs.
func (s *Session) Verify(p Proof) error {
	if s.state != AwaitingProof {
		return stateError("verify", s.state)
	}
	if err := s.audit(p); err != nil {
		s.state = Rejected
		log.Printf("[issuance] batch rejected: %v", err)
		return err
	}
	s.state = Verified
	log.Printf("[issuance] %d openings verified", len(p.Openings))
	return nil
}

func (s *Session) audit(p Proof) error {
	n := len(s.blinded)
	if s.selected < 0 || s.selected >= n {
		return &ProofMismatchError{Index: s.selected, Reason: "selected index out of range"}
	}
	seen := make([]bool, n)
	for _, o := range p.Openings {
		if o.Index < 0 || o.Index >= n {
			return &ProofMismatchError{Index: o.Index, Reason: "index out of range"}
		}
		if o.Index == s.selected {
			return &ProofMismatchError{Index: o.Index, Reason: "selected index must stay closed"}
		}
		if seen[o.Index] {
			return &ProofMismatchError{Index: o.Index, Reason: "opened twice"}
		}
		seen[o.Index] = true
		reblinded, err := rsablind.BlindWithFactor(s.pub, o.Message, o.Factor)
		if err != nil {
			return &ProofMismatchError{Index: o.Index, Reason: err.Error()}
		}
		if reblinded.Cmp(s.blinded[o.Index]) != 0 {
			return &ProofMismatchError{Index: o.Index, Reason: "opening does not reproduce the submitted blinding"}
		}
		if s.policy != nil {
			if err := s.policy(o.Message); err != nil {
				return &ProofMismatchError{Index: o.Index, Reason: err.Error()}
			}
		}
	}
	for i, ok := range seen {
		if !ok && i != s.selected {
			return &ProofMismatchError{Index: i, Reason: "missing opening"}
		}
	}
	return nil
}

// Sign blind-signs the selected message. It runs at most once, and only
// after a successful Verify.
func (s *Session) Sign() (*big.Int, error) {
	if s.state != Verified {
		return nil, stateError("sign", s.state)
	}
	sig, err := s.signer.Sign(s.blinded[s.selected])
	if err != nil {
		return nil, fmt.Errorf("issuance: sign: %w", err)
	}
	s.state = Signed
	return sig, nil
}

// Run drives one complete exchange between a batch and a signer.
func Run(b *Batch, signer *rsablind.Signer, prng utils.PRNG, opts ...SessionOption) (int, *big.Int, error) {
	blinded, err := b.Submission()
	if err != nil {
		return -1, nil, err
	}
	sess, err := NewSession(signer, blinded, opts...)
	if err != nil {
		return -1, nil, err
	}
	selected, err := sess.Select(prng)
	if err != nil {
		return -1, nil, err
	}
	proof, err := b.Open(selected)
	if err != nil {
		return selected, nil, err
	}
	if err := sess.Verify(proof); err != nil {
		return selected, nil, err
	}
	blindSig, err := sess.Sign()
	if err != nil {
		return selected, nil, err
	}
	sig, err := b.Finish(blindSig)
	if err != nil {
		return selected, nil, err
	}
	return selected, sig, nil
}
