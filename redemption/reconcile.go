package redemption

import (
	"fmt"
	"log"
	"sync"

	"blindcash/coin"
	"blindcash/commitment"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// Reconciler is the bank side of deposits. It remembers the first record of
// each coin and runs IdentifyCheater when another record for the same GUID
// arrives. Submissions for one GUID are serialized; different GUIDs proceed
// in parallel. Only the most recent capacity GUIDs are remembered, and
// nothing is persisted.
type Reconciler struct {
	codec commitment.Codec
	first *lru.Cache

	mu    sync.Mutex
	locks map[uuid.UUID]*guidLock
}

type guidLock struct {
	mu   sync.Mutex
	refs int
}

// NewReconciler returns a Reconciler holding up to capacity first records.
func NewReconciler(codec commitment.Codec, capacity int) (*Reconciler, error) {
	if err := codec.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("reconciler cache: %w", err)
	}
	return &Reconciler{codec: codec, first: cache, locks: make(map[uuid.UUID]*guidLock)}, nil
}

// Submit records a deposit. The first record of a coin returns a nil
// verdict; any later one is compared against that first record.
func (r *Reconciler) Submit(rec Record) (*Verdict, error) {
	if len(rec.Fragments) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrRecordMismatch)
	}
	l := r.acquire(rec.GUID)
	defer r.release(rec.GUID, l)

	prev, ok := r.first.Get(rec.GUID)
	if !ok {
		r.first.Add(rec.GUID, cloneRecord(rec))
		log.Printf("[reconcile] first deposit of coin %s", coin.GUIDString(rec.GUID))
		return nil, nil
	}
	v, err := IdentifyCheater(r.codec, rec.GUID, prev.(Record), rec)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func cloneRecord(rec Record) Record {
	frags := make([][]byte, len(rec.Fragments))
	for i, f := range rec.Fragments {
		frags[i] = append([]byte(nil), f...)
	}
	return Record{GUID: rec.GUID, Side: rec.Side, Fragments: frags}
}

// Len reports how many coins have a remembered first record.
func (r *Reconciler) Len() int {
	return r.first.Len()
}

func (r *Reconciler) acquire(id uuid.UUID) *guidLock {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &guidLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()
	l.mu.Lock()
	return l
}

func (r *Reconciler) release(id uuid.UUID, l *guidLock) {
	l.mu.Unlock()
	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, id)
	}
	r.mu.Unlock()
}
