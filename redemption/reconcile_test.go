package redemption

import (
	"sync"
	"testing"

	"blindcash/commitment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestReconcilerDetectsOwner(t *testing.T) {
	rc, err := NewReconciler(commitment.DefaultCodec, 16)
	require.NoError(t, err)

	c := signedCoin(t, 3, "reconcile-owner")
	v, err := rc.Submit(redeemSide(t, c, 0))
	require.NoError(t, err)
	require.Nil(t, v)
	require.Equal(t, 1, rc.Len())

	v, err = rc.Submit(redeemSide(t, c, 1))
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, Owner, v.Cheater)
	require.Equal(t, "alice", string(v.Identity))
}

func TestReconcilerDetectsReplay(t *testing.T) {
	rc, err := NewReconciler(commitment.DefaultCodec, 16)
	require.NoError(t, err)

	c := signedCoin(t, 3, "reconcile-replay")
	rec := redeemSide(t, c, 1)
	_, err = rc.Submit(rec)
	require.NoError(t, err)
	v, err := rc.Submit(rec)
	require.NoError(t, err)
	require.Equal(t, Redeemer, v.Cheater)
}

func TestReconcilerKeepsOwnCopy(t *testing.T) {
	codec := commitment.Codec{Tag: []byte{0xff}, Width: 1}
	rc, err := NewReconciler(codec, 4)
	require.NoError(t, err)

	g := uuid.New()
	buf := [][]byte{{0xa3}}
	v, err := rc.Submit(Record{GUID: g, Side: Left, Fragments: buf})
	require.NoError(t, err)
	require.Nil(t, v)

	// The depositor reuses its buffer; the stored first record must not move.
	buf[0][0] = 0x00
	v, err = rc.Submit(Record{GUID: g, Side: Right, Fragments: [][]byte{{0x5c}}})
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, Owner, v.Cheater)
	require.Equal(t, 0, v.Slot)
}

func TestReconcilerEvictedCoinIsUnseen(t *testing.T) {
	codec := commitment.Codec{Tag: []byte{0xff}, Width: 1}
	rc, err := NewReconciler(codec, 1)
	require.NoError(t, err)

	first, second := uuid.New(), uuid.New()
	v, err := rc.Submit(Record{GUID: first, Fragments: [][]byte{{0xa3}}})
	require.NoError(t, err)
	require.Nil(t, v)
	v, err = rc.Submit(Record{GUID: second, Fragments: [][]byte{{0x11}}})
	require.NoError(t, err)
	require.Nil(t, v)
	require.Equal(t, 1, rc.Len())

	// first was evicted by second, so its next deposit starts over.
	v, err = rc.Submit(Record{GUID: first, Fragments: [][]byte{{0x5c}}})
	require.NoError(t, err)
	require.Nil(t, v)
	v, err = rc.Submit(Record{GUID: first, Fragments: [][]byte{{0x5c}}})
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, Redeemer, v.Cheater)
}

func TestReconcilerRejectsEmpty(t *testing.T) {
	rc, err := NewReconciler(commitment.DefaultCodec, 4)
	require.NoError(t, err)
	_, err = rc.Submit(Record{GUID: uuid.New()})
	require.ErrorIs(t, err, ErrRecordMismatch)
}

func TestReconcilerBadConfig(t *testing.T) {
	_, err := NewReconciler(commitment.DefaultCodec, 0)
	require.Error(t, err)
	_, err = NewReconciler(commitment.Codec{}, 4)
	require.Error(t, err)
}

func TestReconcilerConcurrentSubmissions(t *testing.T) {
	codec := commitment.Codec{Tag: []byte{0xff}, Width: 1}
	rc, err := NewReconciler(codec, 1024)
	require.NoError(t, err)

	const coins = 32
	guids := make([]uuid.UUID, coins)
	for i := range guids {
		guids[i] = uuid.New()
	}
	// Every coin gets one left and one right record from separate goroutines;
	// exactly one of the two submissions per coin must see a verdict.
	verdicts := make([]int, coins)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, g := range guids {
		for _, frag := range []byte{0xa3, 0x5c} {
			wg.Add(1)
			go func(i int, g uuid.UUID, frag byte) {
				defer wg.Done()
				v, err := rc.Submit(Record{GUID: g, Fragments: [][]byte{{frag}}})
				if err != nil {
					t.Errorf("submit: %v", err)
					return
				}
				if v == nil {
					return
				}
				if v.Cheater != Owner {
					t.Errorf("coin %d: verdict %v", i, v)
				}
				mu.Lock()
				verdicts[i]++
				mu.Unlock()
			}(i, g, frag)
		}
	}
	wg.Wait()
	for i, n := range verdicts {
		require.Equal(t, 1, n, "coin %d", i)
	}
	require.Equal(t, coins, rc.Len())
}
