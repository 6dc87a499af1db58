package coin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"blindcash/randutil"
	"blindcash/rsablind"

	"github.com/stretchr/testify/require"
)

var (
	bankOnce sync.Once
	bank     *rsablind.Signer
	bankErr  error
)

func bankForTest(t *testing.T) *rsablind.Signer {
	t.Helper()
	bankOnce.Do(func() {
		bank, bankErr = rsablind.GenerateKey(rand.Reader, rsablind.MinKeyBits)
	})
	require.NoError(t, bankErr)
	return bank
}

func mint(t *testing.T, seed string) *Coin {
	t.Helper()
	prng, err := randutil.Seeded([]byte(seed))
	require.NoError(t, err)
	c, err := New(bankForTest(t).Public(), []byte("alice"), 20, 4, WithPRNG(prng))
	require.NoError(t, err)
	return c
}

func TestLifecycle(t *testing.T) {
	b := bankForTest(t)
	c := mint(t, "lifecycle")

	require.False(t, c.Signed())
	require.False(t, c.VerifySignature())
	require.ErrorIs(t, c.Unblind(), ErrNotSigned)

	blindSig, err := b.Sign(c.Blinded())
	require.NoError(t, err)
	require.NoError(t, c.AttachSignature(blindSig))
	require.ErrorIs(t, c.AttachSignature(blindSig), ErrAlreadySigned)
	require.False(t, c.VerifySignature(), "blind signature must not verify over the plain coin")

	require.NoError(t, c.Unblind())
	require.True(t, c.VerifySignature())
	require.True(t, c.VerifySignature(), "verification has no side effects")
	require.ErrorIs(t, c.Unblind(), ErrAlreadyUnblinded)
	require.True(t, c.VerifySignature())
}

func TestPairBounds(t *testing.T) {
	c := mint(t, "pair-bounds")
	require.Equal(t, 4, c.Slots())
	w := c.Wire()
	for i := 0; i < c.Slots(); i++ {
		require.Equal(t, w.Left[i], c.Pair(i).Left)
		require.Equal(t, w.Right[i], c.Pair(i).Right)
	}
	require.Panics(t, func() { c.Pair(c.Slots()) })
	require.Panics(t, func() { c.Pair(-1) })
}

func TestAttachWithoutBlindedForm(t *testing.T) {
	var c Coin
	require.ErrorIs(t, c.AttachSignature(big.NewInt(1)), ErrMissingBlindedRepresentation)
}

func TestNewRejectsBadKey(t *testing.T) {
	for _, pk := range []rsablind.PublicKey{
		{},
		{N: big.NewInt(0), E: big.NewInt(65537)},
		{N: big.NewInt(3233), E: big.NewInt(0)},
	} {
		_, err := New(pk, []byte("alice"), 20, 2)
		require.True(t, errors.Is(err, ErrInvalidKey), "err = %v", err)
	}
}

func TestNewRejectsBadIdentity(t *testing.T) {
	_, err := New(bankForTest(t).Public(), nil, 20, 2)
	require.Error(t, err)
	_, err = New(bankForTest(t).Public(), []byte("alice"), 20, 0)
	require.Error(t, err)
}

func TestSerializationHidesOwner(t *testing.T) {
	c := mint(t, "hides")
	s := c.String()
	require.True(t, strings.HasPrefix(s, "BANK-20-"+GUIDString(c.GUID())+"-"))
	require.NotContains(t, s, "alice")
	require.NotContains(t, s, hex.EncodeToString([]byte("IDENT:alice")))

	w, err := ParseWire(DefaultTag, s)
	require.NoError(t, err)
	require.Equal(t, 4, w.Slots())
	require.Equal(t, uint64(20), w.Amount)
	require.Equal(t, c.GUID(), w.GUID)
	for i := 0; i < c.Slots(); i++ {
		require.Equal(t, c.Pair(i).Left, w.Left[i])
		require.Equal(t, c.Pair(i).Right, w.Right[i])
	}
}

func TestDeterministicWithSeededPRNG(t *testing.T) {
	a := mint(t, "same-seed")
	b := mint(t, "same-seed")
	require.Equal(t, a.String(), b.String())
	require.Equal(t, 0, a.Blinded().Cmp(b.Blinded()))
	require.NotEqual(t, a.String(), mint(t, "other-seed").String())
}

func TestDistinctGUIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		c, err := New(bankForTest(t).Public(), []byte("alice"), 1, 1)
		require.NoError(t, err)
		g := GUIDString(c.GUID())
		require.False(t, seen[g], "duplicate guid %s", g)
		seen[g] = true
	}
}

func TestParseWireMalformed(t *testing.T) {
	guid := strings.Repeat("ab", 16)
	cases := map[string]string{
		"wrong tag":       "NOTBANK-20-g1-aa-bb",
		"too few fields":  "BANK-20-" + guid + "-aa",
		"too many fields": "BANK-20-" + guid + "-aa-bb-cc",
		"bad amount":      "BANK-x-" + guid + "-aa-bb",
		"short guid":      "BANK-20-g1-aa-bb",
		"non-hex":         "BANK-20-" + guid + "-zz-bb",
		"count mismatch":  "BANK-20-" + guid + "-aa,aa-bb",
		"width mismatch":  "BANK-20-" + guid + "-aa,aaaa-bb,bb",
		"empty list":      "BANK-20-" + guid + "--bb",
		"non-canonical":   "BANK-20-" + guid + "-AA-bb",
		"leading zero":    "BANK-020-" + guid + "-aa-bb",
	}
	for name, s := range cases {
		_, err := ParseWire(DefaultTag, s)
		var me *MalformedCoinError
		require.True(t, errors.As(err, &me), "%s: err = %v", name, err)
	}
	_, err := ParseWire(DefaultTag, "BANK-20-"+guid+"-aa-bb")
	require.NoError(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	b := bankForTest(t)
	c := mint(t, "envelope")
	sig, err := b.Sign(c.Blinded())
	require.NoError(t, err)
	require.NoError(t, c.AttachSignature(sig))
	require.NoError(t, c.Unblind())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	var back Coin
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, c.String(), back.String())
	require.True(t, back.VerifySignature())
	require.ErrorIs(t, back.AttachSignature(sig), ErrAlreadySigned)
	require.ErrorIs(t, back.Unblind(), ErrAlreadyUnblinded)
	require.Equal(t, []byte("alice"), back.Owner())

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.Amount = 2000
	forged, err := json.Marshal(env)
	require.NoError(t, err)
	var tampered Coin
	require.NoError(t, json.Unmarshal(forged, &tampered))
	require.False(t, tampered.VerifySignature())
}

func TestSaveLoad(t *testing.T) {
	c := mint(t, "save")
	path := t.TempDir() + "/coin.json"
	require.NoError(t, Save(path, c))
	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, c.String(), back.String())
	require.Equal(t, 0, c.Blinded().Cmp(back.Blinded()))
	require.False(t, back.Signed())
}
