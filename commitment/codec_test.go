package commitment

import (
	"bytes"
	"errors"
	"testing"

	"blindcash/randutil"
)

func TestEncodeLayout(t *testing.T) {
	enc, err := DefaultCodec.Encode([]byte("alice"), 3)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != DefaultWidth {
		t.Fatalf("len = %d want %d", len(enc), DefaultWidth)
	}
	if !bytes.HasPrefix(enc, []byte("IDENT:alice")) {
		t.Fatalf("unexpected prefix %q", enc[:12])
	}
	for i := len("IDENT:alice"); i < len(enc); i++ {
		if enc[i] != 0 {
			t.Fatalf("byte %d not padding", i)
		}
	}
	other, _ := DefaultCodec.Encode([]byte("alice"), 0)
	if !bytes.Equal(enc, other) {
		t.Fatalf("slot encodings differ")
	}
}

func TestEncodeRejects(t *testing.T) {
	long := bytes.Repeat([]byte("a"), DefaultWidth)
	cases := map[string][]byte{
		"empty":    nil,
		"zero":     []byte("al\x00ice"),
		"too long": long,
	}
	for name, id := range cases {
		_, err := DefaultCodec.Encode(id, 2)
		var encErr *InvalidEncodingError
		if !errors.As(err, &encErr) {
			t.Fatalf("%s: err = %v, want InvalidEncodingError", name, err)
		}
		if encErr.Slot != 2 {
			t.Fatalf("%s: slot = %d want 2", name, encErr.Slot)
		}
	}
}

func TestCodecValidate(t *testing.T) {
	bad := []Codec{
		{},
		{Tag: []byte("IDENT:"), Width: 3},
		{Tag: []byte{0, 0}, Width: 8},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("codec %d: expected validation error", i)
		}
	}
}

func TestSplitBinding(t *testing.T) {
	prng, err := randutil.Seeded([]byte("binding"))
	if err != nil {
		t.Fatalf("prng: %v", err)
	}
	pairs, err := DefaultCodec.Commit([]byte("alice"), 16, prng)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	want, _ := DefaultCodec.Encode([]byte("alice"), 0)
	for i, p := range pairs {
		got, err := Join(p.Left, p.Right)
		if err != nil {
			t.Fatalf("join slot %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("slot %d does not reconstruct the encoding", i)
		}
		id, ok := DefaultCodec.Reveal(got)
		if !ok || string(id) != "alice" {
			t.Fatalf("slot %d reveal = %q, %v", i, id, ok)
		}
	}
}

func TestSplitHiding(t *testing.T) {
	encA, _ := DefaultCodec.Encode([]byte("alice"), 0)
	encB, _ := DefaultCodec.Encode([]byte("mallory"), 0)

	// Same seed: the left fragment does not depend on the identity at all.
	pa, _ := randutil.Seeded([]byte("hiding"))
	pb, _ := randutil.Seeded([]byte("hiding"))
	sa, err := Split(encA, pa)
	if err != nil {
		t.Fatalf("split a: %v", err)
	}
	sb, err := Split(encB, pb)
	if err != nil {
		t.Fatalf("split b: %v", err)
	}
	if !bytes.Equal(sa.Left, sb.Left) {
		t.Fatalf("left fragments differ under the same seed")
	}

	// The right fragment alone is spread evenly for either identity. Byte 7
	// sits where the two identities differ.
	const samples = 4096
	for _, enc := range [][]byte{encA, encB} {
		prng, _ := randutil.Seeded([]byte("hiding-right"))
		var buckets [16]int
		for i := 0; i < samples; i++ {
			p, err := Split(enc, prng)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			buckets[p.Right[7]>>4]++
		}
		for b, n := range buckets {
			if n < 160 || n > 352 {
				t.Fatalf("bucket %d holds %d of %d samples", b, n, samples)
			}
		}
	}
}

func TestRevealTinyCodec(t *testing.T) {
	c := Codec{Tag: []byte{0xff}, Width: 1}
	x, err := Join([]byte{0xa3}, []byte{0x5c})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, ok := c.Reveal(x); !ok {
		t.Fatalf("a3 ^ 5c should carry the marker")
	}
	if _, ok := c.Reveal([]byte{0x00}); ok {
		t.Fatalf("zero must not carry the marker")
	}
}

func TestJoinWidthMismatch(t *testing.T) {
	if _, err := Join([]byte{1}, []byte{1, 2}); err == nil {
		t.Fatalf("expected width mismatch")
	}
}
