package randutil

import (
	"errors"
	"io"
	"math/big"
	"testing"
)

func TestIntnIsSpread(t *testing.T) {
	const n, rounds = 5, 2000
	prng, err := Seeded([]byte("spread"))
	if err != nil {
		t.Fatalf("seeded: %v", err)
	}
	counts := make([]int, n)
	for i := 0; i < rounds; i++ {
		idx, err := Intn(prng, n)
		if err != nil {
			t.Fatalf("intn: %v", err)
		}
		counts[idx]++
	}
	for i, c := range counts {
		if c < 300 || c > 500 {
			t.Fatalf("index %d drawn %d times of %d", i, c, rounds)
		}
	}
}

func TestIntnScripted(t *testing.T) {
	// 0x07 masks to 7 and is rejected for n=5; 0x02 is accepted.
	s := NewScript(0x07, 0x02)
	v, err := Intn(s, 5)
	if err != nil {
		t.Fatalf("intn: %v", err)
	}
	if v != 2 {
		t.Fatalf("v = %d want 2", v)
	}
	if s.Remaining() != 0 {
		t.Fatalf("remaining = %d", s.Remaining())
	}
	if v, err := Intn(s, 1); err != nil || v != 0 {
		t.Fatalf("intn(1) = %d, %v", v, err)
	}
	if _, err := Intn(s, 0); err == nil {
		t.Fatalf("expected error for n=0")
	}
}

func TestBitAndExhaustion(t *testing.T) {
	s := NewScript(0x00, 0x01, 0xfe)
	for _, want := range []int{0, 1, 0} {
		b, err := Bit(s)
		if err != nil {
			t.Fatalf("bit: %v", err)
		}
		if b != want {
			t.Fatalf("bit = %d want %d", b, want)
		}
	}
	if _, err := Bit(s); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
	s.Reset()
	if b, _ := Bit(s); b != 0 {
		t.Fatalf("reset did not rewind")
	}
}

func TestSeededIsReproducible(t *testing.T) {
	a, _ := Seeded([]byte("seed"))
	b, _ := Seeded([]byte("seed"))
	ba, err := Bytes(a, 32)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	bb, _ := Bytes(b, 32)
	if string(ba) != string(bb) {
		t.Fatalf("same seed gave different streams")
	}
}

func TestBigIntnBounds(t *testing.T) {
	prng, _ := New()
	max := big.NewInt(1000)
	for i := 0; i < 200; i++ {
		v, err := BigIntn(prng, max)
		if err != nil {
			t.Fatalf("bigintn: %v", err)
		}
		if v.Sign() < 0 || v.Cmp(max) >= 0 {
			t.Fatalf("value %v out of range", v)
		}
	}
	if _, err := BigIntn(prng, big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero bound")
	}
}
