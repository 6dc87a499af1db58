package randutil

import (
	"fmt"
	"io"
)

// Script is a PRNG that replays a fixed byte sequence. Reads past the end
// fail with io.ErrUnexpectedEOF so a test notices when a protocol step
// consumes more randomness than it scripted.
type Script struct {
	data []byte
	pos  int
}

// NewScript returns a Script over a copy of data.
func NewScript(data ...byte) *Script {
	return &Script{data: append([]byte(nil), data...)}
}

func (s *Script) Read(p []byte) (int, error) {
	if s.pos+len(p) > len(s.data) {
		return 0, fmt.Errorf("script exhausted at %d/%d: %w", s.pos, len(s.data), io.ErrUnexpectedEOF)
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// Reset rewinds the script.
func (s *Script) Reset() {
	s.pos = 0
}

// Remaining reports how many scripted bytes are left.
func (s *Script) Remaining() int {
	return len(s.data) - s.pos
}
