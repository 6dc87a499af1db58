package coin

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	fieldSep    = "-"
	listSep     = ","
	wireFields  = 5
	guidHexSize = 32
)

// MalformedCoinError reports a serialized coin that does not match the
// schema TAG-amount-guid-lefts-rights.
type MalformedCoinError struct {
	Field  string
	Reason string
}

func (e *MalformedCoinError) Error() string {
	return fmt.Sprintf("coin: malformed %s: %s", e.Field, e.Reason)
}

func malformed(field, format string, args ...any) error {
	return &MalformedCoinError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Wire is the public content of a coin: everything the bank certifies and a
// merchant inspects. Left[i] and Right[i] are the two halves of slot i.
type Wire struct {
	Tag    string
	Amount uint64
	GUID   uuid.UUID
	Left   [][]byte
	Right  [][]byte
}

// GUIDString renders a GUID as 32 lowercase hex digits. The dashed UUID form
// would collide with the field separator.
func GUIDString(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// ParseGUID is the inverse of GUIDString.
func ParseGUID(s string) (uuid.UUID, error) {
	if len(s) != guidHexSize {
		return uuid.Nil, malformed("guid", "want %d hex digits, got %d", guidHexSize, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return uuid.Nil, malformed("guid", "%v", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, malformed("guid", "%v", err)
	}
	return id, nil
}

// String renders TAG-amount-guid-l1,..,lk-r1,..,rk with hex fragments.
func (w Wire) String() string {
	var sb strings.Builder
	sb.WriteString(w.Tag)
	sb.WriteString(fieldSep)
	sb.WriteString(strconv.FormatUint(w.Amount, 10))
	sb.WriteString(fieldSep)
	sb.WriteString(GUIDString(w.GUID))
	sb.WriteString(fieldSep)
	sb.WriteString(joinHex(w.Left))
	sb.WriteString(fieldSep)
	sb.WriteString(joinHex(w.Right))
	return sb.String()
}

func joinHex(frags [][]byte) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = hex.EncodeToString(f)
	}
	return strings.Join(parts, listSep)
}

// ParseWire decodes a serialized coin, requiring the given tag. The input
// must be in canonical form: re-serializing the result yields it exactly.
func ParseWire(tag, s string) (Wire, error) {
	fields := strings.Split(s, fieldSep)
	if len(fields) != wireFields {
		return Wire{}, malformed("coin", "want %d fields, got %d", wireFields, len(fields))
	}
	if fields[0] != tag {
		return Wire{}, malformed("tag", "got %q, want %q", fields[0], tag)
	}
	amount, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Wire{}, malformed("amount", "%v", err)
	}
	guid, err := ParseGUID(fields[2])
	if err != nil {
		return Wire{}, err
	}
	left, err := splitHex("left fragments", fields[3])
	if err != nil {
		return Wire{}, err
	}
	right, err := splitHex("right fragments", fields[4])
	if err != nil {
		return Wire{}, err
	}
	if len(left) != len(right) {
		return Wire{}, malformed("fragments", "%d left vs %d right", len(left), len(right))
	}
	width := len(left[0])
	for i := range left {
		if len(left[i]) != width || len(right[i]) != width {
			return Wire{}, malformed("fragments", "slot %d width differs from slot 0", i)
		}
	}
	w := Wire{Tag: tag, Amount: amount, GUID: guid, Left: left, Right: right}
	if w.String() != s {
		return Wire{}, malformed("coin", "not in canonical form")
	}
	return w, nil
}

func splitHex(field, s string) ([][]byte, error) {
	if s == "" {
		return nil, malformed(field, "empty list")
	}
	parts := strings.Split(s, listSep)
	out := make([][]byte, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, malformed(field, "empty fragment %d", i)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, malformed(field, "fragment %d: %v", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// Slots returns the number of commitment slots.
func (w Wire) Slots() int {
	return len(w.Left)
}
