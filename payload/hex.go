package payload

import (
	"encoding/hex"
	"strings"
)

// HexBytes is a byte slice persisted as a hex string, e.g. "a9008d0020".
// Whitespace is ignored when decoding.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler.
func (h HexBytes) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(out, h)
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HexBytes) UnmarshalText(text []byte) error {
	s := strings.Join(strings.Fields(string(text)), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}
