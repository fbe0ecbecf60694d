package payload

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
)

// Allocation policies for relocated text.
const (
	PolicyNear = "near" // nearest free range to the old location
	PolicyAt   = "at"   // only at the old location
	PolicyFit  = "fit"  // exact fit, else first fit, anywhere in the bank
)

// Text is a terminated ISO-8859-1 string reached through a 16-bit pointer.
// Packing frees the string the pointer currently references, allocates room
// for the new one according to Policy and repoints the pointer.
type Text struct {
	Pointer    rom.Address `json:"pointer"`
	Text       string      `json:"text"`
	Terminator byte        `json:"terminator"`
	Policy     string      `json:"policy,omitempty"`
}

func (*Text) Kind() string { return KindText }
func (*Text) Name() string { return "Text" }

func (t *Text) Pack(e *project.Edit) error {
	enc, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(t.Text))
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrEncoding, t.Text, err)
	}
	if bytes.IndexByte(enc, t.Terminator) >= 0 {
		return fmt.Errorf("%w: %q contains terminator 0x%02x", ErrEncoding, t.Text, t.Terminator)
	}

	switch t.Policy {
	case "", PolicyNear, PolicyAt, PolicyFit:
	default:
		return fmt.Errorf("%w: %q", ErrPolicy, t.Policy)
	}

	b, mem := e.ROM(), e.Memory()
	old, err := b.ReadPointer(t.Pointer)
	if err != nil {
		return err
	}
	prev, err := b.ReadTerminated(old, t.Terminator)
	if err != nil {
		return err
	}
	if err := mem.Free(old, len(prev)+1); err != nil {
		return err
	}

	var dst rom.Address
	switch t.Policy {
	case PolicyNear, "":
		dst, err = mem.AllocNear(old, len(enc)+1)
	case PolicyAt:
		dst, err = mem.AllocAt(old, len(enc)+1)
	case PolicyFit:
		dst, err = mem.Alloc(old, len(enc)+1)
	}
	if err != nil {
		return err
	}

	e.Logger().Debug("text", "pointer", t.Pointer, "from", old, "to", dst, "length", len(enc)+1)
	if err := b.WritePointer(t.Pointer, dst); err != nil {
		return err
	}
	return b.WriteTerminated(dst, enc, t.Terminator)
}

// Unpack reads the string the pointer references.
func (t *Text) Unpack(e *project.Edit) error {
	ptr, err := e.ROM().ReadPointer(t.Pointer)
	if err != nil {
		return err
	}
	raw, err := e.ROM().ReadTerminated(ptr, t.Terminator)
	if err != nil {
		return err
	}
	dec, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	t.Text = string(dec)
	return nil
}
