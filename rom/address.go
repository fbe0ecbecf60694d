package rom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/romkit/internal/buf"
)

// Well-known banked segment names used by the Prg and Chr shorthands.
const (
	PrgSegment = "prg"
	ChrSegment = "chr"
)

// Kind identifies an Address variant.
type Kind uint8

const (
	KindFile    Kind = iota // absolute file offset
	KindSegment             // offset into a named segment
	KindCPU                 // 16-bit CPU address, input only
	KindBank                // offset into one bank of a banked segment
	KindPrg                 // Bank("prg", ...) shorthand
	KindChr                 // Bank("chr", ...) shorthand
)

var kindNames = [...]string{
	KindFile:    "file",
	KindSegment: "seg",
	KindCPU:     "cpu",
	KindBank:    "bank",
	KindPrg:     "prg",
	KindChr:     "chr",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Address is a location in a ROM image. It is a small value type and is
// comparable with ==. The zero value is File(0).
//
// File, Segment and Bank offsets are native-width unsigned integers; CPU, Prg
// and Chr offsets are 16 bits wide. Arithmetic wraps within that width.
type Address struct {
	kind    Kind
	segment string
	bank    int
	offset  uint
}

// File returns an absolute offset ignoring segmentation.
func File(offset uint) Address {
	return Address{kind: KindFile, offset: offset}
}

// Seg returns an offset relative to the start of the named segment.
func Seg(name string, offset uint) Address {
	return Address{kind: KindSegment, segment: name, offset: offset}
}

// CPU returns a 16-bit logical address. It must be converted with WithSegment
// before it can be resolved.
func CPU(offset uint16) Address {
	return Address{kind: KindCPU, offset: uint(offset)}
}

// Bank returns an offset inside one bank of the named banked segment.
// A negative bank counts from the last bank.
func Bank(name string, bank int, offset uint) Address {
	return Address{kind: KindBank, segment: name, bank: bank, offset: offset}
}

// Prg is shorthand for Bank("prg", bank, offset).
func Prg(bank int, offset uint16) Address {
	return Address{kind: KindPrg, bank: bank, offset: uint(offset)}
}

// Chr is shorthand for Bank("chr", bank, offset).
func Chr(bank int, offset uint16) Address {
	return Address{kind: KindChr, bank: bank, offset: uint(offset)}
}

// Kind returns the address variant.
func (a Address) Kind() Kind { return a.kind }

// Offset returns the raw offset carried by the address.
func (a Address) Offset() uint { return a.offset }

// SegmentName returns the segment this address refers to, or "" for File and
// CPU addresses.
func (a Address) SegmentName() string {
	switch a.kind {
	case KindSegment, KindBank:
		return a.segment
	case KindPrg:
		return PrgSegment
	case KindChr:
		return ChrSegment
	default:
		return ""
	}
}

// BankIndex returns the bank index for Bank, Prg and Chr addresses.
func (a Address) BankIndex() (int, bool) {
	switch a.kind {
	case KindBank, KindPrg, KindChr:
		return a.bank, true
	default:
		return 0, false
	}
}

// Simplify normalizes the Prg and Chr shorthands into the generic Bank form.
func (a Address) Simplify() Address {
	switch a.kind {
	case KindPrg:
		return Bank(PrgSegment, a.bank, a.offset)
	case KindChr:
		return Bank(ChrSegment, a.bank, a.offset)
	default:
		return a
	}
}

func (a Address) narrow() bool {
	return a.kind == KindCPU || a.kind == KindPrg || a.kind == KindChr
}

// Add returns the address moved by delta, wrapping within the variant's width.
func (a Address) Add(delta int) Address {
	if a.narrow() {
		a.offset = uint(uint16(a.offset) + uint16(delta))
	} else {
		a.offset += uint(delta)
	}
	return a
}

// Sub returns the address moved back by delta, wrapping within the variant's width.
func (a Address) Sub(delta int) Address {
	if a.narrow() {
		a.offset = uint(uint16(a.offset) - uint16(delta))
	} else {
		a.offset -= uint(delta)
	}
	return a
}

// WithSegment rebases the address onto the named segment, keeping its offset
// and, for banked variants, its bank.
func (a Address) WithSegment(name string) Address {
	switch a.kind {
	case KindBank, KindPrg, KindChr:
		return Bank(name, a.bank, a.offset)
	default:
		return Seg(name, a.offset)
	}
}

// WithBank returns the address in the given bank. Prg and Chr keep their
// shorthand form. File and CPU addresses name no segment and are returned
// unchanged; use WithSegment first.
func (a Address) WithBank(bank int) Address {
	switch a.kind {
	case KindPrg, KindChr:
		a.bank = bank
		return a
	case KindSegment, KindBank:
		return Bank(a.segment, bank, a.offset)
	default:
		return a
	}
}

// WithOffset returns the address with its offset replaced.
func (a Address) WithOffset(offset uint) Address {
	if a.narrow() {
		offset = uint(uint16(offset))
	}
	a.offset = offset
	return a
}

// InRange reports whether a lies inside [start, start+length). Both addresses
// must name the same variant, segment and bank.
func (a Address) InRange(start Address, length int) bool {
	x, s := a.Simplify(), start.Simplify()
	if x.kind != s.kind || x.segment != s.segment || x.bank != s.bank || length <= 0 {
		return false
	}
	return x.offset >= s.offset && x.offset-s.offset < uint(length)
}

// Resolve checks an access of length bytes at this address against layout and
// returns its absolute offset.
func (a Address) Resolve(length int, layout Layout) (int, error) {
	s := a.Simplify()
	if s.kind == KindCPU || s.kind > KindChr {
		return 0, fmt.Errorf("%w: %s cannot be resolved", ErrAddressType, a)
	}
	if length < 0 {
		return 0, a.boundError(length)
	}

	var start, end int
	var err error
	if s.kind == KindFile {
		start, end, err = layout.FileBound()
	} else {
		start, end, err = layout.Bound(s.segment)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", a, err)
	}

	off, ok := buf.UintToInt(s.offset)
	if !ok {
		return 0, a.boundError(length)
	}

	switch s.kind {
	case KindFile, KindSegment:
		abs, ok := buf.AddOverflowSafe(start, off)
		if !ok {
			return 0, a.boundError(length)
		}
		if _, err := buf.CheckRange(start, end, abs, length); err != nil {
			return 0, a.boundError(length)
		}
		return abs, nil

	default: // KindBank
		seg, err := layout.Segment(s.segment)
		if err != nil {
			return 0, fmt.Errorf("resolve %s: %w", a, err)
		}
		if !seg.IsBanked() {
			return 0, fmt.Errorf("%w: %s names non-banked segment %q", ErrAddressType, a, seg.Name)
		}
		banks := seg.Banks()
		bank := s.bank
		if bank < 0 {
			bank += banks
		}
		if bank < 0 || bank >= banks {
			return 0, a.boundError(length)
		}

		masked := off & seg.Mask
		if length > 0 {
			last, ok := buf.AddOverflowSafe(masked, length-1)
			if !ok || last&^seg.Mask != 0 {
				return 0, a.boundError(length)
			}
		}

		abs := start + bank*seg.BankSize + masked
		if _, err := buf.CheckRange(start, end, abs, length); err != nil {
			return 0, a.boundError(length)
		}
		return abs, nil
	}
}

func (a Address) boundError(length int) error {
	return fmt.Errorf("%w: %s length %d", ErrAddressBound, a, length)
}

// String formats the address in its wire form, e.g. "prg:-1:0xc000".
func (a Address) String() string {
	switch a.kind {
	case KindFile:
		return fmt.Sprintf("file:0x%x", a.offset)
	case KindSegment:
		return fmt.Sprintf("seg:%s:0x%x", a.segment, a.offset)
	case KindCPU:
		return fmt.Sprintf("cpu:0x%04x", a.offset)
	case KindBank:
		return fmt.Sprintf("bank:%s:%d:0x%x", a.segment, a.bank, a.offset)
	case KindPrg, KindChr:
		return fmt.Sprintf("%s:%d:0x%04x", a.kind, a.bank, a.offset)
	default:
		return fmt.Sprintf("%s:0x%x", a.kind, a.offset)
	}
}

// MarshalText implements encoding.TextMarshaler using the wire form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses the wire form produced by String. Offsets and banks
// accept any Go integer literal ("0x8000", "32768", "-1").
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	bad := func(reason string) (Address, error) {
		return Address{}, fmt.Errorf("%w: parse %q: %s", ErrAddressType, s, reason)
	}

	want := map[string]int{"file": 2, "seg": 3, "cpu": 2, "bank": 4, "prg": 3, "chr": 3}
	n, ok := want[parts[0]]
	if !ok {
		return bad("unknown address kind")
	}
	if len(parts) != n {
		return bad(fmt.Sprintf("want %d fields, got %d", n, len(parts)))
	}

	narrow := parts[0] == "cpu" || parts[0] == "prg" || parts[0] == "chr"
	bits := strconv.IntSize
	if narrow {
		bits = 16
	}
	offset, err := strconv.ParseUint(parts[n-1], 0, bits)
	if err != nil {
		return bad("offset: " + err.Error())
	}

	var bank int64
	switch parts[0] {
	case "bank":
		bank, err = strconv.ParseInt(parts[2], 0, strconv.IntSize)
	case "prg", "chr":
		bank, err = strconv.ParseInt(parts[1], 0, strconv.IntSize)
	}
	if err != nil {
		return bad("bank: " + err.Error())
	}

	switch parts[0] {
	case "file":
		return File(uint(offset)), nil
	case "seg":
		return Seg(parts[1], uint(offset)), nil
	case "cpu":
		return CPU(uint16(offset)), nil
	case "bank":
		return Bank(parts[1], int(bank), uint(offset)), nil
	case "prg":
		return Prg(int(bank), uint16(offset)), nil
	default:
		return Chr(int(bank), uint16(offset)), nil
	}
}
