package rom

import (
	"fmt"
	"strings"

	"github.com/joshuapare/romkit/internal/buf"
)

// SegmentKind distinguishes plain segments from bank-switched ones.
type SegmentKind uint8

const (
	SegmentRaw    SegmentKind = iota // contiguous, unbanked bytes
	SegmentBanked                    // fixed-size banks selected by index
)

func (k SegmentKind) String() string {
	if k == SegmentBanked {
		return "banked"
	}
	return "raw"
}

// MarshalText implements encoding.TextMarshaler.
func (k SegmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SegmentKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "raw", "":
		*k = SegmentRaw
	case "banked":
		*k = SegmentBanked
	default:
		return fmt.Errorf("%w: unknown segment kind %q", ErrLayout, text)
	}
	return nil
}

// Segment describes one named region of the image. BankSize and Mask are
// only meaningful for banked segments.
type Segment struct {
	Kind     SegmentKind `json:"kind" yaml:"kind"`
	Name     string      `json:"name" yaml:"name"`
	Offset   int         `json:"offset" yaml:"offset"`
	Length   int         `json:"length" yaml:"length"`
	BankSize int         `json:"banksize,omitempty" yaml:"banksize,omitempty"`
	Mask     int         `json:"mask,omitempty" yaml:"mask,omitempty"`
	Fill     byte        `json:"fill" yaml:"fill"`
}

// Raw returns a plain segment descriptor.
func Raw(name string, offset, length int, fill byte) Segment {
	return Segment{Kind: SegmentRaw, Name: name, Offset: offset, Length: length, Fill: fill}
}

// Banked returns a bank-switched segment descriptor with Mask = banksize-1.
func Banked(name string, offset, length, banksize int, fill byte) Segment {
	return Segment{
		Kind:     SegmentBanked,
		Name:     name,
		Offset:   offset,
		Length:   length,
		BankSize: banksize,
		Mask:     banksize - 1,
		Fill:     fill,
	}
}

// IsBanked reports whether the segment is bank-switched.
func (s Segment) IsBanked() bool { return s.Kind == SegmentBanked }

// End returns the exclusive end offset of the segment.
func (s Segment) End() int { return s.Offset + s.Length }

// Banks returns the number of banks in a banked segment, or 0.
func (s Segment) Banks() int {
	if !s.IsBanked() || s.BankSize <= 0 {
		return 0
	}
	return s.Length / s.BankSize
}

func (s Segment) validate() error {
	switch {
	case s.Name == "" || strings.ContainsRune(s.Name, ':'):
		return fmt.Errorf("%w: invalid segment name %q", ErrLayout, s.Name)
	case s.Offset < 0 || s.Length < 0:
		return fmt.Errorf("%w: segment %q has negative offset or length", ErrLayout, s.Name)
	}
	if _, ok := buf.AddOverflowSafe(s.Offset, s.Length); !ok {
		return fmt.Errorf("%w: segment %q overflows", ErrLayout, s.Name)
	}
	if !s.IsBanked() {
		return nil
	}
	switch {
	case s.BankSize <= 0 || s.BankSize&(s.BankSize-1) != 0:
		return fmt.Errorf("%w: segment %q bank size %d is not a power of two", ErrLayout, s.Name, s.BankSize)
	case s.Length == 0 || s.Length%s.BankSize != 0:
		return fmt.Errorf("%w: segment %q length %d is not a whole number of %d-byte banks",
			ErrLayout, s.Name, s.Length, s.BankSize)
	case s.Mask != s.BankSize-1:
		return fmt.Errorf("%w: segment %q mask 0x%x does not match bank size 0x%x",
			ErrLayout, s.Name, s.Mask, s.BankSize)
	}
	return nil
}

// Layout is the ordered list of segments partitioning an image.
type Layout []Segment

// Validate checks that the layout is non-empty, names are unique, segments are
// well formed, and together they cover [0, Size()) contiguously.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: layout is empty", ErrLayout)
	}
	seen := make(map[string]struct{}, len(l))
	next := 0
	for _, s := range l {
		if err := s.validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate segment %q", ErrLayout, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Offset != next {
			return fmt.Errorf("%w: segment %q starts at 0x%x, want 0x%x", ErrLayout, s.Name, s.Offset, next)
		}
		next = s.End()
	}
	return nil
}

// Segment finds a segment by name.
func (l Layout) Segment(name string) (Segment, error) {
	for _, s := range l {
		if s.Name == name {
			return s, nil
		}
	}
	return Segment{}, fmt.Errorf("%w: %q", ErrUnknownSegment, name)
}

// Bound returns the [start, end) offsets of the named segment.
func (l Layout) Bound(name string) (int, int, error) {
	s, err := l.Segment(name)
	if err != nil {
		return 0, 0, err
	}
	return s.Offset, s.End(), nil
}

// FileBound returns the bounds of the whole image.
func (l Layout) FileBound() (int, int, error) {
	if len(l) == 0 {
		return 0, 0, fmt.Errorf("%w: layout is empty", ErrLayout)
	}
	return 0, l.Size(), nil
}

// Size returns the total image size: the end of the last segment.
func (l Layout) Size() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].End()
}

// Banks returns the bank count of the named banked segment.
func (l Layout) Banks(name string) (int, error) {
	s, err := l.Segment(name)
	if err != nil {
		return 0, err
	}
	if !s.IsBanked() {
		return 0, fmt.Errorf("%w: segment %q is not banked", ErrLayout, name)
	}
	return s.Banks(), nil
}

// Clone returns an independent copy of the layout.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	copy(out, l)
	return out
}

// Resize returns a copy of the layout with the named banked segment holding
// banks banks. Later segments are shifted to stay contiguous.
func (l Layout) Resize(name string, banks int) (Layout, error) {
	out := l.Clone()
	idx := -1
	for i, s := range out {
		if s.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSegment, name)
	}
	seg := out[idx]
	if !seg.IsBanked() {
		return nil, fmt.Errorf("%w: segment %q is not banked", ErrLayout, name)
	}
	length, ok := buf.MulOverflowSafe(banks, seg.BankSize)
	if !ok || banks <= 0 {
		return nil, fmt.Errorf("%w: cannot resize %q to %d banks", ErrLayout, name, banks)
	}
	delta := length - seg.Length
	out[idx].Length = length
	for i := idx + 1; i < len(out); i++ {
		out[i].Offset += delta
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
