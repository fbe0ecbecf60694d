package rom

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/romkit/internal/buf"
	"github.com/joshuapare/romkit/internal/durable"
	"github.com/joshuapare/romkit/rom/dirty"
)

// DefaultSegment names the single Raw segment synthesized by FromBytes when no
// layout is supplied.
const DefaultSegment = "rom"

// Buffer owns the bytes of an image together with the layout that interprets
// them. All access goes through Address values and is bounds-checked.
type Buffer struct {
	layout Layout
	data   []byte
	dirty  *dirty.Tracker
}

// FromLayout allocates an image sized to layout, each segment pre-filled with
// its fill byte.
func FromLayout(layout Layout) (*Buffer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	data := make([]byte, layout.Size())
	for _, s := range layout {
		fill := data[s.Offset:s.End()]
		for i := range fill {
			fill[i] = s.Fill
		}
	}
	return &Buffer{layout: layout.Clone(), data: data, dirty: dirty.NewTracker()}, nil
}

// FromBytes wraps data, taking ownership of it. A nil layout synthesizes a
// single Raw segment spanning the data; otherwise the layout must account for
// exactly len(data) bytes.
func FromBytes(data []byte, layout Layout) (*Buffer, error) {
	if layout == nil {
		layout = Layout{Raw(DefaultSegment, 0, len(data), 0)}
	} else if err := checkLayout(layout, len(data)); err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return &Buffer{layout: layout.Clone(), data: data, dirty: dirty.NewTracker()}, nil
}

// FromReader reads the whole stream and wraps it as FromBytes does.
func FromReader(r io.Reader, layout Layout) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rom: read image: %w", err)
	}
	return FromBytes(data, layout)
}

// FromFile loads an image from disk.
func FromFile(path string, layout Layout) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rom: read image: %w", err)
	}
	b, err := FromBytes(data, layout)
	if err != nil {
		return nil, fmt.Errorf("rom: %s: %w", path, err)
	}
	return b, nil
}

func checkLayout(layout Layout, size int) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	if layout.Size() != size {
		return fmt.Errorf("%w: layout length 0x%x doesn't match data length 0x%x", ErrLayout, layout.Size(), size)
	}
	return nil
}

// WriteTo writes the raw image to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// Save writes the raw image to path, replacing it atomically.
func (b *Buffer) Save(path string) error {
	if err := durable.WriteFile(path, b.data, 0o644); err != nil {
		return fmt.Errorf("rom: save image: %w", err)
	}
	return nil
}

// Clone returns a deep copy with an empty write history.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &Buffer{layout: b.layout.Clone(), data: data, dirty: dirty.NewTracker()}
}

// Layout returns a copy of the buffer's layout.
func (b *Buffer) Layout() Layout { return b.layout.Clone() }

// Len returns the image size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns a copy of the whole image.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Equal reports whether both buffers hold identical bytes.
func (b *Buffer) Equal(other *Buffer) bool {
	return other != nil && bytes.Equal(b.data, other.data)
}

// SHA256 returns the hex digest of the image bytes.
func (b *Buffer) SHA256() string {
	sum := sha256.Sum256(b.data)
	return hex.EncodeToString(sum[:])
}

// Dirty returns the coalesced ranges written since the buffer was created or
// cloned.
func (b *Buffer) Dirty() []dirty.Range {
	if b.dirty == nil {
		return nil
	}
	return b.dirty.Coalesced()
}

// ApplyLayout installs a new layout. An empty buffer is rebuilt from the
// layout; otherwise the layout must match the current byte length.
func (b *Buffer) ApplyLayout(layout Layout) error {
	if len(b.data) == 0 {
		nb, err := FromLayout(layout)
		if err != nil {
			return err
		}
		*b = *nb
		b.track(0, len(b.data))
		return nil
	}
	if err := checkLayout(layout, len(b.data)); err != nil {
		return err
	}
	b.layout = layout.Clone()
	return nil
}

// ReadBytes returns a copy of length bytes at address.
func (b *Buffer) ReadBytes(address Address, length int) ([]byte, error) {
	off, err := address.Resolve(length, b.layout)
	if err != nil {
		return nil, err
	}
	src, ok := buf.Slice(b.data, off, length)
	if !ok {
		return nil, fmt.Errorf("%w: %s length %d", ErrAddressBound, address, length)
	}
	out := make([]byte, length)
	copy(out, src)
	return out, nil
}

// WriteBytes copies value into the image at address.
func (b *Buffer) WriteBytes(address Address, value []byte) error {
	off, err := address.Resolve(len(value), b.layout)
	if err != nil {
		return err
	}
	dst, ok := buf.Slice(b.data, off, len(value))
	if !ok {
		return fmt.Errorf("%w: %s length %d", ErrAddressBound, address, len(value))
	}
	copy(dst, value)
	b.track(off, len(value))
	return nil
}

func (b *Buffer) track(off, length int) {
	if b.dirty == nil {
		b.dirty = dirty.NewTracker()
	}
	b.dirty.Add(off, length)
}

// Read returns the byte at address.
func (b *Buffer) Read(address Address) (byte, error) {
	v, err := b.ReadBytes(address, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Write stores one byte at address.
func (b *Buffer) Write(address Address, value byte) error {
	return b.WriteBytes(address, []byte{value})
}

// ReadWord returns the little-endian word at address.
func (b *Buffer) ReadWord(address Address) (uint16, error) {
	v, err := b.ReadBytes(address, 2)
	if err != nil {
		return 0, err
	}
	return buf.U16LE(v), nil
}

// WriteWord stores a little-endian word at address.
func (b *Buffer) WriteWord(address Address, value uint16) error {
	return b.WriteBytes(address, buf.PutU16LE(value))
}

// ReadPointer reads a 16-bit pointer at address and returns it as an address
// of the same variant, segment and bank.
func (b *Buffer) ReadPointer(address Address) (Address, error) {
	v, err := b.ReadWord(address)
	if err != nil {
		return Address{}, err
	}
	return address.WithOffset(uint(v)), nil
}

// WritePointer stores the low 16 bits of ptr's offset at address.
func (b *Buffer) WritePointer(address, ptr Address) error {
	return b.WriteWord(address, uint16(ptr.Offset()))
}

// ReadTerminated reads bytes starting at address up to, but not including,
// the first term byte. Running off the end of the bank, segment or image is
// an ErrAddressBound error.
func (b *Buffer) ReadTerminated(address Address, term byte) ([]byte, error) {
	start, err := address.Resolve(1, b.layout)
	if err != nil {
		return nil, fmt.Errorf("unterminated data at %s: %w", address, err)
	}
	end, err := b.limit(address, start)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(b.data[start:end], term); i >= 0 {
		out := make([]byte, i)
		copy(out, b.data[start:start+i])
		return out, nil
	}
	return nil, fmt.Errorf("%w: unterminated data at %s", ErrAddressBound, address)
}

// limit returns the exclusive end of the region a sequential read starting at
// the resolved offset off may cover: the bank for banked addresses, the
// segment or the whole image otherwise.
func (b *Buffer) limit(address Address, off int) (int, error) {
	s := address.Simplify()
	switch s.Kind() {
	case KindFile:
		return len(b.data), nil
	case KindSegment:
		_, end, err := b.layout.Bound(s.SegmentName())
		return end, err
	default:
		seg, err := b.layout.Segment(s.SegmentName())
		if err != nil {
			return 0, err
		}
		rel := off - seg.Offset
		return seg.Offset + (rel/seg.BankSize+1)*seg.BankSize, nil
	}
}

// WriteTerminated writes data followed by term at address.
func (b *Buffer) WriteTerminated(address Address, data []byte, term byte) error {
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	out = append(out, term)
	return b.WriteBytes(address, out)
}
