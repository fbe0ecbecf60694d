// Package ips reads, writes and generates IPS patches.
//
// An IPS patch is a flat sequence of records between a header and a trailer:
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   5    'P' 'A' 'T' 'C' 'H'
//	         3    Record offset (big-endian)
//	         2    Record length (big-endian); 0 introduces an RLE record
//	         n    Record data
//	         2    RLE only: repeat count (big-endian)
//	         1    RLE only: byte to repeat
//	         3    'E' 'O' 'F'
//
// Applying a record past the end of the image grows the image, padding with
// 0xff.
package ips

import (
	"bytes"
	"fmt"
	"io"

	"github.com/joshuapare/romkit/internal/buf"
	"github.com/joshuapare/romkit/rom/dirty"
)

const (
	// MaxOffset is the largest offset a record can address.
	MaxOffset = 0xffffff
	// MaxChunk is the largest payload of a single record.
	MaxChunk = 0xffff

	// eofOffset is the record offset that would read as the trailer.
	eofOffset = 0x454f46
	padByte   = 0xff
)

var (
	header  = []byte("PATCH")
	trailer = []byte("EOF")
)

// Record is one patch record. RLE records carry the expanded bytes in Data and
// are re-encoded in run-length form.
type Record struct {
	Offset int
	Data   []byte
	RLE    bool
}

// End returns the exclusive end offset of the record.
func (r Record) End() int { return r.Offset + len(r.Data) }

// Patch is an ordered list of records.
type Patch struct {
	Records []Record
}

// Decode parses an IPS patch. Bytes after the trailer are ignored.
func Decode(data []byte) (*Patch, error) {
	if !bytes.HasPrefix(data, header) {
		return nil, fmt.Errorf("ips header: %w", ErrSignatureMismatch)
	}
	p := &Patch{}
	i := len(header)
	for i < len(data) {
		if bytes.HasPrefix(data[i:], trailer) {
			return p, nil
		}
		if !buf.Has(data, i, 5) {
			return nil, fmt.Errorf("ips record at 0x%x: %w", i, ErrTruncated)
		}
		offset := int(buf.U24BE(data[i:]))
		length := int(buf.U16BE(data[i+3:]))
		i += 5

		if length == 0 {
			if !buf.Has(data, i, 3) {
				return nil, fmt.Errorf("ips rle record at 0x%x: %w", i, ErrTruncated)
			}
			count := int(buf.U16BE(data[i:]))
			p.Records = append(p.Records, Record{
				Offset: offset,
				Data:   bytes.Repeat([]byte{data[i+2]}, count),
				RLE:    true,
			})
			i += 3
			continue
		}

		src, ok := buf.Slice(data, i, length)
		if !ok {
			return nil, fmt.Errorf("ips record data at 0x%x: %w", i, ErrTruncated)
		}
		rec := Record{Offset: offset, Data: make([]byte, length)}
		copy(rec.Data, src)
		p.Records = append(p.Records, rec)
		i += length
	}
	// Some tools omit the trailer.
	return p, nil
}

// Encode serializes the patch. Records longer than MaxChunk are split.
func (p *Patch) Encode() ([]byte, error) {
	out := append([]byte(nil), header...)
	for _, r := range p.Records {
		var err error
		if out, err = appendRecord(out, r); err != nil {
			return nil, err
		}
	}
	return append(out, trailer...), nil
}

// WriteTo writes the encoded patch to w.
func (p *Patch) WriteTo(w io.Writer) (int64, error) {
	b, err := p.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

func appendRecord(out []byte, r Record) ([]byte, error) {
	if r.RLE && len(r.Data) > 0 {
		for off, rest := r.Offset, len(r.Data); rest > 0; {
			n := min(rest, MaxChunk)
			if off < 0 || off > MaxOffset || off == eofOffset {
				return nil, fmt.Errorf("%w: 0x%x", ErrOffset, off)
			}
			out = buf.AppendU24BE(out, uint32(off))
			out = buf.AppendU16BE(out, 0)
			out = buf.AppendU16BE(out, uint16(n))
			out = append(out, r.Data[0])
			off += n
			rest -= n
		}
		return out, nil
	}

	data := r.Data
	for off := r.Offset; len(data) > 0; {
		n := min(len(data), MaxChunk)
		if off < 0 || off > MaxOffset || off == eofOffset {
			return nil, fmt.Errorf("%w: 0x%x", ErrOffset, off)
		}
		out = buf.AppendU24BE(out, uint32(off))
		out = buf.AppendU16BE(out, uint16(n))
		out = append(out, data[:n]...)
		off += n
		data = data[n:]
	}
	return out, nil
}

// Size returns the smallest image length that holds every record.
func (p *Patch) Size() int {
	size := 0
	for _, r := range p.Records {
		size = max(size, r.End())
	}
	return size
}

// Apply returns a copy of image with every record applied in order.
func (p *Patch) Apply(image []byte) ([]byte, error) {
	for _, r := range p.Records {
		if r.Offset < 0 || r.Offset > MaxOffset {
			return nil, fmt.Errorf("%w: 0x%x", ErrOffset, r.Offset)
		}
	}
	out := make([]byte, max(len(image), p.Size()))
	n := copy(out, image)
	for i := n; i < len(out); i++ {
		out[i] = padByte
	}
	for _, r := range p.Records {
		copy(out[r.Offset:], r.Data)
	}
	return out, nil
}

// Apply decodes patch and applies it to a copy of original.
func Apply(original, patch []byte) ([]byte, error) {
	p, err := Decode(patch)
	if err != nil {
		return nil, err
	}
	return p.Apply(original)
}

// Create diffs original against modified and returns the records that turn
// one into the other. Bytes past the end of original are emitted in full.
func Create(original, modified []byte) (*Patch, error) {
	p := &Patch{}
	common := min(len(original), len(modified))
	i := 0
	for i < common {
		if original[i] == modified[i] {
			i++
			continue
		}
		n := 0
		for n < MaxChunk && i+n < common && original[i+n] != modified[i+n] {
			n++
		}
		if err := p.add(modified, i, n); err != nil {
			return nil, err
		}
		i += n
	}
	for i < len(modified) {
		n := min(len(modified)-i, MaxChunk)
		if err := p.add(modified, i, n); err != nil {
			return nil, err
		}
		i += n
	}
	return p, nil
}

// FromRanges builds a patch carrying the bytes of image covered by ranges,
// typically the dirty ranges of a buffer.
func FromRanges(image []byte, ranges []dirty.Range) (*Patch, error) {
	p := &Patch{}
	for _, r := range dirty.Coalesce(ranges) {
		if _, ok := buf.Slice(image, r.Off, r.Len); !ok {
			return nil, fmt.Errorf("%w: range 0x%x+%d outside image", ErrOffset, r.Off, r.Len)
		}
		for off := r.Off; off < r.End(); {
			n := min(r.End()-off, MaxChunk)
			if err := p.add(image, off, n); err != nil {
				return nil, err
			}
			off += n
		}
	}
	return p, nil
}

// add appends image[off:off+n] as a record. A record that would start at the
// trailer's offset is moved back one byte so it does not read as "EOF".
func (p *Patch) add(image []byte, off, n int) error {
	if off == eofOffset {
		off--
		n++
	}
	if off+n-1 > MaxOffset {
		return fmt.Errorf("%w: 0x%x", ErrOffset, off+n-1)
	}
	data := make([]byte, n)
	copy(data, image[off:off+n])
	p.Records = append(p.Records, Record{Offset: off, Data: data})
	return nil
}
