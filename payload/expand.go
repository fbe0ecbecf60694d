package payload

import (
	"bytes"
	"fmt"

	"github.com/joshuapare/romkit/internal/nesfile"
	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
)

// iNES header fields updated when the PRG or CHR segment grows.
var (
	inesMagic = []byte("NES\x1a")
	inesUnits = map[string]struct {
		offset   int
		bankSize int
	}{
		rom.PrgSegment: {offset: 4, bankSize: 16 * 1024},
		rom.ChrSegment: {offset: 5, bankSize: 8 * 1024},
	}
)

// Expand grows a banked segment to Banks banks. The old last bank moves to
// the new last bank, the banks in between start as fill, and later segments
// shift up. When the segment is the one the allocator governs, the new banks
// are registered as free starting at FreeOffset.
type Expand struct {
	Segment    string `json:"segment"`
	Banks      int    `json:"banks"`
	FreeOffset uint   `json:"free_offset"`
}

func (*Expand) Kind() string { return KindExpand }

func (x *Expand) Name() string { return fmt.Sprintf("Expand %s to %d banks", x.Segment, x.Banks) }

func (x *Expand) Pack(e *project.Edit) error {
	old := e.ROM()
	layout := old.Layout()
	seg, err := layout.Segment(x.Segment)
	if err != nil {
		return err
	}
	oldBanks, err := layout.Banks(x.Segment)
	if err != nil {
		return err
	}
	if x.Banks < oldBanks {
		return fmt.Errorf("%w: cannot shrink %q from %d to %d banks", rom.ErrLayout, x.Segment, oldBanks, x.Banks)
	}
	if x.Banks == oldBanks {
		return nil
	}

	grown, err := layout.Resize(x.Segment, x.Banks)
	if err != nil {
		return err
	}
	nb, err := rom.FromLayout(grown)
	if err != nil {
		return err
	}
	for _, s := range layout {
		data, err := old.ReadBytes(rom.Seg(s.Name, 0), s.Length)
		if err != nil {
			return err
		}
		if s.Name != x.Segment {
			if err := nb.WriteBytes(rom.Seg(s.Name, 0), data); err != nil {
				return err
			}
			continue
		}
		split := s.Length - seg.BankSize
		if err := nb.WriteBytes(rom.Seg(s.Name, 0), data[:split]); err != nil {
			return err
		}
		if err := nb.WriteBytes(rom.Bank(s.Name, -1, 0), data[split:]); err != nil {
			return err
		}
	}
	if err := updateHeader(nb, x.Segment, grown); err != nil {
		return err
	}
	e.SetROM(nb)
	e.Logger().Debug("expand", "segment", x.Segment, "from", oldBanks, "to", x.Banks)

	mem := e.Memory()
	if mem.Segment() != x.Segment {
		return nil
	}
	if err := mem.AdjustLayout(grown); err != nil {
		return err
	}
	for bank := oldBanks - 1; bank < x.Banks-1; bank++ {
		if err := mem.Free(rom.Bank(x.Segment, bank, x.FreeOffset), seg.BankSize); err != nil {
			return err
		}
	}
	return nil
}

// updateHeader rewrites the iNES bank count of segment when the image has a
// recognizable header and the segment uses iNES bank units.
func updateHeader(b *rom.Buffer, segment string, layout rom.Layout) error {
	unit, ok := inesUnits[segment]
	if !ok {
		return nil
	}
	hdr, err := b.ReadBytes(rom.Seg(nesfile.HeaderSegment, 0), len(inesMagic))
	if err != nil || !bytes.Equal(hdr, inesMagic) {
		return nil
	}
	s, err := layout.Segment(segment)
	if err != nil || s.BankSize != unit.bankSize || s.Banks() > 0xff {
		return nil
	}
	return b.Write(rom.Seg(nesfile.HeaderSegment, uint(unit.offset)), byte(s.Banks()))
}

// Unpack records the segment's current bank count.
func (x *Expand) Unpack(e *project.Edit) error {
	banks, err := e.ROM().Layout().Banks(x.Segment)
	if err != nil {
		return err
	}
	x.Banks = banks
	return nil
}
