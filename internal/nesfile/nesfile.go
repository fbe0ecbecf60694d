// Package nesfile derives a segment layout from an iNES image header.
package nesfile

import (
	"bytes"
	"fmt"

	"github.com/retroenv/retrogolib/nes/cartridge"

	"github.com/joshuapare/romkit/rom"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024

	flagsByte     = 6
	trainerBit    = 0x04 // iNES flags 6, bit 2
	fourScreenBit = 0x08
)

// Segment names beyond rom.PrgSegment and rom.ChrSegment.
const (
	HeaderSegment  = "header"
	TrainerSegment = "trainer"
	ExtraSegment   = "extra"
)

// Info summarizes an iNES header.
type Info struct {
	Mapper   int
	PRGBanks int
	CHRBanks int
	Trainer  bool
	Extra    int
}

// Inspect parses an iNES image and returns its layout:
// header, optional trainer, PRG banks, optional CHR banks and any trailing
// bytes as a raw "extra" segment.
func Inspect(data []byte) (rom.Layout, Info, error) {
	if len(data) < headerSize {
		return nil, Info{}, fmt.Errorf("%w: ines header: image is %d bytes", rom.ErrLayout, len(data))
	}
	trainer := data[flagsByte]&trainerBit != 0

	// cartridge.LoadFile reads the trainer when the four-screen bit is set,
	// so hand it a header with that bit carrying the real trainer flag.
	fixed := make([]byte, len(data))
	copy(fixed, data)
	fixed[flagsByte] &^= fourScreenBit
	if trainer {
		fixed[flagsByte] |= fourScreenBit
	}

	cart, err := cartridge.LoadFile(bytes.NewReader(fixed))
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: ines header: %w", rom.ErrLayout, err)
	}
	if len(cart.PRG) == 0 || len(cart.PRG)%prgBankSize != 0 {
		return nil, Info{}, fmt.Errorf("%w: ines prg size 0x%x", rom.ErrLayout, len(cart.PRG))
	}

	info := Info{
		Mapper:   int(cart.Mapper),
		PRGBanks: len(cart.PRG) / prgBankSize,
		CHRBanks: len(cart.CHR) / chrBankSize,
		Trainer:  trainer,
	}

	layout := rom.Layout{rom.Raw(HeaderSegment, 0, headerSize, 0)}
	if info.Trainer {
		layout = append(layout, rom.Raw(TrainerSegment, layout.Size(), trainerSize, 0))
	}
	layout = append(layout, rom.Banked(rom.PrgSegment, layout.Size(), len(cart.PRG), prgBankSize, 0xff))
	if len(cart.CHR) > 0 {
		if len(cart.CHR)%chrBankSize != 0 {
			return nil, Info{}, fmt.Errorf("%w: ines chr size 0x%x", rom.ErrLayout, len(cart.CHR))
		}
		layout = append(layout, rom.Banked(rom.ChrSegment, layout.Size(), len(cart.CHR), chrBankSize, 0xff))
	}

	switch size := layout.Size(); {
	case len(data) > size:
		info.Extra = len(data) - size
		layout = append(layout, rom.Raw(ExtraSegment, size, info.Extra, 0))
	case len(data) < size:
		return nil, Info{}, fmt.Errorf("%w: ines image is 0x%x bytes, header describes 0x%x", rom.ErrLayout, len(data), size)
	}
	return layout, info, nil
}

// Layout returns just the layout of Inspect.
func Layout(data []byte) (rom.Layout, error) {
	layout, _, err := Inspect(data)
	return layout, err
}

// Header builds a 16 byte iNES header for the given bank counts and mapper.
func Header(prgBanks, chrBanks, mapper int) []byte {
	h := make([]byte, headerSize)
	copy(h, "NES\x1a")
	h[4] = byte(prgBanks)
	h[5] = byte(chrBanks)
	h[6] = byte(mapper&0x0f) << 4
	h[7] = byte(mapper & 0xf0)
	return h
}
