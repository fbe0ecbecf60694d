// Package config holds named ROM configurations: the layout an image is read
// with and the free space the allocator starts from.
//
// Configurations live in an explicit Registry that callers construct and pass
// to the project engine. Files are YAML, with addresses in their text form:
//
//	name: mygame
//	layout:
//	  - {kind: raw, name: header, offset: 0, length: 16, fill: 0xff}
//	  - {kind: banked, name: prg, offset: 16, length: 131072, banksize: 16384, mask: 0x3fff, fill: 0xff}
//	freespace:
//	  freespace:
//	    - {address: "prg:0:0xbe00", length: 512}
//	  keepout:
//	    - {address: "prg:-1:0xfff0", length: 16}
package config

import (
	"errors"
	"fmt"

	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/freespace"
)

// ErrNotFound indicates a configuration name missing from a Registry. It
// matches rom.ErrConfig.
var ErrNotFound = fmt.Errorf("%w: not found", rom.ErrConfig)

// iNES geometry.
const (
	NESHeaderSize = 16
	NESPrgBank    = 16 * 1024
	NESChrBank    = 8 * 1024
)

// Config describes how to interpret one kind of image.
type Config struct {
	Name string `json:"name" yaml:"name"`

	// Layout of the image. Empty means the layout is derived from the image
	// when it is imported.
	Layout rom.Layout `json:"layout,omitempty" yaml:"layout,omitempty"`

	// FreeSpace seeds the allocator of the root commit.
	FreeSpace freespace.Config `json:"freespace" yaml:"freespace"`
}

// NES returns a configuration for a plain iNES image with the given bank
// counts. A zero chrBanks omits the CHR segment.
func NES(name string, prgBanks, chrBanks int) Config {
	layout := rom.Layout{
		rom.Raw("header", 0, NESHeaderSize, 0),
		rom.Banked(rom.PrgSegment, NESHeaderSize, prgBanks*NESPrgBank, NESPrgBank, 0xff),
	}
	if chrBanks > 0 {
		layout = append(layout, rom.Banked(rom.ChrSegment, layout.Size(), chrBanks*NESChrBank, NESChrBank, 0xff))
	}
	return Config{Name: name, Layout: layout}
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	out.Layout = c.Layout.Clone()
	out.FreeSpace.FreeSpace = append([]freespace.AddressRange(nil), c.FreeSpace.FreeSpace...)
	out.FreeSpace.Keepout = append([]freespace.AddressRange(nil), c.FreeSpace.Keepout...)
	return out
}

// Validate checks the layout and, when the layout is known, that the
// configured free space fits the governed segment and avoids every keepout
// region.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: configuration has no name", rom.ErrConfig)
	}
	if len(c.Layout) == 0 {
		return nil
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: config %q: %w", rom.ErrConfig, c.Name, err)
	}
	if len(c.FreeSpace.FreeSpace) == 0 && len(c.FreeSpace.Keepout) == 0 {
		return nil
	}
	if _, err := freespace.New(c.FreeSpace, c.Layout); err != nil {
		if errors.Is(err, rom.ErrConfig) {
			return fmt.Errorf("config %q: %w", c.Name, err)
		}
		return fmt.Errorf("%w: config %q: %w", rom.ErrConfig, c.Name, err)
	}
	return nil
}
