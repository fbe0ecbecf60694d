package freespace

import (
	"fmt"

	"github.com/joshuapare/romkit/rom"
)

// AddressRange is a configured span: a start address and a length in bytes.
type AddressRange struct {
	Address rom.Address `json:"address" yaml:"address"`
	Length  int         `json:"length" yaml:"length"`
}

// Config declares the free space available at start of day and the regions
// that must never be handed out.
type Config struct {
	// Segment is the banked segment the allocator governs. Defaults to "prg".
	Segment   string         `json:"segment,omitempty" yaml:"segment,omitempty"`
	FreeSpace []AddressRange `json:"freespace" yaml:"freespace"`
	Keepout   []AddressRange `json:"keepout,omitempty" yaml:"keepout,omitempty"`
}

// SegmentName returns the governed segment, applying the default.
func (c Config) SegmentName() string {
	if c.Segment == "" {
		return rom.PrgSegment
	}
	return c.Segment
}

// CheckKeepout verifies that no configured free range overlaps a keepout
// region of the governed segment. Keepout regions in other segments cannot
// collide with free space and are ignored.
func (c Config) CheckKeepout(layout rom.Layout) error {
	fs, err := newEmpty(c.SegmentName(), layout, nil)
	if err != nil {
		return err
	}
	for _, ko := range c.Keepout {
		k, err := fs.toRange(ko.Address, ko.Length)
		if err != nil {
			continue
		}
		for _, fr := range c.FreeSpace {
			f, err := fs.toRange(fr.Address, fr.Length)
			if err != nil {
				return fmt.Errorf("%w: freespace range (%s, %d): %w", rom.ErrConfig, fr.Address, fr.Length, err)
			}
			if fs.intersects(f, k) {
				return &KeepoutError{Free: fr, Keepout: ko}
			}
		}
	}
	return nil
}
