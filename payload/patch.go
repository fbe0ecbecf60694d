package payload

import (
	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
)

// Write is one run of bytes at an address.
type Write struct {
	Address rom.Address `json:"address"`
	Data    HexBytes    `json:"data"`
}

// Patch writes raw bytes.
type Patch struct {
	Label  string  `json:"label,omitempty"`
	Writes []Write `json:"writes"`
}

func (*Patch) Kind() string { return KindPatch }

func (p *Patch) Name() string {
	if p.Label != "" {
		return p.Label
	}
	return "Patch"
}

func (p *Patch) Pack(e *project.Edit) error {
	for _, w := range p.Writes {
		if err := e.ROM().WriteBytes(w.Address, w.Data); err != nil {
			return err
		}
	}
	return nil
}

// Unpack replaces each write's data with the bytes currently at its address.
func (p *Patch) Unpack(e *project.Edit) error {
	for i, w := range p.Writes {
		data, err := e.ROM().ReadBytes(w.Address, len(w.Data))
		if err != nil {
			return err
		}
		p.Writes[i].Data = data
	}
	return nil
}
