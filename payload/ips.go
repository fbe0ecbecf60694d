package payload

import (
	"fmt"
	"os"

	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/ips"
)

// IPS applies an IPS patch through file addresses. Records must stay inside
// the current image.
type IPS struct {
	Label string `json:"label,omitempty"`
	Patch []byte `json:"patch"`
}

// NewIPS reads an IPS patch file.
func NewIPS(path string) (*IPS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := ips.Decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &IPS{Label: path, Patch: data}, nil
}

func (*IPS) Kind() string { return KindIPS }

func (p *IPS) Name() string {
	if p.Label != "" {
		return "IPS " + p.Label
	}
	return "IPS"
}

func (p *IPS) Pack(e *project.Edit) error {
	patch, err := ips.Decode(p.Patch)
	if err != nil {
		return err
	}
	b := e.ROM()
	if size := patch.Size(); size > b.Len() {
		return fmt.Errorf("%w: ips patch needs 0x%x bytes, image has 0x%x", rom.ErrLength, size, b.Len())
	}
	for _, r := range patch.Records {
		if err := b.WriteBytes(rom.File(uint(r.Offset)), r.Data); err != nil {
			return err
		}
	}
	return nil
}

func (*IPS) Unpack(*project.Edit) error { return nil }
