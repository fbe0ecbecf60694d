package payload

import (
	"fmt"
	"os"

	"github.com/joshuapare/romkit/internal/nesfile"
	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
)

// ImportRom is a root payload that loads an image from disk. The layout comes
// from the commit's configuration, or from the iNES header when the
// configuration has none.
type ImportRom struct {
	Filename string `json:"filename"`

	// SHA256, when set, must match the file's digest.
	SHA256 string `json:"sha256,omitempty"`
}

// NewImportRom returns an import of filename pinned to its current digest.
func NewImportRom(filename string) (*ImportRom, error) {
	b, err := rom.FromFile(filename, nil)
	if err != nil {
		return nil, err
	}
	return &ImportRom{Filename: filename, SHA256: b.SHA256()}, nil
}

func (*ImportRom) Kind() string { return KindImportRom }
func (*ImportRom) Name() string { return "ImportRom" }

func (p *ImportRom) Pack(e *project.Edit) error {
	data, err := os.ReadFile(p.Filename)
	if err != nil {
		return fmt.Errorf("import %s: %w", p.Filename, err)
	}
	layout := e.Config().Layout
	if len(layout) == 0 {
		if layout, err = nesfile.Layout(data); err != nil {
			return fmt.Errorf("import %s: %w", p.Filename, err)
		}
	}
	b, err := rom.FromBytes(data, layout)
	if err != nil {
		return fmt.Errorf("import %s: %w", p.Filename, err)
	}
	if p.SHA256 != "" && b.SHA256() != p.SHA256 {
		return fmt.Errorf("%w: %s is %s, want %s", ErrChecksum, p.Filename, b.SHA256(), p.SHA256)
	}
	e.Logger().Debug("import rom", "file", p.Filename, "size", b.Len(), "segments", len(layout))
	e.SetROM(b)
	return nil
}

func (*ImportRom) Unpack(*project.Edit) error { return nil }
