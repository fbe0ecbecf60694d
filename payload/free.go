package payload

import (
	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom/freespace"
)

// Free declares ranges of the governed segment as free space.
type Free struct {
	Ranges []freespace.AddressRange `json:"ranges"`
}

func (*Free) Kind() string { return KindFree }
func (*Free) Name() string { return "Free" }

func (f *Free) Pack(e *project.Edit) error {
	for _, r := range f.Ranges {
		if err := e.Memory().Free(r.Address, r.Length); err != nil {
			return err
		}
	}
	return nil
}

func (*Free) Unpack(*project.Edit) error { return nil }
