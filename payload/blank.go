package payload

import (
	"fmt"

	"github.com/joshuapare/romkit/project"
)

// Blank is a root payload that builds an image from the configured layout,
// every segment filled with its fill byte.
type Blank struct{}

func (*Blank) Kind() string { return KindBlank }
func (*Blank) Name() string { return "Blank" }

func (*Blank) Pack(e *project.Edit) error {
	if err := e.ROM().ApplyLayout(e.Config().Layout); err != nil {
		return fmt.Errorf("blank image: %w", err)
	}
	return nil
}

func (*Blank) Unpack(*project.Edit) error { return nil }
