package payload

import "github.com/joshuapare/romkit/project"

// Payload kinds as written to project files.
const (
	KindImportRom = "import_rom"
	KindBlank     = "blank"
	KindPatch     = "patch"
	KindText      = "text"
	KindIPS       = "ips"
	KindExpand    = "expand"
	KindFree      = "free"
)

// NewRegistry returns a registry holding every payload in this package.
func NewRegistry() (*project.Registry, error) {
	return project.NewRegistry(
		func() project.Payload { return &ImportRom{} },
		func() project.Payload { return &Blank{} },
		func() project.Payload { return &Patch{} },
		func() project.Payload { return &Text{} },
		func() project.Payload { return &IPS{} },
		func() project.Payload { return &Expand{} },
		func() project.Payload { return &Free{} },
	)
}
