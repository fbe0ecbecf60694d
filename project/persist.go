package project

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/romkit/internal/durable"
)

// FileVersion is the project file format written by Save.
const FileVersion = 1

type fileFormat struct {
	Version int        `json:"version"`
	Edits   []fileEdit `json:"edits"`
}

type fileEdit struct {
	Meta    Metadata        `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// Save writes the commit log as indented JSON. Buffers are not written.
func (p *Project) Save(w io.Writer) error {
	out := fileFormat{Version: FileVersion, Edits: make([]fileEdit, 0, len(p.edits))}
	for i, e := range p.edits {
		data, err := MarshalPayload(e.payload)
		if err != nil {
			return fmt.Errorf("save commit %d: %w", i, err)
		}
		out.Edits = append(out.Edits, fileEdit{Meta: e.meta, Payload: data})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// SaveFile writes the project to path, replacing it atomically.
func (p *Project) SaveFile(path string) error {
	if err := durable.Write(path, 0o644, p.Save); err != nil {
		return fmt.Errorf("save project %s: %w", path, err)
	}
	return nil
}

// Load reads a commit log written by Save and rebuilds every buffer by
// replaying from the root.
func Load(ctx context.Context, r io.Reader, opts Options) (*Project, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if opts.Payloads == nil {
		return nil, fmt.Errorf("%w: no payload registry", ErrUnknownPayload)
	}

	var in fileFormat
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if in.Version != FileVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, in.Version)
	}
	if len(in.Edits) == 0 {
		return nil, fmt.Errorf("load project: %w: no commits", ErrCommitIndex)
	}

	p := &Project{opts: opts, stale: -1}
	for i, fe := range in.Edits {
		payload, err := opts.Payloads.Unmarshal(fe.Payload)
		if err != nil {
			return nil, fmt.Errorf("load commit %d: %w", i, err)
		}
		p.edits = append(p.edits, &Edit{meta: fe.Meta, payload: payload, logger: opts.Logger})
	}
	if err := p.Replay(ctx, 0, -1); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile opens path and calls Load.
func LoadFile(ctx context.Context, path string, opts Options) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	defer f.Close()
	return Load(ctx, f, opts)
}
