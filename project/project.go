package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/joshuapare/romkit/config"
	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/freespace"
)

// Append is the Commit index that appends after the last commit.
const Append = -1

// Options configures a Project.
type Options struct {
	// Configs resolves the configuration named by each commit. Required.
	Configs *config.Registry

	// Payloads decodes persisted payloads. Required by Load.
	Payloads *Registry

	// Logger receives pack and replay tracing. If nil, logging is discarded.
	Logger *slog.Logger

	// User is recorded in new commit metadata.
	// Default: the current OS user.
	User string

	// Clock stamps new commits.
	// Default: time.Now
	Clock func() time.Time
}

func (o Options) normalize() (Options, error) {
	if o.Configs == nil {
		return o, fmt.Errorf("%w: project has no configuration registry", rom.ErrConfig)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.User == "" {
		o.User = currentUser()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// Project is the ordered commit log. Index 0 is the root import.
type Project struct {
	edits []*Edit
	opts  Options
	stale int
}

// New creates a project whose root commit packs root with the named
// configuration.
func New(ctx context.Context, root Payload, configName string, opts Options) (*Project, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := opts.Configs.Get(configName); err != nil {
		return nil, err
	}
	p := &Project{opts: opts, stale: -1}
	p.edits = []*Edit{p.newEdit(root, configName)}
	if err := p.Replay(ctx, 0, -1); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) newEdit(payload Payload, configName string) *Edit {
	return &Edit{
		meta: Metadata{
			Label:     payload.Name(),
			User:      p.opts.User,
			Timestamp: p.opts.Clock().UnixMicro(),
			Config:    configName,
		},
		payload: payload,
		logger:  p.opts.Logger,
	}
}

// Len returns the number of commits.
func (p *Project) Len() int { return len(p.edits) }

// Get returns commit i. Negative indices count from the end; -1 is the last
// commit.
func (p *Project) Get(i int) (*Edit, error) {
	idx, err := p.index(i)
	if err != nil {
		return nil, err
	}
	return p.edits[idx], nil
}

// Last returns the newest commit.
func (p *Project) Last() *Edit { return p.edits[len(p.edits)-1] }

// Edits returns the commits in order.
func (p *Project) Edits() []*Edit {
	out := make([]*Edit, len(p.edits))
	copy(out, p.edits)
	return out
}

// Stale returns the first commit left inconsistent by a failed commit or
// replay.
func (p *Project) Stale() (int, bool) {
	return p.stale, p.stale >= 0
}

func (p *Project) index(i int) (int, error) {
	idx := i
	if idx < 0 {
		idx += len(p.edits)
	}
	if idx < 0 || idx >= len(p.edits) {
		return 0, fmt.Errorf("%w: %d of %d", ErrCommitIndex, i, len(p.edits))
	}
	return idx, nil
}

// Commit applies payload. With index Append it packs onto a clone of the
// last commit and appends, returning the new index. With an existing index it
// replaces that commit's payload, restamps it and replays from it to the end,
// returning index.
func (p *Project) Commit(ctx context.Context, index int, payload Payload) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if index == Append {
		last := p.Last()
		e := p.newEdit(payload, last.meta.Config)
		cfg, err := p.opts.Configs.Get(e.meta.Config)
		if err != nil {
			return 0, err
		}
		e.config = cfg
		e.rom = last.rom.Clone()
		e.memory = last.memory.Clone()
		if err := p.pack(len(p.edits), e); err != nil {
			return 0, err
		}
		p.edits = append(p.edits, e)
		return len(p.edits) - 1, nil
	}

	if index < 0 || index >= len(p.edits) {
		return 0, fmt.Errorf("%w: %d of %d", ErrCommitIndex, index, len(p.edits))
	}
	e := p.edits[index]
	e.payload = payload
	e.meta.User = p.opts.User
	e.meta.Timestamp = p.opts.Clock().UnixMicro()
	if err := p.Replay(ctx, index, -1); err != nil {
		return 0, err
	}
	return index, nil
}

// Replay re-packs commits start through end in increasing order. A negative
// end means the last commit.
func (p *Project) Replay(ctx context.Context, start, end int) error {
	if end < 0 {
		end = len(p.edits) - 1
	}
	if start < 0 || start > end || end >= len(p.edits) {
		return fmt.Errorf("%w: replay %d..%d of %d", ErrCommitIndex, start, end, len(p.edits))
	}
	for i := start; i <= end; i++ {
		if err := ctx.Err(); err != nil {
			p.markStale(i)
			return err
		}
		if err := p.replayOne(i); err != nil {
			p.markStale(i)
			return err
		}
	}
	if p.stale >= start && p.stale <= end {
		p.stale = end + 1
		if p.stale >= len(p.edits) {
			p.stale = -1
		}
	}
	return nil
}

func (p *Project) markStale(i int) {
	if p.stale < 0 || i < p.stale {
		p.stale = i
	}
}

func (p *Project) replayOne(i int) error {
	e := p.edits[i]
	cfg, err := p.opts.Configs.Get(e.meta.Config)
	if err != nil {
		return fmt.Errorf("commit %d (%s): %w", i, e.meta.Label, err)
	}
	e.config = cfg
	seg := cfg.FreeSpace.SegmentName()

	if i > 0 {
		prev := p.edits[i-1]
		e.rom = prev.rom.Clone()
		e.memory = prev.memory.Clone()
		return p.pack(i, e)
	}

	e.rom, err = rom.FromBytes(nil, nil)
	if err != nil {
		return err
	}
	e.memory = freespace.Empty(seg, freespace.WithLogger(p.opts.Logger))
	if err := p.pack(i, e); err != nil {
		return err
	}
	return p.seed(e)
}

// seed builds the root allocator from the configuration against the layout
// the root payload produced.
func (p *Project) seed(e *Edit) error {
	cfg := e.config.FreeSpace
	layout := e.rom.Layout()
	mem, err := freespace.New(cfg, layout, freespace.WithLogger(p.opts.Logger))
	if err != nil {
		unconfigured := len(cfg.FreeSpace) == 0 && len(cfg.Keepout) == 0
		if !unconfigured || !errors.Is(err, rom.ErrConfig) {
			return fmt.Errorf("commit 0 (%s): %w", e.meta.Label, err)
		}
		// The image has no governed segment and nothing asked for one.
		mem = freespace.Empty(cfg.SegmentName(), freespace.WithLogger(p.opts.Logger))
	}
	e.memory = mem
	return nil
}

func (p *Project) pack(i int, e *Edit) error {
	p.opts.Logger.Debug("pack", "index", i, "payload", e.payload.Kind(), "label", e.meta.Label)
	if err := e.payload.Pack(e); err != nil {
		return fmt.Errorf("commit %d (%s): %w", i, e.payload.Name(), err)
	}
	return nil
}

// Delete removes commit i and replays everything after it.
func (p *Project) Delete(ctx context.Context, i int) error {
	idx, err := p.index(i)
	if err != nil {
		return err
	}
	if idx == 0 {
		return ErrRootCommit
	}
	p.edits = append(p.edits[:idx], p.edits[idx+1:]...)
	if p.stale > idx {
		p.stale--
	}
	if idx >= len(p.edits) {
		if p.stale >= len(p.edits) {
			p.stale = -1
		}
		return nil
	}
	return p.Replay(ctx, idx, -1)
}

// ApplyActions performs every queued action in one batch: deletions first,
// then moves in commit order, then a single replay from the lowest affected
// index. Updates only mark their commit for replay. On a validation error
// nothing changes.
func (p *Project) ApplyActions(ctx context.Context) error {
	lowest := len(p.edits)
	order := make([]*Edit, 0, len(p.edits))
	var moves []*Edit
	for i, e := range p.edits {
		switch e.action.Kind {
		case ActionDelete, ActionMoveTo:
			if i == 0 {
				return fmt.Errorf("%w: %s", ErrRootCommit, e.action.Kind)
			}
			lowest = min(lowest, i)
			if e.action.Kind == ActionDelete {
				continue
			}
			moves = append(moves, e)
		case ActionUpdate:
			lowest = min(lowest, i)
		}
		order = append(order, e)
	}

	for _, e := range moves {
		to := e.action.Index
		if to <= 0 || to >= len(order) {
			return fmt.Errorf("%w: move to %d of %d", ErrCommitIndex, to, len(order))
		}
		from := indexOf(order, e)
		order = append(order[:from], order[from+1:]...)
		order = append(order[:to], append([]*Edit{e}, order[to:]...)...)
		lowest = min(lowest, from, to)
	}

	for _, e := range p.edits {
		e.action = NoAction
	}
	p.edits = order
	if lowest >= len(p.edits) {
		if p.stale >= len(p.edits) {
			p.stale = -1
		}
		return nil
	}
	p.opts.Logger.Debug("apply actions", "replay_from", lowest, "moves", len(moves))
	return p.Replay(ctx, lowest, -1)
}

func indexOf(edits []*Edit, e *Edit) int {
	for i, x := range edits {
		if x == e {
			return i
		}
	}
	return -1
}
