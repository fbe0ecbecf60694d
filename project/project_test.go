package project

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/romkit/config"
	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/freespace"
)

var errBoom = errors.New("boom")

// blankRoot builds the image from the configured layout.
type blankRoot struct{}

func (*blankRoot) Kind() string       { return "test.blank" }
func (*blankRoot) Name() string       { return "Blank" }
func (*blankRoot) Unpack(*Edit) error { return nil }
func (*blankRoot) Pack(e *Edit) error { return e.ROM().ApplyLayout(e.Config().Layout) }

// writeBytes stores Data at Address.
type writeBytes struct {
	Address rom.Address `json:"address"`
	Data    []byte      `json:"data"`
}

func (*writeBytes) Kind() string { return "test.write" }
func (*writeBytes) Name() string { return "Write" }
func (w *writeBytes) Pack(e *Edit) error {
	return e.ROM().WriteBytes(w.Address, w.Data)
}
func (w *writeBytes) Unpack(e *Edit) error {
	data, err := e.ROM().ReadBytes(w.Address, len(w.Data))
	if err != nil {
		return err
	}
	w.Data = data
	return nil
}

// allocFill allocates Length bytes in bank 0 and fills them with Value.
type allocFill struct {
	Length int  `json:"length"`
	Value  byte `json:"value"`
	Fail   bool `json:"fail,omitempty"`

	got rom.Address
}

func (*allocFill) Kind() string       { return "test.alloc" }
func (*allocFill) Name() string       { return "Alloc" }
func (*allocFill) Unpack(*Edit) error { return nil }
func (a *allocFill) Pack(e *Edit) error {
	if a.Fail {
		return errBoom
	}
	addr, err := e.Memory().AllocNear(rom.Prg(0, 0), a.Length)
	if err != nil {
		return err
	}
	a.got = addr
	return e.ROM().WriteBytes(addr, bytes.Repeat([]byte{a.Value}, a.Length))
}

func testConfig() config.Config {
	return config.Config{
		Name: "test",
		Layout: rom.Layout{
			rom.Raw("header", 0, 16, 0xff),
			rom.Banked(rom.PrgSegment, 16, 4*1024, 1024, 0x00),
		},
		FreeSpace: freespace.Config{
			FreeSpace: []freespace.AddressRange{{Address: rom.Prg(0, 0), Length: 1024}},
		},
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	configs, err := config.NewRegistry(testConfig(), config.Config{Name: "raw"})
	require.NoError(t, err)
	payloads, err := NewRegistry(
		func() Payload { return &blankRoot{} },
		func() Payload { return &writeBytes{} },
		func() Payload { return &allocFill{} },
	)
	require.NoError(t, err)
	now := time.UnixMicro(1_600_000_000_000_000)
	return Options{
		Configs:  configs,
		Payloads: payloads,
		User:     "tester",
		Clock: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	}
}

func newTestProject(t *testing.T) *Project {
	t.Helper()
	p, err := New(context.Background(), &blankRoot{}, "test", testOptions(t))
	require.NoError(t, err)
	return p
}

func commit(t *testing.T, p *Project, index int, payload Payload) int {
	t.Helper()
	i, err := p.Commit(context.Background(), index, payload)
	require.NoError(t, err)
	return i
}

func readBank0(t *testing.T, e *Edit, n int) []byte {
	t.Helper()
	b, err := e.ROM().ReadBytes(rom.Prg(0, 0), n)
	require.NoError(t, err)
	return b
}

func TestNew_RootCommit(t *testing.T) {
	p := newTestProject(t)
	require.Equal(t, 1, p.Len())

	root := p.Last()
	require.Equal(t, "Blank", root.Meta().Label)
	require.Equal(t, "tester", root.Meta().User)
	require.Equal(t, "test", root.Meta().Config)
	require.Equal(t, 16+4096, root.ROM().Len())
	require.Equal(t, 1024, root.Memory().Total())

	_, ok := p.Stale()
	require.False(t, ok)
}

func TestNew_UnknownConfig(t *testing.T) {
	_, err := New(context.Background(), &blankRoot{}, "missing", testOptions(t))
	require.ErrorIs(t, err, config.ErrNotFound)

	_, err = New(context.Background(), &blankRoot{}, "test", Options{})
	require.ErrorIs(t, err, rom.ErrConfig)
}

func TestNew_NoGovernedSegment(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, opts.Configs.Put(config.Config{
		Name:   "flat",
		Layout: rom.Layout{rom.Raw("data", 0, 64, 0)},
	}))
	p, err := New(context.Background(), &blankRoot{}, "flat", opts)
	require.NoError(t, err)
	require.Equal(t, 0, p.Last().Memory().Banks())

	_, err = p.Commit(context.Background(), Append, &allocFill{Length: 1})
	require.ErrorIs(t, err, freespace.ErrFreeSpace)
	require.Equal(t, 1, p.Len())
}

func TestCommit_Append(t *testing.T) {
	p := newTestProject(t)

	i := commit(t, p, Append, &writeBytes{Address: rom.Seg("header", 0), Data: []byte("NES\x1a")})
	require.Equal(t, 1, i)
	i = commit(t, p, Append, &allocFill{Length: 100, Value: 0xaa})
	require.Equal(t, 2, i)

	e, err := p.Get(1)
	require.NoError(t, err)
	require.Equal(t, "Write", e.Meta().Label)
	require.Equal(t, "test", e.Meta().Config)
	require.True(t, e.Meta().Time().After(p.edits[0].Meta().Time()))

	hdr, err := p.Last().ROM().ReadBytes(rom.File(0), 4)
	require.NoError(t, err)
	require.Equal(t, []byte("NES\x1a"), hdr)

	// Earlier commits keep their own buffers and allocators.
	root, err := p.Get(0)
	require.NoError(t, err)
	v, err := root.ROM().Read(rom.File(0))
	require.NoError(t, err)
	require.Equal(t, byte(0xff), v)
	require.Equal(t, 1024, root.Memory().Total())
	require.Equal(t, 924, p.Last().Memory().Total())
}

func TestCommit_IndexErrors(t *testing.T) {
	p := newTestProject(t)
	ctx := context.Background()

	_, err := p.Commit(ctx, 1, &writeBytes{})
	require.ErrorIs(t, err, ErrCommitIndex)
	_, err = p.Commit(ctx, -2, &writeBytes{})
	require.ErrorIs(t, err, ErrCommitIndex)
	_, err = p.Get(3)
	require.ErrorIs(t, err, ErrCommitIndex)
	require.ErrorIs(t, p.Replay(ctx, 1, -1), ErrCommitIndex)

	last, err := p.Get(-1)
	require.NoError(t, err)
	require.Same(t, p.Last(), last)
}

func TestCommit_AppendFailureDoesNotAppend(t *testing.T) {
	p := newTestProject(t)
	_, err := p.Commit(context.Background(), Append, &allocFill{Fail: true})
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "commit 1 (Alloc)")
	require.Equal(t, 1, p.Len())
}

func TestReplay_Deterministic(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &allocFill{Length: 10, Value: 1})
	commit(t, p, Append, &allocFill{Length: 20, Value: 2})
	commit(t, p, Append, &writeBytes{Address: rom.Prg(-1, 0x10), Data: []byte{9, 9}})

	var before []string
	for _, e := range p.Edits() {
		before = append(before, e.ROM().SHA256())
	}
	require.NoError(t, p.Replay(context.Background(), 0, -1))
	for i, e := range p.Edits() {
		require.Equal(t, before[i], e.ROM().SHA256(), "commit %d", i)
	}
}

func TestCommit_ReplacePropagates(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &allocFill{Length: 100, Value: 0xaa})
	second := &allocFill{Length: 50, Value: 0xbb}
	commit(t, p, Append, second)
	require.Equal(t, rom.Prg(0, 100), second.got)

	// Growing the first allocation moves the second one downstream.
	i := commit(t, p, 1, &allocFill{Length: 200, Value: 0xcc})
	require.Equal(t, 1, i)
	require.Equal(t, rom.Prg(0, 200), second.got)

	got := readBank0(t, p.Last(), 250)
	require.Equal(t, bytes.Repeat([]byte{0xcc}, 200), got[:200])
	require.Equal(t, bytes.Repeat([]byte{0xbb}, 50), got[200:])
	require.Equal(t, 1024-250, p.Last().Memory().Total())
}

func TestCommit_FailedReplayLeavesStale(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &allocFill{Length: 10, Value: 1})
	commit(t, p, Append, &allocFill{Length: 10, Value: 2})
	commit(t, p, Append, &allocFill{Length: 10, Value: 3})

	_, err := p.Commit(context.Background(), 2, &allocFill{Fail: true})
	require.ErrorIs(t, err, errBoom)
	stale, ok := p.Stale()
	require.True(t, ok)
	require.Equal(t, 2, stale)

	commit(t, p, 2, &allocFill{Length: 10, Value: 4})
	_, ok = p.Stale()
	require.False(t, ok)
	require.Equal(t, []byte{1, 4, 3}, []byte{
		readBank0(t, p.Last(), 30)[0],
		readBank0(t, p.Last(), 30)[10],
		readBank0(t, p.Last(), 30)[20],
	})
}

func TestReplay_Canceled(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &allocFill{Length: 10, Value: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Replay(ctx, 0, -1), context.Canceled)
	stale, ok := p.Stale()
	require.True(t, ok)
	require.Equal(t, 0, stale)

	require.NoError(t, p.Replay(context.Background(), 0, -1))
	_, ok = p.Stale()
	require.False(t, ok)
}

func TestDelete(t *testing.T) {
	p := newTestProject(t)
	ctx := context.Background()
	commit(t, p, Append, &allocFill{Length: 10, Value: 1})
	commit(t, p, Append, &allocFill{Length: 10, Value: 2})

	require.ErrorIs(t, p.Delete(ctx, 0), ErrRootCommit)
	require.ErrorIs(t, p.Delete(ctx, 5), ErrCommitIndex)

	require.NoError(t, p.Delete(ctx, 1))
	require.Equal(t, 2, p.Len())
	got := readBank0(t, p.Last(), 20)
	require.Equal(t, bytes.Repeat([]byte{2}, 10), got[:10])
	require.Equal(t, make([]byte, 10), got[10:])

	require.NoError(t, p.Delete(ctx, -1))
	require.Equal(t, 1, p.Len())
}

func TestApplyActions(t *testing.T) {
	p := newTestProject(t)
	for v := byte(1); v <= 4; v++ {
		commit(t, p, Append, &allocFill{Length: 4, Value: v})
	}

	edits := p.Edits()
	edits[2].SetAction(DeleteAction)
	edits[4].SetAction(MoveTo(1))
	require.NoError(t, p.ApplyActions(context.Background()))

	require.Equal(t, 4, p.Len())
	got := readBank0(t, p.Last(), 12)
	require.Equal(t, []byte{4, 4, 4, 4, 1, 1, 1, 1, 3, 3, 3, 3}, got)
	for _, e := range p.Edits() {
		require.Equal(t, ActionNone, e.Action().Kind)
	}
}

func TestApplyActions_Invalid(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &allocFill{Length: 4, Value: 1})
	commit(t, p, Append, &allocFill{Length: 4, Value: 2})

	p.edits[0].SetAction(DeleteAction)
	require.ErrorIs(t, p.ApplyActions(context.Background()), ErrRootCommit)
	require.Equal(t, 3, p.Len())

	p.edits[0].SetAction(NoAction)
	p.edits[1].SetAction(MoveTo(0))
	require.ErrorIs(t, p.ApplyActions(context.Background()), ErrCommitIndex)

	// Update alone re-packs from the marked commit.
	p.edits[1].SetAction(UpdateAction)
	p.edits[1].payload.(*allocFill).Value = 7
	require.NoError(t, p.ApplyActions(context.Background()))
	require.Equal(t, []byte{7, 7, 7, 7, 2, 2, 2, 2}, readBank0(t, p.Last(), 8))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	opts := testOptions(t)
	p, err := New(context.Background(), &blankRoot{}, "test", opts)
	require.NoError(t, err)
	commit(t, p, Append, &writeBytes{Address: rom.Prg(-1, 0x3f0), Data: []byte{0xde, 0xad}})
	commit(t, p, Append, &allocFill{Length: 33, Value: 0x5a})
	p.Last().SetComment("filled")

	path := t.TempDir() + "/demo.json"
	require.NoError(t, p.SaveFile(path))

	loaded, err := LoadFile(context.Background(), path, opts)
	require.NoError(t, err)
	require.Equal(t, p.Len(), loaded.Len())
	for i := range p.Edits() {
		a, b := p.edits[i], loaded.edits[i]
		require.Equal(t, a.Meta(), b.Meta())
		require.Equal(t, a.ROM().SHA256(), b.ROM().SHA256(), "commit %d", i)
		require.Equal(t, a.Memory().Ranges(), b.Memory().Ranges())
	}
	require.Equal(t, "filled", loaded.Last().Meta().Comment)
}

func TestSave_Format(t *testing.T) {
	p := newTestProject(t)
	commit(t, p, Append, &writeBytes{Address: rom.File(1), Data: []byte{1}})

	var out bytes.Buffer
	require.NoError(t, p.Save(&out))
	s := out.String()
	require.Contains(t, s, `"version": 1`)
	require.Contains(t, s, `"type": "test.write"`)
	require.Contains(t, s, `"address": "file:0x1"`)
}

func TestLoad_Errors(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	_, err := Load(ctx, strings.NewReader(`{"version":2,"edits":[]}`), opts)
	require.ErrorIs(t, err, ErrVersion)

	_, err = Load(ctx, strings.NewReader(`{"version":1,"edits":[]}`), opts)
	require.ErrorIs(t, err, ErrCommitIndex)

	_, err = Load(ctx, strings.NewReader(`{"version":1,"edits":[{"meta":{"config":"test"},"payload":{"type":"nope","data":{}}}]}`), opts)
	require.ErrorIs(t, err, ErrUnknownPayload)

	_, err = Load(ctx, strings.NewReader(`{"version":1,"edits":[{"meta":{"config":"gone"},"payload":{"type":"test.blank","data":{}}}]}`), opts)
	require.ErrorIs(t, err, config.ErrNotFound)

	opts.Payloads = nil
	_, err = Load(ctx, strings.NewReader(`{}`), opts)
	require.ErrorIs(t, err, ErrUnknownPayload)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(func() Payload { return &writeBytes{} })
	require.NoError(t, err)
	require.Error(t, r.Register(func() Payload { return &writeBytes{} }))
	require.Equal(t, []string{"test.write"}, r.Kinds())

	data, err := MarshalPayload(&writeBytes{Address: rom.Prg(1, 0x8000), Data: []byte{1, 2}})
	require.NoError(t, err)
	back, err := r.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, &writeBytes{Address: rom.Prg(1, 0x8000), Data: []byte{1, 2}}, back)
}
