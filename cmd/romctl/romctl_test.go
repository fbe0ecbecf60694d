package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/romkit/project"
	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/freespace"
)

const testConfig = `name: game
freespace:
  freespace:
    - {address: "prg:0:0xbf00", length: 256}
  keepout:
    - {address: "prg:-1:0xfffa", length: 6}
`

// newProject creates a project over a fresh test ROM and returns its path.
func newProject(t *testing.T, dir string) string {
	t.Helper()
	projectPath := filepath.Join(dir, "game.json")
	_, err := captureOutput(t, func() error {
		return runNew(context.Background(), []string{projectPath, writeROM(t, dir)})
	})
	require.NoError(t, err)
	return projectPath
}

// patchFile writes a patch payload document.
func patchFile(t *testing.T, dir, name, address, data string) string {
	t.Helper()
	doc := fmt.Sprintf(`{"type": "patch", "data": {"writes": [{"address": %q, "data": %q}]}}`, address, data)
	return writeFile(t, dir, name, doc)
}

func commitFile(t *testing.T, projectPath, payloadPath string) {
	t.Helper()
	_, err := captureOutput(t, func() error {
		return runCommit(context.Background(), []string{projectPath, payloadPath})
	})
	require.NoError(t, err)
}

// exportPrg exports the last image and returns its first n PRG bytes.
func exportPrg(t *testing.T, projectPath string, n int) []byte {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.nes")
	_, err := captureOutput(t, func() error {
		return runExport(context.Background(), []string{projectPath, out})
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data[16 : 16+n]
}

func readLog(t *testing.T, projectPath string) []logEntry {
	t.Helper()
	jsonOut = true
	defer func() { jsonOut = false }()
	output, err := captureOutput(t, func() error {
		return runLog(context.Background(), []string{projectPath})
	})
	require.NoError(t, err)
	var entries []logEntry
	require.NoError(t, json.Unmarshal([]byte(output), &entries))
	return entries
}

func TestNew(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "game.json")
	romPath := writeROM(t, dir)

	output, err := captureOutput(t, func() error {
		return runNew(context.Background(), []string{projectPath, romPath})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"Created " + projectPath, "config nes", "SHA256:"})

	entries := readLog(t, projectPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "import_rom", entries[0].Kind)
	assert.Equal(t, "nes", entries[0].Config)

	// Refuses to overwrite without --force.
	_, err = captureOutput(t, func() error {
		return runNew(context.Background(), []string{projectPath, romPath})
	})
	require.ErrorContains(t, err, "already exists")

	newForce = true
	newComment = "fresh start"
	_, err = captureOutput(t, func() error {
		return runNew(context.Background(), []string{projectPath, romPath})
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh start", readLog(t, projectPath)[0].Comment)
}

func TestNew_BlankNeedsLayout(t *testing.T) {
	resetFlags()
	projectPath := filepath.Join(t.TempDir(), "blank.json")
	_, err := captureOutput(t, func() error {
		return runNew(context.Background(), []string{projectPath})
	})
	require.ErrorIs(t, err, rom.ErrLayout)
	assert.NoFileExists(t, projectPath)
}

func TestInfo(t *testing.T) {
	resetFlags()
	romPath := writeROM(t, t.TempDir())

	output, err := captureOutput(t, func() error { return runInfo([]string{romPath}) })
	require.NoError(t, err)
	assertContains(t, output, []string{"PRG banks: 2", "CHR banks: 1", "header", "prg", "chr"})

	jsonOut = true
	output, err = captureOutput(t, func() error { return runInfo([]string{romPath}) })
	require.NoError(t, err)
	assertJSON(t, output)
	var res infoResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, 16+2*16*1024+8*1024, res.Size)
	require.Len(t, res.Layout, 3)
	assert.Equal(t, rom.SegmentBanked, res.Layout[1].Kind)

	_, err = captureOutput(t, func() error {
		return runInfo([]string{writeFile(t, t.TempDir(), "junk.nes", "junk")})
	})
	require.ErrorIs(t, err, rom.ErrLayout)
}

func TestCommit(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)

	commitLabel = "Reset vector"
	commitComment = "clear A"
	output, err := captureOutput(t, func() error {
		return runCommit(context.Background(), []string{projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "a9 00")})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"Committed 1: Reset vector"})
	assert.Equal(t, []byte{0xa9, 0x00}, exportPrg(t, projectPath, 2))

	entries := readLog(t, projectPath)
	require.Len(t, entries, 2)
	assert.Equal(t, "patch", entries[1].Kind)
	assert.Equal(t, "clear A", entries[1].Comment)
	assert.Equal(t, 2, entries[1].Changed)
}

func TestCommit_ReplaceReplaysLaterCommits(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "01"))
	commitFile(t, projectPath, patchFile(t, dir, "b.json", "prg:0:0x8000", "02"))
	assert.Equal(t, []byte{0x02, 0xea}, exportPrg(t, projectPath, 2))

	commitAt = 1
	commitFile(t, projectPath, patchFile(t, dir, "c.json", "prg:0:0x8001", "03"))
	assert.Equal(t, []byte{0x02, 0x03}, exportPrg(t, projectPath, 2))
	assert.Len(t, readLog(t, projectPath), 3)
}

func TestCommit_Errors(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	before, err := os.ReadFile(projectPath)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		at      int
		wantErr error
	}{
		{
			name:    "out of bounds",
			payload: patchFile(t, dir, "oob.json", "prg:2:0x8000", "00"),
			at:      project.Append,
			wantErr: rom.ErrAddressBound,
		},
		{
			name:    "unknown kind",
			payload: writeFile(t, dir, "unknown.json", `{"type": "nope", "data": {}}`),
			at:      project.Append,
			wantErr: project.ErrUnknownPayload,
		},
		{
			name:    "bad index",
			payload: patchFile(t, dir, "ok.json", "prg:0:0x8000", "00"),
			at:      7,
			wantErr: project.ErrCommitIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commitAt = tt.at
			_, err := captureOutput(t, func() error {
				return runCommit(context.Background(), []string{projectPath, tt.payload})
			})
			require.ErrorIs(t, err, tt.wantErr)

			after, err := os.ReadFile(projectPath)
			require.NoError(t, err)
			assert.Equal(t, before, after, "failed commit must not be saved")
		})
	}
}

func TestIPS_RoundTrip(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "a9 00 8d"))
	commitFile(t, projectPath, patchFile(t, dir, "b.json", "chr:0:0x0010", "ff ff"))

	patchPath := filepath.Join(dir, "game.ips")
	output, err := captureOutput(t, func() error {
		return runIPS(context.Background(), []string{projectPath, patchPath})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"2 record(s)"})

	// The patch reproduces the last image on a fresh project.
	other := filepath.Join(t.TempDir(), "other.json")
	_, err = captureOutput(t, func() error {
		return runNew(context.Background(), []string{other, writeROM(t, t.TempDir())})
	})
	require.NoError(t, err)
	commitFile(t, other, patchPath)

	jsonOut = true
	output, err = captureOutput(t, func() error { return runVerify(context.Background(), []string{projectPath}) })
	require.NoError(t, err)
	var want []verifyEntry
	require.NoError(t, json.Unmarshal([]byte(output), &want))
	jsonOut = false

	verifySHA256 = want[len(want)-1].SHA256
	_, err = captureOutput(t, func() error { return runVerify(context.Background(), []string{other}) })
	require.NoError(t, err)
}

func TestIPS_Dirty(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "a9 00"))
	// Rewrites a byte with its current value: invisible to a diff.
	commitFile(t, projectPath, patchFile(t, dir, "b.json", "prg:1:0x8000", "ea"))

	ipsFrom, ipsIndex = 1, 2
	jsonOut = true
	output, err := captureOutput(t, func() error {
		return runIPS(context.Background(), []string{projectPath, filepath.Join(dir, "diff.ips")})
	})
	require.NoError(t, err)
	assert.Contains(t, output, `"records": 0`)

	ipsDirty = true
	output, err = captureOutput(t, func() error {
		return runIPS(context.Background(), []string{projectPath, filepath.Join(dir, "dirty.ips")})
	})
	require.NoError(t, err)
	assert.Contains(t, output, `"records": 1`)
}

func TestDeleteAndMove(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "01"))
	commitFile(t, projectPath, patchFile(t, dir, "b.json", "prg:0:0x8000", "02"))
	commitFile(t, projectPath, patchFile(t, dir, "c.json", "prg:0:0x8001", "03"))
	assert.Equal(t, []byte{0x02, 0x03}, exportPrg(t, projectPath, 2))

	// Move "b" before "a": "a" now wins.
	_, err := captureOutput(t, func() error {
		return runMove(context.Background(), []string{projectPath, "2", "1"})
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03}, exportPrg(t, projectPath, 2))

	output, err := captureOutput(t, func() error {
		return runDelete(context.Background(), []string{projectPath, "2", "-1"})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"Deleted 2 commit(s), 2 remaining"})
	assert.Equal(t, []byte{0x02, 0xea}, exportPrg(t, projectPath, 2))

	_, err = captureOutput(t, func() error {
		return runDelete(context.Background(), []string{projectPath, "0"})
	})
	require.ErrorIs(t, err, project.ErrRootCommit)

	_, err = captureOutput(t, func() error {
		return runMove(context.Background(), []string{projectPath, "1", "5"})
	})
	require.ErrorIs(t, err, project.ErrCommitIndex)

	_, err = captureOutput(t, func() error {
		return runDelete(context.Background(), []string{projectPath, "x"})
	})
	require.ErrorContains(t, err, "invalid commit index")
}

func TestFreespace(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	configFile = writeFile(t, dir, "game.yaml", testConfig)
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, writeFile(t, dir, "free.json",
		`{"type": "free", "data": {"ranges": [{"address": "prg:1:0x8000", "length": 16}]}}`))

	jsonOut = true
	output, err := captureOutput(t, func() error {
		return runFreespace(context.Background(), []string{projectPath})
	})
	require.NoError(t, err)
	var res freespaceResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, rom.PrgSegment, res.Segment)
	assert.Equal(t, 2, res.Banks)
	assert.Equal(t, 272, res.Total)
	assert.Equal(t, []freespace.Range{
		{Bank: 0, Start: 0xbf00, Length: 256},
		{Bank: 1, Start: 0x8000, Length: 16},
	}, res.Ranges)

	// The root commit only has the configured range.
	freespaceIndex, freespaceBank = 0, 0
	output, err = captureOutput(t, func() error {
		return runFreespace(context.Background(), []string{projectPath})
	})
	require.NoError(t, err)
	res = freespaceResult{}
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 256, res.Total)

	freespaceBank = 9
	_, err = captureOutput(t, func() error {
		return runFreespace(context.Background(), []string{projectPath})
	})
	require.ErrorIs(t, err, freespace.ErrFreeSpace)
}

func TestProjectNeedsItsConfig(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	configFile = writeFile(t, dir, "game.yaml", testConfig)
	projectPath := newProject(t, dir)

	configFile = ""
	_, err := captureOutput(t, func() error { return runLog(context.Background(), []string{projectPath}) })
	require.ErrorIs(t, err, rom.ErrConfig)
}

func TestVerify(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	projectPath := newProject(t, dir)
	commitFile(t, projectPath, patchFile(t, dir, "a.json", "prg:0:0x8000", "01"))

	output, err := captureOutput(t, func() error { return runVerify(context.Background(), []string{projectPath}) })
	require.NoError(t, err)
	assertContains(t, output, []string{"ImportRom", "Patch", "Replayed 2 commit(s) OK"})

	verifySHA256 = "00"
	_, err = captureOutput(t, func() error { return runVerify(context.Background(), []string{projectPath}) })
	require.ErrorContains(t, err, "digest mismatch")
}

func TestExport_Flags(t *testing.T) {
	resetFlags()
	projectPath := newProject(t, t.TempDir())

	_, err := captureOutput(t, func() error { return runExport(context.Background(), []string{projectPath}) })
	require.ErrorContains(t, err, "must specify output file")

	exportStdout = true
	_, err = captureOutput(t, func() error {
		return runExport(context.Background(), []string{projectPath, "out.nes"})
	})
	require.ErrorContains(t, err, "cannot specify both")
}

func TestVersion(t *testing.T) {
	output, err := captureOutput(t, func() error {
		versionCmd.Run(versionCmd, nil)
		return nil
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"romctl dev", "commit: none"})
}
