package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/romkit/internal/nesfile"
	"github.com/joshuapare/romkit/project"
)

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	configFile, logLevel, logFile, logJSON = "", "warn", "", false
	newForce, newComment = false, ""
	commitAt, commitLabel, commitComment = project.Append, "", ""
	exportIndex, exportStdout = -1, false
	ipsIndex, ipsFrom, ipsDirty = -1, 0, false
	freespaceIndex, freespaceBank = -1, -1
	verifySHA256 = ""
}

// writeROM writes a 2 PRG / 1 CHR bank iNES image to dir.
func writeROM(t *testing.T, dir string) string {
	t.Helper()
	var img bytes.Buffer
	img.Write(nesfile.Header(2, 1, 0))
	img.Write(bytes.Repeat([]byte{0xea}, 2*16*1024))
	img.Write(bytes.Repeat([]byte{0x00}, 8*1024))
	path := filepath.Join(dir, "game.nes")
	if err := os.WriteFile(path, img.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write rom: %v", err)
	}
	return path
}

// writeFile writes content to name under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	// Save original stdout
	origStdout := os.Stdout

	// Create a pipe to capture output
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	// Redirect stdout to pipe
	os.Stdout = w

	// Run function
	fnErr := fn()

	// Close write end and restore stdout
	w.Close()
	os.Stdout = origStdout

	// Read captured output
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
