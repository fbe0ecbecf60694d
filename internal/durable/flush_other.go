//go:build !linux && !freebsd && !darwin && !windows

package durable

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
