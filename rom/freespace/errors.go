package freespace

import (
	"errors"
	"fmt"

	"github.com/joshuapare/romkit/rom"
)

var (
	// ErrOutOfMemory indicates no free range satisfies an allocation request.
	ErrOutOfMemory = errors.New("freespace: out of memory")

	// ErrFreeSpace indicates a register/free would double-free, or an address
	// outside the governed segment.
	ErrFreeSpace = errors.New("freespace: invalid range")
)

// OutOfMemoryError reports the bank an allocation failed in.
type OutOfMemoryError struct {
	Bank   int
	Length int
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("freespace: out of memory in bank %d (need %d bytes)", e.Bank, e.Length)
}

// Is matches ErrOutOfMemory.
func (e *OutOfMemoryError) Is(target error) bool {
	return target == ErrOutOfMemory
}

// KeepoutError reports a configured free range overlapping a keepout region.
// It matches rom.ErrConfig.
type KeepoutError struct {
	Free    AddressRange
	Keepout AddressRange
}

func (e *KeepoutError) Error() string {
	return fmt.Sprintf("freespace range (%s, %d) overlaps keepout region (%s, %d)",
		e.Free.Address, e.Free.Length, e.Keepout.Address, e.Keepout.Length)
}

// Unwrap returns rom.ErrConfig.
func (e *KeepoutError) Unwrap() error {
	return rom.ErrConfig
}
