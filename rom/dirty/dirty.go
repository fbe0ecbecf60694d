// Package dirty tracks the byte ranges written into a ROM buffer.
//
// Every buffer owns one Tracker. Writes append a range; Coalesced sorts and
// merges them into the non-overlapping set of spans that differ from the
// buffer's clone source. The set drives per-commit change reports and IPS
// patch export.
package dirty

import (
	"golang.org/x/exp/slices"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 16

// Range represents a written byte range (absolute file offsets).
type Range struct {
	Off int `json:"off"` // Absolute offset in the buffer
	Len int `json:"len"` // Length in bytes
}

// End returns the exclusive end offset of the range.
func (r Range) End() int {
	return r.Off + r.Len
}

// Tracker accumulates written ranges.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges []Range
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ranges: make([]Range, 0, defaultRangeCapacity)}
}

// Add records a written range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: off, Len: length})
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Empty reports whether nothing has been written since the last reset.
func (t *Tracker) Empty() bool {
	return len(t.ranges) == 0
}

// Ranges returns the raw, uncoalesced ranges in write order.
func (t *Tracker) Ranges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// Coalesced returns the written ranges sorted by offset with overlapping and
// adjacent ranges merged.
func (t *Tracker) Coalesced() []Range {
	return Coalesce(t.ranges)
}

// Coalesce sorts a copy of ranges and merges overlapping/adjacent entries.
func Coalesce(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	slices.SortFunc(sorted, func(a, b Range) bool {
		return a.Off < b.Off
	})

	merged := make([]Range, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Off <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Off
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
