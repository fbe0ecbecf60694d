package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative values, returning ok = false when
// either operand is negative or the result would overflow int.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// UintToInt converts v to int, returning ok = false when it does not fit.
func UintToInt(v uint) (int, bool) {
	if v > math.MaxInt {
		return 0, false
	}
	return int(v), true
}

// CheckRange validates that [offset, offset+length) lies inside [start, end).
// Returns the end offset if valid.
//
//	endOff, err := buf.CheckRange(0, len(data), off, n)
//	if err != nil {
//	    return fmt.Errorf("segment: %w", err)
//	}
func CheckRange(start, end, offset, length int) (int, error) {
	if offset < start {
		return 0, fmt.Errorf("offset %d before start %d", offset, start)
	}
	if length < 0 {
		return 0, fmt.Errorf("negative length: %d", length)
	}
	endOffset, ok := AddOverflowSafe(offset, length)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + length=%d", offset, length)
	}
	if endOffset > end {
		return 0, fmt.Errorf("bounds: end=%d > limit=%d", endOffset, end)
	}
	return endOffset, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
