package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(16, 1024); !ok || p != 16384 {
		t.Fatalf("MulOverflowSafe(16,1024)=%d,%v want 16384,true", p, ok)
	}
	if _, ok := MulOverflowSafe(math.MaxInt, 2); ok {
		t.Fatalf("expected overflow")
	}
	if _, ok := MulOverflowSafe(-1, 2); ok {
		t.Fatalf("negative operands should be rejected")
	}
}

func TestUintToInt(t *testing.T) {
	if v, ok := UintToInt(42); !ok || v != 42 {
		t.Fatalf("UintToInt(42)=%d,%v", v, ok)
	}
	if _, ok := UintToInt(math.MaxUint); ok {
		t.Fatalf("MaxUint should not fit in int")
	}
}

func TestCheckRange(t *testing.T) {
	if end, err := CheckRange(16, 32, 20, 12); err != nil || end != 32 {
		t.Fatalf("CheckRange = %d, %v want 32, nil", end, err)
	}
	if _, err := CheckRange(16, 32, 20, 13); err == nil {
		t.Fatalf("CheckRange should fail past the limit")
	}
	if _, err := CheckRange(16, 32, 8, 1); err == nil {
		t.Fatalf("CheckRange should fail before the start")
	}
	if _, err := CheckRange(0, 32, 0, -1); err == nil {
		t.Fatalf("CheckRange should reject negative length")
	}
	if _, err := CheckRange(0, math.MaxInt, math.MaxInt, 1); err == nil {
		t.Fatalf("CheckRange should reject overflow")
	}
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, ok := Slice(data, 1, 3); !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if _, ok := Slice(data, 4, 2); ok {
		t.Fatalf("Slice should fail when extending beyond len")
	}
	if Has(data, 2, 4) {
		t.Fatalf("Has should be false for out-of-bounds range")
	}
	if !Has(data, 2, 1) {
		t.Fatalf("Has should be true for valid range")
	}
	if _, ok := Slice(data, -1, 1); ok {
		t.Fatalf("Slice should reject negative offset")
	}
}
