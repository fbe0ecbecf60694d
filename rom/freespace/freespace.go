package freespace

import (
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/exp/slices"

	"github.com/joshuapare/romkit/internal/buf"
	"github.com/joshuapare/romkit/rom"
)

// narrowLimit bounds ranges in segments addressed through 16-bit offsets.
const narrowLimit = 0x10000

// Range is one free span of a bank.
type Range struct {
	Bank   int `json:"bank"`
	Start  int `json:"start"`
	Length int `json:"length"`
}

// End returns the exclusive end of the range.
func (r Range) End() int { return r.Start + r.Length }


// FreeSpace is a per-bank free-list allocator for one banked segment.
//
// Range starts keep the offset form they were registered with (a CPU window
// such as 0xbf00 for PRG), but ranges are compared and bounded by their
// offset within the bank, so aliases of the same bytes never count twice.
type FreeSpace struct {
	segment  string
	banks    int
	bankSize int
	freelist []Range
	logger   *slog.Logger
}

// Option configures a FreeSpace.
type Option func(*FreeSpace)

// WithLogger sets the logger used for allocation tracing and coalesce warnings.
func WithLogger(l *slog.Logger) Option {
	return func(fs *FreeSpace) {
		if l != nil {
			fs.logger = l
		}
	}
}

// New builds an allocator governing cfg's segment of layout and registers
// every configured free range. A free range overlapping a keepout region
// returns *KeepoutError.
func New(cfg Config, layout rom.Layout, opts ...Option) (*FreeSpace, error) {
	if err := cfg.CheckKeepout(layout); err != nil {
		return nil, err
	}
	fs, err := newEmpty(cfg.SegmentName(), layout, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range cfg.FreeSpace {
		if err := fs.Register(r.Address, r.Length, true); err != nil {
			return nil, fmt.Errorf("%w: %w", rom.ErrConfig, err)
		}
	}
	return fs, nil
}

// Empty returns an allocator for segment with no banks and no free space.
// Every allocation fails; it stands in for images without the segment.
func Empty(segment string, opts ...Option) *FreeSpace {
	fs := &FreeSpace{
		segment: segment,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func newEmpty(segment string, layout rom.Layout, opts []Option) (*FreeSpace, error) {
	banks, err := layout.Banks(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: freespace segment: %w", rom.ErrConfig, err)
	}
	seg, err := layout.Segment(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: freespace segment: %w", rom.ErrConfig, err)
	}
	fs := Empty(segment, opts...)
	fs.banks = banks
	fs.bankSize = seg.BankSize
	return fs, nil
}

// inBank returns start as an offset within its bank.
func (fs *FreeSpace) inBank(start int) int {
	if fs.bankSize <= 0 {
		return start
	}
	return start & (fs.bankSize - 1)
}

func (fs *FreeSpace) intersects(a, b Range) bool {
	if a.Bank != b.Bank {
		return false
	}
	as, bs := fs.inBank(a.Start), fs.inBank(b.Start)
	return as < bs+b.Length && bs < as+a.Length
}

// Segment returns the name of the governed segment.
func (fs *FreeSpace) Segment() string { return fs.segment }

// Banks returns the bank count the allocator normalizes against.
func (fs *FreeSpace) Banks() int { return fs.banks }

// Ranges returns a snapshot of the free list.
func (fs *FreeSpace) Ranges() []Range {
	out := make([]Range, len(fs.freelist))
	copy(out, fs.freelist)
	return out
}

// Clone returns an independent copy sharing only the logger.
func (fs *FreeSpace) Clone() *FreeSpace {
	c := *fs
	c.freelist = fs.Ranges()
	return &c
}

func (fs *FreeSpace) narrow() bool {
	return fs.segment == rom.PrgSegment || fs.segment == rom.ChrSegment
}

func (fs *FreeSpace) normalizeBank(bank int) (int, error) {
	if bank < 0 {
		bank += fs.banks
	}
	if bank < 0 || bank >= fs.banks {
		return 0, fmt.Errorf("%w: bank %d outside %d banks of %q", ErrFreeSpace, bank, fs.banks, fs.segment)
	}
	return bank, nil
}

// locate converts an address in the governed segment to (bank, start).
func (fs *FreeSpace) locate(addr rom.Address) (int, int, error) {
	s := addr.Simplify()
	bank, ok := s.BankIndex()
	if !ok || s.SegmentName() != fs.segment {
		return 0, 0, fmt.Errorf("%w: address %s is not in segment %q", ErrFreeSpace, addr, fs.segment)
	}
	bank, err := fs.normalizeBank(bank)
	if err != nil {
		return 0, 0, err
	}
	start, ok := buf.UintToInt(s.Offset())
	if !ok {
		return 0, 0, fmt.Errorf("%w: address %s offset overflows", ErrFreeSpace, addr)
	}
	return bank, start, nil
}

func (fs *FreeSpace) toRange(addr rom.Address, length int) (Range, error) {
	bank, start, err := fs.locate(addr)
	if err != nil {
		return Range{}, err
	}
	if length <= 0 {
		return Range{}, fmt.Errorf("%w: length %d at %s", ErrFreeSpace, length, addr)
	}
	end, ok := buf.AddOverflowSafe(start, length)
	if !ok || (fs.narrow() && end > narrowLimit) {
		return Range{}, fmt.Errorf("%w: range %s+%d overflows", ErrFreeSpace, addr, length)
	}
	if fs.inBank(start)+length > fs.bankSize {
		return Range{}, fmt.Errorf("%w: range %s+%d crosses the end of bank %d", ErrFreeSpace, addr, length, bank)
	}
	return Range{Bank: bank, Start: start, Length: length}, nil
}

func (fs *FreeSpace) address(bank, start int) rom.Address {
	switch fs.segment {
	case rom.PrgSegment:
		return rom.Prg(bank, uint16(start))
	case rom.ChrSegment:
		return rom.Chr(bank, uint16(start))
	default:
		return rom.Bank(fs.segment, bank, uint(start))
	}
}

// Contains reports whether addr lies inside a free range.
func (fs *FreeSpace) Contains(addr rom.Address) bool {
	bank, start, err := fs.locate(addr)
	if err != nil {
		return false
	}
	at := Range{Bank: bank, Start: start, Length: 1}
	for _, f := range fs.freelist {
		if fs.intersects(f, at) {
			return true
		}
	}
	return false
}

// Register adds [addr, addr+length) to the free list. Unless allowOverlap is
// set, a range intersecting existing free space is rejected with ErrFreeSpace.
func (fs *FreeSpace) Register(addr rom.Address, length int, allowOverlap bool) error {
	r, err := fs.toRange(addr, length)
	if err != nil {
		return err
	}
	if !allowOverlap {
		for _, f := range fs.freelist {
			if fs.intersects(f, r) {
				return fmt.Errorf("%w: %s+%d already in freespace", ErrFreeSpace, addr, length)
			}
		}
	}
	fs.logger.Debug("freespace register", "address", fs.address(r.Bank, r.Start), "length", length)
	fs.freelist = append(fs.freelist, r)
	fs.coalesce()
	return nil
}

// Free returns a previously allocated range to the free list. Freeing bytes
// that are already free is an ErrFreeSpace error.
func (fs *FreeSpace) Free(addr rom.Address, length int) error {
	if err := fs.Register(addr, length, false); err != nil {
		return fmt.Errorf("free: %w", err)
	}
	return nil
}

func (fs *FreeSpace) coalesce() {
	slices.SortFunc(fs.freelist, func(a, b Range) bool {
		if a.Bank != b.Bank {
			return a.Bank < b.Bank
		}
		if as, bs := fs.inBank(a.Start), fs.inBank(b.Start); as != bs {
			return as < bs
		}
		return a.Length < b.Length
	})

	merged := make([]Range, 0, len(fs.freelist))
	for _, r := range fs.freelist {
		if r.Length <= 0 {
			continue
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			lastEnd, start := fs.inBank(last.Start)+last.Length, fs.inBank(r.Start)
			if last.Bank == r.Bank && start <= lastEnd {
				if start < lastEnd {
					fs.logger.Warn("freespace overlap",
						"bank", r.Bank,
						"start", fmt.Sprintf("0x%04x", r.Start),
						"length", r.Length,
						"existing_start", fmt.Sprintf("0x%04x", last.Start),
						"existing_length", last.Length)
				}
				if end := start + r.Length; end > lastEnd {
					last.Length += end - lastEnd
				}
				continue
			}
		}
		merged = append(merged, r)
	}
	fs.freelist = merged
}

func (fs *FreeSpace) remove(i int) {
	fs.freelist = append(fs.freelist[:i], fs.freelist[i+1:]...)
}

func (fs *FreeSpace) oom(bank, length int) error {
	return &OutOfMemoryError{Bank: bank, Length: length}
}

// AllocExactFit takes the first range in bank whose length equals length.
func (fs *FreeSpace) AllocExactFit(bank, length int) (rom.Address, error) {
	b, err := fs.normalizeBank(bank)
	if err != nil {
		return rom.Address{}, err
	}
	if length <= 0 {
		return rom.Address{}, fmt.Errorf("%w: length %d", ErrFreeSpace, length)
	}
	for i, f := range fs.freelist {
		if f.Bank == b && f.Length == length {
			fs.remove(i)
			addr := fs.address(b, f.Start)
			fs.logger.Debug("freespace alloc exact", "address", addr, "length", length)
			return addr, nil
		}
	}
	return rom.Address{}, fs.oom(b, length)
}

// AllocFirstFit carves length bytes from the end of the first range in bank
// that is large enough.
func (fs *FreeSpace) AllocFirstFit(bank, length int) (rom.Address, error) {
	b, err := fs.normalizeBank(bank)
	if err != nil {
		return rom.Address{}, err
	}
	if length <= 0 {
		return rom.Address{}, fmt.Errorf("%w: length %d", ErrFreeSpace, length)
	}
	for i := range fs.freelist {
		f := &fs.freelist[i]
		if f.Bank != b || f.Length < length {
			continue
		}
		f.Length -= length
		addr := fs.address(b, f.Start+f.Length)
		if f.Length == 0 {
			fs.remove(i)
		}
		fs.logger.Debug("freespace alloc first fit", "address", addr, "length", length)
		return addr, nil
	}
	return rom.Address{}, fs.oom(b, length)
}

// Alloc tries an exact fit in addr's bank, then a first fit.
func (fs *FreeSpace) Alloc(addr rom.Address, length int) (rom.Address, error) {
	bank, _, err := fs.locate(addr)
	if err != nil {
		return rom.Address{}, err
	}
	if a, err := fs.AllocExactFit(bank, length); err == nil {
		return a, nil
	}
	return fs.AllocFirstFit(bank, length)
}

// AllocNear carves length bytes from the front of the fitting range in addr's
// bank whose start is nearest to addr. Ties go to the earlier range.
func (fs *FreeSpace) AllocNear(addr rom.Address, length int) (rom.Address, error) {
	return fs.allocNear(addr, length, false)
}

// AllocAt allocates exactly at addr, which must be the start of a fitting
// free range.
func (fs *FreeSpace) AllocAt(addr rom.Address, length int) (rom.Address, error) {
	return fs.allocNear(addr, length, true)
}

func (fs *FreeSpace) allocNear(addr rom.Address, length int, exact bool) (rom.Address, error) {
	bank, want, err := fs.locate(addr)
	if err != nil {
		return rom.Address{}, err
	}
	if length <= 0 {
		return rom.Address{}, fmt.Errorf("%w: length %d", ErrFreeSpace, length)
	}

	best, bestDelta := -1, 0
	for i, f := range fs.freelist {
		if f.Bank != bank || f.Length < length {
			continue
		}
		delta := fs.inBank(f.Start) - fs.inBank(want)
		if delta < 0 {
			delta = -delta
		}
		if best < 0 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	if best < 0 || (exact && bestDelta != 0) {
		return rom.Address{}, fs.oom(bank, length)
	}

	f := &fs.freelist[best]
	result := fs.address(bank, f.Start)
	f.Start += length
	f.Length -= length
	if f.Length == 0 {
		fs.remove(best)
	}
	fs.logger.Debug("freespace alloc near", "want", addr, "address", result, "length", length)
	return result, nil
}

// AdjustLayout follows a resize of the governed segment: ranges recorded in
// the old last bank move to the new last bank, and ranges in banks that no
// longer exist are dropped.
func (fs *FreeSpace) AdjustLayout(layout rom.Layout) error {
	banks, err := layout.Banks(fs.segment)
	if err != nil {
		return fmt.Errorf("freespace adjust layout: %w", err)
	}
	if seg, err := layout.Segment(fs.segment); err == nil {
		fs.bankSize = seg.BankSize
	}
	if banks == fs.banks {
		return nil
	}
	oldTop, newTop := fs.banks-1, banks-1
	kept := fs.freelist[:0]
	for _, f := range fs.freelist {
		if f.Bank == oldTop {
			f.Bank = newTop
		} else if f.Bank >= banks {
			fs.logger.Warn("freespace range dropped by layout change", "bank", f.Bank, "start", f.Start, "length", f.Length)
			continue
		}
		kept = append(kept, f)
	}
	fs.freelist = kept
	fs.banks = banks
	fs.coalesce()
	return nil
}

// Report returns the number of free ranges and free bytes in addr's bank.
func (fs *FreeSpace) Report(addr rom.Address) (int, int, error) {
	bank, _, err := fs.locate(addr)
	if err != nil {
		return 0, 0, err
	}
	chunks, total := 0, 0
	for _, f := range fs.freelist {
		if f.Bank == bank && f.Length > 0 {
			chunks++
			total += f.Length
		}
	}
	return chunks, total, nil
}

// Total returns the free bytes across all banks.
func (fs *FreeSpace) Total() int {
	total := 0
	for _, f := range fs.freelist {
		total += f.Length
	}
	return total
}
