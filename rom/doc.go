// Package rom models a segmented, bank-switched ROM image.
//
// # Overview
//
// Three types cooperate:
//
//   - Address: a tagged location (file offset, segment offset, CPU address,
//     bank offset, or the Prg/Chr shorthands for the "prg" and "chr" banks).
//   - Layout: the ordered list of Raw and Banked segments that partition the
//     image.
//   - Buffer: the bytes plus the layout that interprets them, with
//     bounds-checked reads and writes through Address values.
//
// # Resolution
//
// An Address means nothing without a Layout. Resolve turns an address and an
// access length into an absolute offset:
//
//	layout := rom.Layout{
//	    rom.Raw("header", 0, 16, 0xff),
//	    rom.Banked("prg", 16, 4*0x4000, 0x4000, 0xff),
//	}
//	off, err := rom.Prg(-1, 0xc000).Resolve(2, layout)
//	// off == 16 + 3*0x4000
//
// Bank offsets are masked to the bank size, so CPU-style offsets (0x8000,
// 0xc000) address the start of a bank. Accesses that would straddle a bank
// boundary fail with ErrAddressBound.
//
// # Errors
//
// Every failure wraps one of the package sentinels (ErrUnknownSegment,
// ErrAddressBound, ErrAddressType, ErrLayout, ErrLength, ErrConfig) and can be
// matched with errors.Is. Resolution never panics.
//
// # Thread Safety
//
// Buffer is not thread-safe. Each commit owns its own clone; callers must not
// share a Buffer between goroutines without external synchronization.
package rom
