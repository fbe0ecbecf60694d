// Package freespace tracks unused byte ranges inside the banks of one banked
// ROM segment and hands them out to edits that need to place data.
//
// # Overview
//
// A FreeSpace holds a free list of (bank, start, length) ranges. The list is
// kept sorted by bank then start, and adjacent or overlapping ranges are
// merged after every registration, so a bank's free bytes are always
// described by the fewest possible ranges.
//
// Starts are stored exactly as the caller supplied them. For the "prg" and
// "chr" segments these are the 16-bit offsets carried by rom.Prg and rom.Chr
// addresses (for example 0x8000..0xbfff for a 16K PRG bank), which the
// buffer masks into the bank on access.
//
// # Allocation strategies
//
//   - AllocExactFit: the first range in the bank whose length equals the request.
//   - AllocFirstFit: carves the request from the END of the first range that fits.
//   - Alloc: exact fit, falling back to first fit.
//   - AllocNear: carves from the FRONT of the range whose start is nearest.
//   - AllocAt: like AllocNear, but only succeeds at the requested start.
//
// Failed allocations return *OutOfMemoryError, which matches ErrOutOfMemory.
//
// # Banks
//
// Negative bank indices count from the last bank and are normalized against
// the bank count when the call is made. AdjustLayout moves ranges recorded in
// the old last bank to the new last bank after a segment is resized.
//
// # Thread Safety
//
// FreeSpace is not safe for concurrent use. Use Clone to hand an independent
// copy to another owner.
package freespace
