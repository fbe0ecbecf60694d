// Package project is the versioning engine of a ROM editor: an append-only
// log of commits, each pairing metadata with a structured payload and the
// buffer that payload produced.
//
// Commit Protocol:
//  1. The new commit clones the buffer and free-space allocator of its
//     predecessor.
//  2. The payload's Pack step writes its semantic state into that clone,
//     freeing and allocating space as it relocates data.
//  3. The commit is appended (or, when replacing an existing commit, every
//     later commit is replayed on top of it).
//
// Replay:
// Commit 0 is the root. Replaying it packs the root payload into an empty
// buffer and then seeds the allocator from the commit's configuration. Every
// later commit starts from a clone of its predecessor, so commits are always
// visited in increasing order and no allocator state leaks between them.
//
// Failure:
// The first Pack error aborts a commit or replay and is returned wrapped with
// the commit index and payload name. Nothing is rolled back; Stale reports the
// first commit whose buffer no longer reflects the log until a later replay
// succeeds.
//
// Persistence:
// Save writes only metadata and payloads. Load rebuilds every buffer by
// replaying from commit 0, which regenerates byte-identical images.
//
// A Project is NOT thread-safe. Only one goroutine should use it at a time.
package project
