// File: internal/videoring/doc.go
// Package videoring reads the POSIX shared-memory frame ring the browser
// process writes video into: a fixed-size region laid out as
// {magic, context_id, sequence, width, height, ts_ms, size, payload},
// mapped read-only and gated on a monotonic sequence counter for liveness
// and newness detection.
//
// POSIX shared memory (shm_open/mmap) is a Linux/BSD concept with no
// Windows equivalent, so this package is Linux-only; other platforms get
// a stub reader that always reports the region absent.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package videoring
