// File: internal/workerpool/doc.go
// Package workerpool implements a bounded FIFO worker pool: N worker
// goroutines drain a depth-bounded github.com/eapache/queue.Queue;
// submission beyond the bound signals queue-full instead of blocking the
// caller. Idle workers block on a condition variable rather than busy-
// polling, and each task runs under panic recovery so one bad task never
// takes down a worker.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package workerpool
