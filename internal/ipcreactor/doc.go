// File: internal/ipcreactor/doc.go
// Package ipcreactor implements the short-timeout poll loop that watches
// the fds registered with it (internal/ipcmux registers only a self-pipe
// used to signal shutdown; browser stdout is read by its own goroutine)
// and runs a tick callback every PollInterval. On Linux this is backed by
// real epoll; other platforms fall back to a ticker-driven poll with
// identical semantics.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ipcreactor

import "time"

// PollInterval is the reactor's poll tick.
const PollInterval = 10 * time.Millisecond
