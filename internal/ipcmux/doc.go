// File: internal/ipcmux/doc.go
// Package ipcmux implements the async IPC multiplexer that owns the
// browser child process: it issues monotonic request ids, correlates
// concurrent request/reply pairs in a pending table, and survives browser
// crashes by draining every pending future with a browser-crashed error.
// internal/ipcreactor supplies the poll tick that drains the outbound
// queue to the browser's stdin and runs the timeout sweep; replies are read
// from stdout on a separate goroutine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ipcmux
