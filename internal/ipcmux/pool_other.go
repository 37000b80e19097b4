//go:build !linux
// +build !linux

// File: internal/ipcmux/pool_other.go
// Non-Linux platforms skip the multi-socket pool entirely; NewAuto always
// returns a single Multiplexer so internal/gateway's wiring code needs no
// build tags of its own.
package ipcmux

// NewAuto ignores poolSize on non-Linux platforms and always returns a
// single Multiplexer.
func NewAuto(opts Options, poolSize int) IPC {
	return New(opts)
}
