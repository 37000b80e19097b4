//go:build !linux
// +build !linux

// File: internal/videoring/reader_other.go
// POSIX shared memory has no Windows/other-platform equivalent, so
// non-Linux builds get a reader that always reports the stream absent.
package videoring

import (
	"fmt"
	"time"
)

var ErrNoSuchStream = fmt.Errorf("videoring: shared memory frame reading is only supported on linux")

type Reader struct{}

func Open(name string) (*Reader, error) { return nil, ErrNoSuchStream }

type Frame struct {
	Data        []byte
	Width       int
	Height      int
	TimestampMs int64
}

func (r *Reader) HasNew() bool                      { return false }
func (r *Reader) Read() (*Frame, error)              { return nil, ErrNoSuchStream }
func (r *Reader) Wait(timeout time.Duration) bool    { return false }
func (r *Reader) IsActive(staleAfter time.Duration) bool { return false }
func (r *Reader) Stats() (uint64, uint64)            { return 0, 0 }
func (r *Reader) Close() error                       { return nil }
