//go:build linux
// +build linux

// File: internal/videoring/reader_linux.go
// mmap-backed reader over the /dev/shm region a POSIX shm_open(name)
// resolves to on Linux, using golang.org/x/sys/unix for the mmap/munmap
// syscalls.
package videoring

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrNoSuchStream is returned when the named shared-memory region does not
// exist (the browser has not started streaming this context).
var ErrNoSuchStream = fmt.Errorf("videoring: shared memory region not found")

// Reader mmaps a browser-owned frame ring read-only and tracks the last
// sequence it observed.
type Reader struct {
	file   *os.File
	region []byte

	lastSeq     uint64
	lastChange  time.Time
	framesRead  uint64
	framesMissed uint64
}

// Open mmaps the shared-memory region named "/owl_stream_ctx_<id>", which
// shm_open resolves to /dev/shm/owl_stream_ctx_<id> on Linux.
func Open(name string) (*Reader, error) {
	path := "/dev/shm/" + name
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSuchStream
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := int(fi.Size())
	if size < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("videoring: region %q too small (%d bytes)", name, size)
	}
	region, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("videoring: mmap %q: %w", name, err)
	}
	magic := binary.LittleEndian.Uint32(region[offsetMagic:])
	if magic != FrameMagic {
		unix.Munmap(region)
		f.Close()
		return nil, fmt.Errorf("videoring: bad magic in %q", name)
	}
	return &Reader{file: f, region: region, lastChange: time.Now()}, nil
}

func (r *Reader) sequence() uint64 {
	p := (*uint64)(unsafe.Pointer(&r.region[offsetSequence]))
	return atomic.LoadUint64(p)
}

// HasNew reports whether the writer has advanced sequence since the last
// successful Read.
func (r *Reader) HasNew() bool {
	return r.sequence() != r.lastSeq
}

// Frame holds one read-out frame's metadata and JPEG payload.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	TimestampMs int64
}

// Read copies out the current frame if its sequence is newer than the last
// one observed. Frames skipped between reads are added to the missed
// counter.
func (r *Reader) Read() (*Frame, error) {
	seq := r.sequence()
	if seq == r.lastSeq {
		return nil, nil
	}
	if r.lastSeq != 0 && seq > r.lastSeq+1 {
		r.framesMissed += seq - r.lastSeq - 1
	}

	width := int(int32(binary.LittleEndian.Uint32(r.region[offsetWidth:])))
	height := int(int32(binary.LittleEndian.Uint32(r.region[offsetHeight:])))
	ts := int64(binary.LittleEndian.Uint64(r.region[offsetTsMs:]))
	size := binary.LittleEndian.Uint32(r.region[offsetSize:])
	if int(size) > MaxPayload || offsetPayload+int(size) > len(r.region) {
		return nil, fmt.Errorf("videoring: frame size %d out of range", size)
	}

	data := make([]byte, size)
	copy(data, r.region[offsetPayload:offsetPayload+int(size)])

	// sequence may have advanced again while copying; re-check and accept
	// the copy regardless rather than retrying indefinitely.
	r.lastSeq = r.sequence()
	r.lastChange = time.Now()
	r.framesRead++

	return &Frame{Data: data, Width: width, Height: height, TimestampMs: ts}, nil
}

// Wait polls at a 5ms interval until a new frame is available or timeout
// elapses.
func (r *Reader) Wait(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.HasNew() {
			return true
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// IsActive reports whether the writer has advanced sequence recently.
func (r *Reader) IsActive(staleAfter time.Duration) bool {
	return time.Since(r.lastChange) < staleAfter
}

// Stats returns (frames_read, frames_missed).
func (r *Reader) Stats() (uint64, uint64) {
	return r.framesRead, r.framesMissed
}

func (r *Reader) Close() error {
	err := unix.Munmap(r.region)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
