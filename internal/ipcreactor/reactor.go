package ipcreactor

// EventType identifies which condition a Reactor observed on a registered
// fd.
type EventType int

const (
	EventRead EventType = 1 << iota
	EventError
)

// Reactor watches a small set of file descriptors (in internal/ipcmux, a
// self-pipe used to interrupt the poll on shutdown) and invokes a callback
// when one becomes readable. Platform-specific
// implementations live in epoll_linux.go / poll_other.go.
type Reactor interface {
	// Register starts watching fd for EventRead (and EPOLLHUP/ERR).
	Register(fd int, cb func(EventType)) error
	// Unregister stops watching fd.
	Unregister(fd int) error
	// Run blocks, polling every PollInterval until stop is closed. onTick
	// is invoked once per poll iteration regardless of whether any fd was
	// readable, so callers can run periodic maintenance (e.g. the pending
	// table's timeout sweep) on the same cadence.
	Run(stop <-chan struct{}, onTick func()) error
	Close() error
}
