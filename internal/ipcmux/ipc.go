// File: internal/ipcmux/ipc.go
package ipcmux

import (
	"context"
	"encoding/json"
	"time"
)

// IPC is the contract internal/router and internal/gateway program against;
// both a single Multiplexer and the Linux pool_linux.go pool implement it,
// resolving the Open Question on multi-socket pooling without a second API.
type IPC interface {
	Start(ctx context.Context) error
	Stop()
	Send(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (*Future, uint64, error)
	SendSync(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error)
	Cancel(id uint64) bool
	State() State
	StatsSnapshot() any
}

var _ IPC = (*Multiplexer)(nil)
